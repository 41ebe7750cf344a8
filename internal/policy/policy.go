// Package policy decides whether an authenticated actor may perform an
// operation on a media item or a contact message. It never touches the
// database: callers load the resource, return NotFound when it's missing
// and only then ask Can.
package policy

import (
	"strings"

	"bitwise74/gallery-api/internal/model"
)

type Operation int

const (
	OpRead Operation = iota
	OpUpdate
	OpDelete
	OpAdminList
	OpAdminUpdate
	OpAdminDelete
)

func (op Operation) adminOnly() bool {
	return op == OpAdminList || op == OpAdminUpdate || op == OpAdminDelete
}

type Actor struct {
	ID    string
	Email string
	Role  model.Role
}

func ActorFromUser(u *model.User) *Actor {
	if u == nil {
		return nil
	}

	return &Actor{
		ID:    u.ID,
		Email: u.Email,
		Role:  u.Role,
	}
}

func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == model.RoleAdmin
}

// Can reports whether actor may perform op on resource. Admin-only
// operations ignore the resource, so a typed nil may be passed for listings.
func Can(actor *Actor, op Operation, resource any) bool {
	if actor == nil || actor.ID == "" {
		return false
	}

	if op.adminOnly() {
		return actor.IsAdmin()
	}

	switch r := resource.(type) {
	case *model.Media:
		return canMedia(actor, op, r)
	case *model.Contact:
		return canContact(actor, op, r)
	default:
		return false
	}
}

func canMedia(a *Actor, op Operation, m *model.Media) bool {
	if m == nil {
		return false
	}

	switch op {
	case OpRead:
		return m.OwnedBy(a.ID) || m.IsShared
	case OpUpdate, OpDelete:
		return m.OwnedBy(a.ID)
	}

	return false
}

func canContact(a *Actor, op Operation, c *model.Contact) bool {
	if c == nil {
		return false
	}

	switch op {
	case OpRead, OpUpdate, OpDelete:
		if a.IsAdmin() {
			return true
		}

		if c.UserID != nil && *c.UserID == a.ID {
			return true
		}

		return a.Email != "" && strings.EqualFold(c.Email, a.Email)
	}

	return false
}
