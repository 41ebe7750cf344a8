package model

import (
	"slices"
	"time"
)

type ContactStatus string

const (
	ContactNew      ContactStatus = "new"
	ContactRead     ContactStatus = "read"
	ContactReplied  ContactStatus = "replied"
	ContactArchived ContactStatus = "archived"
)

var contactStatuses = []ContactStatus{ContactNew, ContactRead, ContactReplied, ContactArchived}

func (s ContactStatus) Valid() bool {
	return slices.Contains(contactStatuses, s)
}

type Contact struct {
	ID         string        `gorm:"primaryKey;size:16" json:"id"`
	Name       string        `gorm:"not null" json:"name"`
	Email      string        `gorm:"index;not null" json:"email"`
	Message    string        `gorm:"type:text;not null" json:"message"`
	UserID     *string       `gorm:"index" json:"-"` // Set when the message was sent by a logged in user
	Status     ContactStatus `gorm:"not null;default:new" json:"status"`
	AdminNotes string        `json:"adminNotes,omitempty"`
	CreatedAt  time.Time     `gorm:"index" json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`

	User *UserSummary `gorm:"-" json:"user"`
}
