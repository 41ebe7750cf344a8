package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"bitwise74/gallery-api/internal/model"
	"bitwise74/gallery-api/internal/policy"
	"bitwise74/gallery-api/pkg/util"
	"bitwise74/gallery-api/pkg/validators"

	"gorm.io/gorm"
)

const (
	DefaultContactPageSize = 10
	DefaultAdminPageSize   = 20
	deletedPreviewLength   = 50
)

var contactSortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"name":      "name",
	"email":     "email",
	"status":    "status",
}

// Contacts stores messages sent through the contact form
type Contacts struct {
	DB *gorm.DB
}

type ContactInput struct {
	Name    string
	Email   string
	Message string
}

type ContactUpdate struct {
	Name    string
	Message string
}

type AdminContactUpdate struct {
	Status     model.ContactStatus
	AdminNotes *string
}

type AdminQuery struct {
	Search string
	SortBy string
	Order  string
	Page   int
	Limit  int
}

type ContactPage struct {
	Messages   []model.Contact `json:"messages"`
	Pagination Pagination      `json:"pagination"`
}

type ContactStatistics struct {
	TotalMessages      int64 `json:"totalMessages"`
	WithUserAccount    int64 `json:"withUserAccount"`
	WithoutUserAccount int64 `json:"withoutUserAccount"`
}

type AdminContactPage struct {
	Contacts   []model.Contact   `json:"contacts"`
	Pagination Pagination        `json:"pagination"`
	Statistics ContactStatistics `json:"statistics"`
}

type DeletedContact struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

func validateContact(name, message string) error {
	if err := validators.NameValidator(name); err != nil {
		return invalid(err.Error())
	}

	if err := validators.MessageValidator(message); err != nil {
		return invalid(err.Error())
	}

	return nil
}

func pageBounds(page, limit, defLimit int) (int, int, error) {
	if page == 0 {
		page = 1
	}

	if limit == 0 {
		limit = defLimit
	}

	if page < 1 {
		return 0, 0, invalid("Page must be a positive number")
	}

	if limit < 1 || limit > MaxPageSize {
		return 0, 0, invalid("Limit must be between 1 and 100")
	}

	return page, limit, nil
}

// Create stores a new message. actor is nil for anonymous senders.
func (s *Contacts) Create(ctx context.Context, actor *policy.Actor, in ContactInput) (*model.Contact, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	message := strings.TrimSpace(in.Message)

	if err := validators.NameValidator(name); err != nil {
		return nil, invalid(err.Error())
	}

	if err := validators.EmailValidator(email); err != nil {
		return nil, invalid(err.Error())
	}

	if err := validators.MessageValidator(message); err != nil {
		return nil, invalid(err.Error())
	}

	contactID, err := util.NewID()
	if err != nil {
		return nil, internalErr("Failed to generate contact ID", err)
	}

	contact := &model.Contact{
		ID:      contactID,
		Name:    name,
		Email:   email,
		Message: message,
		Status:  model.ContactNew,
	}

	if actor != nil && actor.ID != "" {
		contact.UserID = &actor.ID
	}

	if err := s.DB.WithContext(ctx).Create(contact).Error; err != nil {
		return nil, internalErr("Failed to save contact message", err)
	}

	if err := s.attachUsers(ctx, []*model.Contact{contact}); err != nil {
		return nil, err
	}

	return contact, nil
}

// ListOwn returns messages sent by the actor, either while logged in or
// anonymously from the same email address
func (s *Contacts) ListOwn(ctx context.Context, actor *policy.Actor, page, limit int) (*ContactPage, error) {
	if actor == nil {
		return nil, ErrForbidden
	}

	page, limit, err := pageBounds(page, limit, DefaultContactPageSize)
	if err != nil {
		return nil, err
	}

	own := func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id = ? OR email = ?", actor.ID, normalizeEmail(actor.Email))
	}

	var total int64
	if err := s.DB.WithContext(ctx).Model(&model.Contact{}).Scopes(own).Count(&total).Error; err != nil {
		return nil, internalErr("Failed to count contact messages", err)
	}

	messages := []model.Contact{}

	err = s.DB.WithContext(ctx).
		Model(&model.Contact{}).
		Scopes(own).
		Order("created_at desc").
		Order("id").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&messages).
		Error
	if err != nil {
		return nil, internalErr("Failed to fetch contact messages", err)
	}

	if err := s.attachUsers(ctx, contactPtrs(messages)); err != nil {
		return nil, err
	}

	return &ContactPage{
		Messages:   messages,
		Pagination: newPagination(page, limit, total),
	}, nil
}

func (s *Contacts) find(ctx context.Context, id string) (*model.Contact, error) {
	if !util.IsID(id) {
		return nil, ErrInvalidID
	}

	var contact model.Contact
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&contact).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContactNotFound
		}

		return nil, internalErr("Failed to fetch contact message", err)
	}

	return &contact, nil
}

func (s *Contacts) Update(ctx context.Context, actor *policy.Actor, id string, in ContactUpdate) (*model.Contact, error) {
	contact, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if !policy.Can(actor, policy.OpUpdate, contact) {
		return nil, ErrForbidden
	}

	name := strings.TrimSpace(in.Name)
	message := strings.TrimSpace(in.Message)

	if err := validateContact(name, message); err != nil {
		return nil, err
	}

	contact.Name = name
	contact.Message = message
	contact.UpdatedAt = time.Now()

	err = s.DB.WithContext(ctx).
		Model(contact).
		Select("name", "message", "updated_at").
		Updates(contact).
		Error
	if err != nil {
		return nil, internalErr("Failed to update contact message", err)
	}

	if err := s.attachUsers(ctx, []*model.Contact{contact}); err != nil {
		return nil, err
	}

	return contact, nil
}

func (s *Contacts) Delete(ctx context.Context, actor *policy.Actor, id string) error {
	contact, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	if !policy.Can(actor, policy.OpDelete, contact) {
		return ErrForbidden
	}

	if err := s.DB.WithContext(ctx).Where("id = ?", contact.ID).Delete(&model.Contact{}).Error; err != nil {
		return internalErr("Failed to delete contact message", err)
	}

	return nil
}

func (s *Contacts) AdminList(ctx context.Context, actor *policy.Actor, q AdminQuery) (*AdminContactPage, error) {
	if !policy.Can(actor, policy.OpAdminList, (*model.Contact)(nil)) {
		return nil, ErrForbidden
	}

	page, limit, err := pageBounds(q.Page, q.Limit, DefaultAdminPageSize)
	if err != nil {
		return nil, err
	}

	if q.SortBy == "" {
		q.SortBy = "createdAt"
	}

	if q.Order == "" {
		q.Order = "desc"
	}

	column, ok := contactSortColumns[q.SortBy]
	if !ok {
		return nil, invalid("Invalid sort field")
	}

	if q.Order != "asc" && q.Order != "desc" {
		return nil, invalid("Order must be asc or desc")
	}

	search := strings.TrimSpace(q.Search)
	filter := func(db *gorm.DB) *gorm.DB {
		if search == "" {
			return db
		}

		like := "%" + escapeLike(strings.ToLower(search)) + "%"
		return db.Where(`(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\' OR LOWER(message) LIKE ? ESCAPE '\')`, like, like, like)
	}

	var total int64
	if err := s.DB.WithContext(ctx).Model(&model.Contact{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, internalErr("Failed to count contact messages", err)
	}

	contacts := []model.Contact{}

	err = s.DB.WithContext(ctx).
		Model(&model.Contact{}).
		Scopes(filter).
		Order(column + " " + q.Order).
		Order("id").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&contacts).
		Error
	if err != nil {
		return nil, internalErr("Failed to fetch contact messages", err)
	}

	if err := s.attachUsers(ctx, contactPtrs(contacts)); err != nil {
		return nil, err
	}

	stats, err := s.statistics(ctx)
	if err != nil {
		return nil, err
	}

	return &AdminContactPage{
		Contacts:   contacts,
		Pagination: newPagination(page, limit, total),
		Statistics: *stats,
	}, nil
}

func (s *Contacts) statistics(ctx context.Context) (*ContactStatistics, error) {
	var stats ContactStatistics

	if err := s.DB.WithContext(ctx).Model(&model.Contact{}).Count(&stats.TotalMessages).Error; err != nil {
		return nil, internalErr("Failed to count contact messages", err)
	}

	err := s.DB.WithContext(ctx).
		Model(&model.Contact{}).
		Where("user_id IS NOT NULL").
		Count(&stats.WithUserAccount).
		Error
	if err != nil {
		return nil, internalErr("Failed to count contact messages", err)
	}

	stats.WithoutUserAccount = stats.TotalMessages - stats.WithUserAccount
	return &stats, nil
}

func (s *Contacts) AdminUpdate(ctx context.Context, actor *policy.Actor, id string, in AdminContactUpdate) (*model.Contact, error) {
	if !policy.Can(actor, policy.OpAdminUpdate, (*model.Contact)(nil)) {
		return nil, ErrForbidden
	}

	contact, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := []string{"updated_at"}

	if in.Status != "" {
		if !in.Status.Valid() {
			return nil, invalid("Invalid status")
		}

		contact.Status = in.Status
		fields = append(fields, "status")
	}

	if in.AdminNotes != nil {
		notes := strings.TrimSpace(*in.AdminNotes)
		if err := validators.AdminNotesValidator(notes); err != nil {
			return nil, invalid(err.Error())
		}

		contact.AdminNotes = notes
		fields = append(fields, "admin_notes")
	}

	contact.UpdatedAt = time.Now()

	if err := s.DB.WithContext(ctx).Model(contact).Select(fields).Updates(contact).Error; err != nil {
		return nil, internalErr("Failed to update contact message", err)
	}

	if err := s.attachUsers(ctx, []*model.Contact{contact}); err != nil {
		return nil, err
	}

	return contact, nil
}

// AdminDelete removes any message and returns a short summary of it
func (s *Contacts) AdminDelete(ctx context.Context, actor *policy.Actor, id string) (*DeletedContact, error) {
	if !policy.Can(actor, policy.OpAdminDelete, (*model.Contact)(nil)) {
		return nil, ErrForbidden
	}

	contact, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.DB.WithContext(ctx).Where("id = ?", contact.ID).Delete(&model.Contact{}).Error; err != nil {
		return nil, internalErr("Failed to delete contact message", err)
	}

	return &DeletedContact{
		ID:      contact.ID,
		Name:    contact.Name,
		Email:   contact.Email,
		Message: preview(contact.Message, deletedPreviewLength),
	}, nil
}

func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	return string([]rune(s)[:n]) + "..."
}

func contactPtrs(contacts []model.Contact) []*model.Contact {
	ptrs := make([]*model.Contact, len(contacts))
	for i := range contacts {
		ptrs[i] = &contacts[i]
	}

	return ptrs
}

func (s *Contacts) attachUsers(ctx context.Context, contacts []*model.Contact) error {
	ids := []string{}
	for _, c := range contacts {
		if c.UserID != nil && !slices.Contains(ids, *c.UserID) {
			ids = append(ids, *c.UserID)
		}
	}

	if len(ids) == 0 {
		return nil
	}

	var users []model.User
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return internalErr("Failed to fetch users", err)
	}

	byID := make(map[string]*model.UserSummary, len(users))
	for i := range users {
		byID[users[i].ID] = users[i].Summary()
	}

	for _, c := range contacts {
		if c.UserID != nil {
			c.User = byID[*c.UserID]
		}
	}

	return nil
}
