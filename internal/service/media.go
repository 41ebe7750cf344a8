package service

import (
	"context"
	"errors"
	"io"
	"math"
	"path"
	"slices"
	"strings"
	"time"

	"bitwise74/gallery-api/internal/metrics"
	"bitwise74/gallery-api/internal/model"
	"bitwise74/gallery-api/internal/policy"
	"bitwise74/gallery-api/pkg/util"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultMediaPageSize = 12
	MaxPageSize          = 100
	DefaultFolder        = "media-gallery"
)

var mediaSortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"title":     "title",
	"size":      "size",
}

// Media manages media metadata in the database and the objects behind it
type Media struct {
	DB     *gorm.DB
	Store  ObjectStore
	Folder string
}

type UploadInput struct {
	Title       string
	Description string
	Tags        []string
	IsShared    bool
	FileName    string // Name as sent by the client
	MimeType    string
	Size        int64
	Body        io.Reader
}

type UpdateInput struct {
	Title       string
	Description string
	Tags        []string
	IsShared    bool
}

type ListQuery struct {
	Search string
	Tags   []string
	Page   int
	Limit  int
	SortBy string
	Order  string
	Shared bool
}

type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalItems  int64 `json:"totalItems"`
	HasNext     bool  `json:"hasNext"`
	HasPrev     bool  `json:"hasPrev"`
}

type MediaFilters struct {
	Search string   `json:"search"`
	Tags   []string `json:"tags"`
	Shared bool     `json:"shared"`
}

type MediaPage struct {
	Media         []model.Media `json:"media"`
	Pagination    Pagination    `json:"pagination"`
	AvailableTags []string      `json:"availableTags"`
	Filters       MediaFilters  `json:"filters"`
}

func newPagination(page, limit int, total int64) Pagination {
	totalPages := int(math.Ceil(float64(total) / float64(limit)))

	return Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalItems:  total,
		HasNext:     page < totalPages,
		HasPrev:     page > 1,
	}
}

// SplitTags turns "a, b,,c" into [a b c]
func SplitTags(raw string) []string {
	tags := []string{}

	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}

	return tags
}

func normalizeTags(in []string) ([]string, error) {
	tags := make([]string, 0, len(in))

	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}

		if strings.Contains(t, ",") {
			return nil, invalid("Tags cannot contain commas")
		}

		tags = append(tags, t)
	}

	return tags, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (s *Media) folder() string {
	if s.Folder == "" {
		return DefaultFolder
	}

	return s.Folder
}

func objectExt(fileName, mimeType string) string {
	ext := strings.ToLower(path.Ext(fileName))
	if slices.Contains([]string{".jpg", ".jpeg", ".png"}, ext) {
		return ext
	}

	if mimeType == "image/png" {
		return ".png"
	}

	return ".jpg"
}

// Upload writes the object first and the metadata second. When the metadata
// can't be saved the object is removed again.
func (s *Media) Upload(ctx context.Context, actor *policy.Actor, in UploadInput) (*model.Media, error) {
	if actor == nil {
		return nil, ErrForbidden
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalid("Title is required")
	}

	tags, err := normalizeTags(in.Tags)
	if err != nil {
		return nil, err
	}

	mediaID, err := util.NewID()
	if err != nil {
		return nil, internalErr("Failed to generate media ID", err)
	}

	key := path.Join(s.folder(), "media-"+mediaID+objectExt(in.FileName, in.MimeType))

	obj, err := s.Store.Put(ctx, key, in.Body, in.Size, in.MimeType)
	if err != nil {
		return nil, internalErr("Failed to upload file", err)
	}

	metrics.MediaUploadBytes.Add(float64(in.Size))

	item := &model.Media{
		ID:           mediaID,
		UserID:       actor.ID,
		Title:        title,
		Description:  strings.TrimSpace(in.Description),
		Tags:         tags,
		IsShared:     in.IsShared,
		FileName:     path.Base(obj.Key),
		OriginalName: in.FileName,
		MimeType:     in.MimeType,
		Size:         in.Size,
		URL:          obj.URL,
		StoreKey:     obj.Key,
	}

	if err := s.DB.WithContext(ctx).Create(item).Error; err != nil {
		s.discard(ctx, obj.Key)
		return nil, internalErr("Failed to save media", err)
	}

	if err := s.attachUploaders(ctx, []*model.Media{item}); err != nil {
		return nil, err
	}

	return item, nil
}

// discard removes an object whose metadata was never written. Runs even if
// the request was cancelled.
func (s *Media) discard(ctx context.Context, key string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err := s.Store.Delete(cctx, key); err != nil {
		zap.L().Error("Failed to cleanup after failed upload, object orphaned", zap.String("key", key), zap.Error(err))
		return
	}

	zap.L().Debug("Cleaned up after failed upload", zap.String("key", key))
}

func (q *ListQuery) normalize() error {
	if q.Page == 0 {
		q.Page = 1
	}

	if q.Limit == 0 {
		q.Limit = DefaultMediaPageSize
	}

	if q.SortBy == "" {
		q.SortBy = "createdAt"
	}

	if q.Order == "" {
		q.Order = "desc"
	}

	if q.Page < 1 {
		return invalid("Page must be a positive number")
	}

	if q.Limit < 1 || q.Limit > MaxPageSize {
		return invalid("Limit must be between 1 and 100")
	}

	if _, ok := mediaSortColumns[q.SortBy]; !ok {
		return invalid("Invalid sort field")
	}

	if q.Order != "asc" && q.Order != "desc" {
		return invalid("Order must be asc or desc")
	}

	q.Search = strings.TrimSpace(q.Search)
	q.Tags, _ = normalizeTags(q.Tags)
	return nil
}

// List returns a page of the actor's own media, or of everybody's shared
// media when q.Shared is set
func (s *Media) List(ctx context.Context, actor *policy.Actor, q ListQuery) (*MediaPage, error) {
	if actor == nil {
		return nil, ErrForbidden
	}

	if err := q.normalize(); err != nil {
		return nil, err
	}

	filter := func(db *gorm.DB) *gorm.DB {
		if q.Shared {
			db = db.Where("is_shared = ?", true)
		} else {
			db = db.Where("user_id = ?", actor.ID)
		}

		if q.Search != "" {
			like := "%" + escapeLike(strings.ToLower(q.Search)) + "%"
			db = db.Where(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\' OR LOWER(tags) LIKE ? ESCAPE '\')`, like, like, like)
		}

		if len(q.Tags) > 0 {
			conds := make([]string, len(q.Tags))
			args := make([]any, len(q.Tags))

			for i, t := range q.Tags {
				conds[i] = `LOWER(tags) LIKE ? ESCAPE '\'`
				args[i] = model.ContainsPattern(escapeLike(strings.ToLower(t)))
			}

			db = db.Where("("+strings.Join(conds, " OR ")+")", args...)
		}

		return db
	}

	var total int64
	if err := s.DB.WithContext(ctx).Model(&model.Media{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, internalErr("Failed to count media", err)
	}

	items := []model.Media{}

	err := s.DB.WithContext(ctx).
		Model(&model.Media{}).
		Scopes(filter).
		Order(mediaSortColumns[q.SortBy] + " " + q.Order).
		Order("id").
		Offset((q.Page - 1) * q.Limit).
		Limit(q.Limit).
		Find(&items).
		Error
	if err != nil {
		return nil, internalErr("Failed to fetch media", err)
	}

	ptrs := make([]*model.Media, len(items))
	for i := range items {
		ptrs[i] = &items[i]
	}

	if err := s.attachUploaders(ctx, ptrs); err != nil {
		return nil, err
	}

	tags, err := s.availableTags(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	return &MediaPage{
		Media:         items,
		Pagination:    newPagination(q.Page, q.Limit, total),
		AvailableTags: tags,
		Filters: MediaFilters{
			Search: q.Search,
			Tags:   q.Tags,
			Shared: q.Shared,
		},
	}, nil
}

// availableTags returns the sorted unique tags used on the user's own media
func (s *Media) availableTags(ctx context.Context, userID string) ([]string, error) {
	var raw []string

	err := s.DB.WithContext(ctx).
		Model(&model.Media{}).
		Where("user_id = ? AND tags <> ''", userID).
		Pluck("tags", &raw).
		Error
	if err != nil {
		return nil, internalErr("Failed to fetch tags", err)
	}

	seen := map[string]struct{}{}
	for _, r := range raw {
		var tags model.StringSlice
		if err := tags.Scan(r); err != nil {
			continue
		}

		for _, t := range tags {
			seen[t] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}

	slices.Sort(out)
	return out, nil
}

func (s *Media) attachUploaders(ctx context.Context, items []*model.Media) error {
	if len(items) == 0 {
		return nil
	}

	ids := make([]string, 0, len(items))
	for _, m := range items {
		if !slices.Contains(ids, m.UserID) {
			ids = append(ids, m.UserID)
		}
	}

	var users []model.User
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return internalErr("Failed to fetch uploaders", err)
	}

	byID := make(map[string]*model.UserSummary, len(users))
	for i := range users {
		byID[users[i].ID] = users[i].Summary()
	}

	for _, m := range items {
		m.UploadedBy = byID[m.UserID]
	}

	return nil
}

func (s *Media) find(ctx context.Context, id string) (*model.Media, error) {
	if !util.IsID(id) {
		return nil, ErrInvalidID
	}

	var item model.Media
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMediaNotFound
		}

		return nil, internalErr("Failed to fetch media", err)
	}

	return &item, nil
}

func (s *Media) Get(ctx context.Context, actor *policy.Actor, id string) (*model.Media, error) {
	item, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if !policy.Can(actor, policy.OpRead, item) {
		return nil, ErrForbidden
	}

	if err := s.attachUploaders(ctx, []*model.Media{item}); err != nil {
		return nil, err
	}

	return item, nil
}

func (s *Media) Update(ctx context.Context, actor *policy.Actor, id string, in UpdateInput) (*model.Media, error) {
	item, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if !policy.Can(actor, policy.OpUpdate, item) {
		return nil, ErrForbidden
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalid("Title is required")
	}

	tags, err := normalizeTags(in.Tags)
	if err != nil {
		return nil, err
	}

	item.Title = title
	item.Description = strings.TrimSpace(in.Description)
	item.Tags = tags
	item.IsShared = in.IsShared
	item.UpdatedAt = time.Now()

	err = s.DB.WithContext(ctx).
		Model(item).
		Select("title", "description", "tags", "is_shared", "updated_at").
		Updates(item).
		Error
	if err != nil {
		return nil, internalErr("Failed to update media", err)
	}

	if err := s.attachUploaders(ctx, []*model.Media{item}); err != nil {
		return nil, err
	}

	return item, nil
}

// Delete removes the stored object and then the metadata. A failed remote
// delete is logged and doesn't stop the metadata from going away.
func (s *Media) Delete(ctx context.Context, actor *policy.Actor, id string) error {
	item, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	if !policy.Can(actor, policy.OpDelete, item) {
		return ErrForbidden
	}

	if err := s.Store.Delete(ctx, item.StoreKey); err != nil {
		zap.L().Error("Failed to delete object from store", zap.String("key", item.StoreKey), zap.Error(err))
	}

	if err := s.DB.WithContext(ctx).Where("id = ?", item.ID).Delete(&model.Media{}).Error; err != nil {
		return internalErr("Failed to delete media", err)
	}

	return nil
}
