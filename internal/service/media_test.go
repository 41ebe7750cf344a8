package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"bitwise74/gallery-api/internal/apperr"
	"bitwise74/gallery-api/internal/model"
	"bitwise74/gallery-api/internal/policy"
	"bitwise74/gallery-api/internal/service"
	"bitwise74/gallery-api/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type mediaFixture struct {
	svc   *service.Media
	db    *gorm.DB
	store *testutil.Store
	alice *model.User
	bob   *model.User
}

func newMediaFixture(t *testing.T) *mediaFixture {
	t.Helper()

	db := testutil.NewDB(t)
	store := testutil.NewStore()

	return &mediaFixture{
		svc:   &service.Media{DB: db, Store: store, Folder: service.DefaultFolder},
		db:    db,
		store: store,
		alice: testutil.CreateUser(t, db, "alice@example.com", "secret1", model.RoleUser),
		bob:   testutil.CreateUser(t, db, "bob@example.com", "secret1", model.RoleUser),
	}
}

func actor(u *model.User) *policy.Actor {
	return policy.ActorFromUser(u)
}

func TestSplitTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b c", "d"}, service.SplitTags(" a, b c,,d ,"))
	assert.Equal(t, []string{}, service.SplitTags(""))
}

func TestUpload(t *testing.T) {
	f := newMediaFixture(t)
	ctx := context.Background()

	item, err := f.svc.Upload(ctx, actor(f.alice), service.UploadInput{
		Title:       " Sunset ",
		Description: "beach",
		Tags:        []string{"nature", " sky "},
		IsShared:    true,
		FileName:    "IMG_01.PNG",
		MimeType:    "image/png",
		Size:        5,
		Body:        strings.NewReader("hello"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Sunset", item.Title)
	assert.Equal(t, model.StringSlice{"nature", "sky"}, item.Tags)
	assert.Equal(t, f.alice.ID, item.UserID)
	assert.True(t, strings.HasPrefix(item.StoreKey, "media-gallery/media-"))
	assert.True(t, strings.HasSuffix(item.StoreKey, ".png"))
	assert.Equal(t, "https://cdn.test/"+item.StoreKey, item.URL)
	assert.True(t, f.store.Has(item.StoreKey))
	require.NotNil(t, item.UploadedBy)
	assert.Equal(t, "alice@example.com", item.UploadedBy.Email)

	var stored model.Media
	require.NoError(t, f.db.Where("id = ?", item.ID).First(&stored).Error)
	assert.Equal(t, item.Tags, stored.Tags)
}

func TestUploadKeepsDuplicateTags(t *testing.T) {
	f := newMediaFixture(t)

	item, err := f.svc.Upload(context.Background(), actor(f.alice), service.UploadInput{
		Title: "Waves",
		Tags:  []string{"sea", "Sea", " sea ", ""},
		Body:  strings.NewReader("x"),
	})
	require.NoError(t, err)
	assert.Equal(t, model.StringSlice{"sea", "Sea", "sea"}, item.Tags)
}

func TestUploadValidation(t *testing.T) {
	f := newMediaFixture(t)

	_, err := f.svc.Upload(context.Background(), actor(f.alice), service.UploadInput{Title: "  ", Body: strings.NewReader("x")})
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))

	_, err = f.svc.Upload(context.Background(), actor(f.alice), service.UploadInput{Title: "t", Tags: []string{"a,b"}, Body: strings.NewReader("x")})
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
	assert.Zero(t, f.store.Len())
}

func TestUploadStoreFailureWritesNoMetadata(t *testing.T) {
	f := newMediaFixture(t)
	f.store.PutErr = errors.New("bucket gone")

	_, err := f.svc.Upload(context.Background(), actor(f.alice), service.UploadInput{Title: "t", MimeType: "image/png", Body: strings.NewReader("x")})
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))

	var count int64
	require.NoError(t, f.db.Model(&model.Media{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUploadMetadataFailureRemovesObject(t *testing.T) {
	f := newMediaFixture(t)
	require.NoError(t, f.db.Migrator().DropTable(&model.Media{}))

	_, err := f.svc.Upload(context.Background(), actor(f.alice), service.UploadInput{Title: "t", MimeType: "image/png", Body: strings.NewReader("x")})
	assert.Error(t, err)
	assert.Zero(t, f.store.Len(), "object must be removed when metadata can't be saved")
}

func TestListOwnAndShared(t *testing.T) {
	f := newMediaFixture(t)
	ctx := context.Background()

	testutil.CreateMedia(t, f.db, f.store, f.alice, "Beach day", false, "sea", "summer")
	testutil.CreateMedia(t, f.db, f.store, f.alice, "Mountain", true, "hike")
	testutil.CreateMedia(t, f.db, f.store, f.bob, "Bob shared", true, "city")
	testutil.CreateMedia(t, f.db, f.store, f.bob, "Bob private", false, "secret")

	page, err := f.svc.List(ctx, actor(f.alice), service.ListQuery{})
	require.NoError(t, err)
	assert.Len(t, page.Media, 2)
	assert.EqualValues(t, 2, page.Pagination.TotalItems)
	assert.Equal(t, []string{"hike", "sea", "summer"}, page.AvailableTags)

	shared, err := f.svc.List(ctx, actor(f.alice), service.ListQuery{Shared: true})
	require.NoError(t, err)
	assert.Len(t, shared.Media, 2)
	for _, m := range shared.Media {
		assert.True(t, m.IsShared)
		assert.NotNil(t, m.UploadedBy)
	}
	assert.Equal(t, []string{"hike", "sea", "summer"}, shared.AvailableTags, "tags always come from the actor's own media")
	assert.True(t, shared.Filters.Shared)
}

func TestListSearchAndTags(t *testing.T) {
	f := newMediaFixture(t)
	ctx := context.Background()

	testutil.CreateMedia(t, f.db, f.store, f.alice, "Beach day", false, "sea")
	testutil.CreateMedia(t, f.db, f.store, f.alice, "Forest", false, "trees", "green")
	testutil.CreateMedia(t, f.db, f.store, f.alice, "City lights", false, "night", "seaside")
	testutil.CreateMedia(t, f.db, f.store, f.alice, "100% pure", false)

	tests := []struct {
		name   string
		q      service.ListQuery
		titles []string
	}{
		{"search title ignores case", service.ListQuery{Search: "BEACH"}, []string{"Beach day"}},
		{"search matches tags", service.ListQuery{Search: "tree"}, []string{"Forest"}},
		{"search escapes wildcards", service.ListQuery{Search: "%"}, []string{"100% pure"}},
		{"tag filter is exact", service.ListQuery{Tags: []string{"sea"}}, []string{"Beach day"}},
		{"any of several tags", service.ListQuery{Tags: []string{"green", "night"}, SortBy: "title", Order: "asc"}, []string{"City lights", "Forest"}},
		{"search and tags combined", service.ListQuery{Search: "city", Tags: []string{"sea"}}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := f.svc.List(ctx, actor(f.alice), tt.q)
			require.NoError(t, err)

			titles := []string{}
			for _, m := range page.Media {
				titles = append(titles, m.Title)
			}
			assert.Equal(t, tt.titles, titles)
		})
	}
}

func TestListPagination(t *testing.T) {
	f := newMediaFixture(t)
	ctx := context.Background()

	for _, title := range []string{"a", "b", "c", "d", "e"} {
		testutil.CreateMedia(t, f.db, f.store, f.alice, title, false)
	}

	page, err := f.svc.List(ctx, actor(f.alice), service.ListQuery{Page: 2, Limit: 2, SortBy: "title", Order: "asc"})
	require.NoError(t, err)

	require.Len(t, page.Media, 2)
	assert.Equal(t, "c", page.Media[0].Title)
	assert.Equal(t, service.Pagination{CurrentPage: 2, TotalPages: 3, TotalItems: 5, HasNext: true, HasPrev: true}, page.Pagination)

	last, err := f.svc.List(ctx, actor(f.alice), service.ListQuery{Page: 3, Limit: 2, SortBy: "title", Order: "asc"})
	require.NoError(t, err)
	assert.Len(t, last.Media, 1)
	assert.False(t, last.Pagination.HasNext)

	for _, q := range []service.ListQuery{{Page: -1}, {Limit: 101}, {SortBy: "password_hash"}, {Order: "sideways"}} {
		_, err := f.svc.List(ctx, actor(f.alice), q)
		assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err), "%+v", q)
	}
}

func TestGetUpdateDeletePermissions(t *testing.T) {
	f := newMediaFixture(t)
	ctx := context.Background()

	private := testutil.CreateMedia(t, f.db, f.store, f.alice, "Private", false)
	shared := testutil.CreateMedia(t, f.db, f.store, f.alice, "Shared", true)

	_, err := f.svc.Get(ctx, actor(f.bob), private.ID)
	assert.ErrorIs(t, err, service.ErrForbidden)

	got, err := f.svc.Get(ctx, actor(f.bob), shared.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shared", got.Title)

	_, err = f.svc.Get(ctx, actor(f.bob), "abcdefghABCDEFGH")
	assert.ErrorIs(t, err, service.ErrMediaNotFound)

	_, err = f.svc.Get(ctx, actor(f.bob), "not-an-id")
	assert.ErrorIs(t, err, service.ErrInvalidID)

	_, err = f.svc.Update(ctx, actor(f.bob), shared.ID, service.UpdateInput{Title: "mine now"})
	assert.ErrorIs(t, err, service.ErrForbidden)

	assert.ErrorIs(t, f.svc.Delete(ctx, actor(f.bob), shared.ID), service.ErrForbidden)
	assert.True(t, f.store.Has(shared.StoreKey))
}

func TestUpdate(t *testing.T) {
	f := newMediaFixture(t)
	ctx := context.Background()
	item := testutil.CreateMedia(t, f.db, f.store, f.alice, "Old", true, "x")

	_, err := f.svc.Update(ctx, actor(f.alice), item.ID, service.UpdateInput{Title: ""})
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))

	updated, err := f.svc.Update(ctx, actor(f.alice), item.ID, service.UpdateInput{
		Title:    "New",
		Tags:     []string{"y", "z"},
		IsShared: false,
	})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Title)

	var stored model.Media
	require.NoError(t, f.db.Where("id = ?", item.ID).First(&stored).Error)
	assert.Equal(t, "New", stored.Title)
	assert.Equal(t, model.StringSlice{"y", "z"}, stored.Tags)
	assert.False(t, stored.IsShared, "false must be written")
	assert.Empty(t, stored.Description)
}

func TestDeleteRemovesMetadataEvenIfStoreFails(t *testing.T) {
	f := newMediaFixture(t)
	ctx := context.Background()

	kept := testutil.CreateMedia(t, f.db, f.store, f.alice, "Kept", false)
	gone := testutil.CreateMedia(t, f.db, f.store, f.alice, "Gone", false)

	require.NoError(t, f.svc.Delete(ctx, actor(f.alice), kept.ID))
	assert.False(t, f.store.Has(kept.StoreKey))

	f.store.DeleteErr = errors.New("store unavailable")
	require.NoError(t, f.svc.Delete(ctx, actor(f.alice), gone.ID))

	_, err := f.svc.Get(ctx, actor(f.alice), gone.ID)
	assert.ErrorIs(t, err, service.ErrMediaNotFound)
}
