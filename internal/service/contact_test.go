package service_test

import (
	"context"
	"strings"
	"testing"

	"bitwise74/gallery-api/internal/apperr"
	"bitwise74/gallery-api/internal/model"
	"bitwise74/gallery-api/internal/policy"
	"bitwise74/gallery-api/internal/service"
	"bitwise74/gallery-api/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContactCreate(t *testing.T) {
	db := testutil.NewDB(t)
	s := &service.Contacts{DB: db}
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice@example.com", "secret1", model.RoleUser)

	anon, err := s.Create(ctx, nil, service.ContactInput{Name: "Anon", Email: "ANON@example.com", Message: "Hello there, friends"})
	require.NoError(t, err)
	assert.Equal(t, "anon@example.com", anon.Email)
	assert.Nil(t, anon.UserID)
	assert.Nil(t, anon.User)
	assert.Equal(t, model.ContactNew, anon.Status)

	linked, err := s.Create(ctx, actor(alice), service.ContactInput{Name: "Alice", Email: "other@example.com", Message: "Logged in message"})
	require.NoError(t, err)
	require.NotNil(t, linked.UserID)
	assert.Equal(t, alice.ID, *linked.UserID)
	require.NotNil(t, linked.User)
	assert.Equal(t, "alice@example.com", linked.User.Email)

	tests := []struct {
		name string
		in   service.ContactInput
	}{
		{"short name", service.ContactInput{Name: "A", Email: "a@example.com", Message: "long enough message"}},
		{"bad email", service.ContactInput{Name: "Al", Email: "nope", Message: "long enough message"}},
		{"short message", service.ContactInput{Name: "Al", Email: "a@example.com", Message: "hi"}},
		{"long message", service.ContactInput{Name: "Al", Email: "a@example.com", Message: strings.Repeat("x", 1001)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(ctx, nil, tt.in)
			assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
		})
	}
}

func TestContactOwnershipByReferenceOrEmail(t *testing.T) {
	db := testutil.NewDB(t)
	s := &service.Contacts{DB: db}
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice@example.com", "secret1", model.RoleUser)
	bob := testutil.CreateUser(t, db, "bob@example.com", "secret1", model.RoleUser)

	// sent anonymously before alice had an account
	claimed, err := s.Create(ctx, nil, service.ContactInput{Name: "Alice", Email: "Alice@Example.com", Message: "Sent before signing up"})
	require.NoError(t, err)
	_, err = s.Create(ctx, actor(alice), service.ContactInput{Name: "Alice", Email: "alt@example.com", Message: "Sent while logged in"})
	require.NoError(t, err)
	_, err = s.Create(ctx, actor(bob), service.ContactInput{Name: "Bob", Email: "bob@example.com", Message: "Not for alice to see"})
	require.NoError(t, err)

	page, err := s.ListOwn(ctx, actor(alice), 0, 0)
	require.NoError(t, err)
	assert.Len(t, page.Messages, 2)
	assert.EqualValues(t, 2, page.Pagination.TotalItems)

	updated, err := s.Update(ctx, actor(alice), claimed.ID, service.ContactUpdate{Name: "Alice B", Message: "Edited after signing up"})
	require.NoError(t, err)
	assert.Equal(t, "Alice B", updated.Name)

	_, err = s.Update(ctx, actor(bob), claimed.ID, service.ContactUpdate{Name: "Bob", Message: "Hijacked message"})
	assert.ErrorIs(t, err, service.ErrForbidden)

	_, err = s.Update(ctx, actor(alice), claimed.ID, service.ContactUpdate{Name: "A", Message: "Edited after signing up"})
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))

	_, err = s.Update(ctx, actor(alice), "abcdefghABCDEFGH", service.ContactUpdate{Name: "Al", Message: "nothing to edit"})
	assert.ErrorIs(t, err, service.ErrContactNotFound)

	assert.ErrorIs(t, s.Delete(ctx, actor(bob), claimed.ID), service.ErrForbidden)
	require.NoError(t, s.Delete(ctx, actor(alice), claimed.ID))
	assert.ErrorIs(t, s.Delete(ctx, actor(alice), claimed.ID), service.ErrContactNotFound)
}

func TestContactAdmin(t *testing.T) {
	db := testutil.NewDB(t)
	s := &service.Contacts{DB: db}
	ctx := context.Background()

	admin := testutil.CreateUser(t, db, "admin@example.com", "secret1", model.RoleAdmin)
	alice := testutil.CreateUser(t, db, "alice@example.com", "secret1", model.RoleUser)

	long, err := s.Create(ctx, nil, service.ContactInput{Name: "Anon", Email: "anon@example.com", Message: strings.Repeat("a", 60)})
	require.NoError(t, err)
	_, err = s.Create(ctx, actor(alice), service.ContactInput{Name: "Alice", Email: "alice@example.com", Message: "Please add albums"})
	require.NoError(t, err)

	_, err = s.AdminList(ctx, actor(alice), service.AdminQuery{})
	assert.ErrorIs(t, err, service.ErrForbidden)

	_, err = s.AdminList(ctx, nil, service.AdminQuery{})
	assert.ErrorIs(t, err, service.ErrForbidden)

	all, err := s.AdminList(ctx, actor(admin), service.AdminQuery{})
	require.NoError(t, err)
	assert.Len(t, all.Contacts, 2)
	assert.Equal(t, service.ContactStatistics{TotalMessages: 2, WithUserAccount: 1, WithoutUserAccount: 1}, all.Statistics)

	found, err := s.AdminList(ctx, actor(admin), service.AdminQuery{Search: "ALBUMS"})
	require.NoError(t, err)
	require.Len(t, found.Contacts, 1)
	assert.Equal(t, "Alice", found.Contacts[0].Name)
	assert.Equal(t, int64(2), found.Statistics.TotalMessages, "statistics ignore the search")

	_, err = s.AdminList(ctx, actor(admin), service.AdminQuery{SortBy: "message"})
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))

	notes := "called back"
	updated, err := s.AdminUpdate(ctx, actor(admin), long.ID, service.AdminContactUpdate{Status: model.ContactReplied, AdminNotes: &notes})
	require.NoError(t, err)
	assert.Equal(t, model.ContactReplied, updated.Status)
	assert.Equal(t, "called back", updated.AdminNotes)

	_, err = s.AdminUpdate(ctx, actor(admin), long.ID, service.AdminContactUpdate{Status: "spam"})
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))

	_, err = s.AdminUpdate(ctx, actor(alice), long.ID, service.AdminContactUpdate{Status: model.ContactRead})
	assert.ErrorIs(t, err, service.ErrForbidden)

	deleted, err := s.AdminDelete(ctx, actor(admin), long.ID)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 50)+"...", deleted.Message)

	_, err = s.AdminDelete(ctx, actor(admin), long.ID)
	assert.ErrorIs(t, err, service.ErrContactNotFound)
}

func TestContactAdminMayUseOwnerRoutes(t *testing.T) {
	db := testutil.NewDB(t)
	s := &service.Contacts{DB: db}
	ctx := context.Background()

	admin := testutil.CreateUser(t, db, "admin@example.com", "secret1", model.RoleAdmin)
	c, err := s.Create(ctx, nil, service.ContactInput{Name: "Anon", Email: "anon@example.com", Message: "Some message text"})
	require.NoError(t, err)

	assert.True(t, policy.Can(actor(admin), policy.OpDelete, c))
	assert.NoError(t, s.Delete(ctx, actor(admin), c.ID))
}
