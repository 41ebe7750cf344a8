package service_test

import (
	"context"
	"testing"
	"time"

	"bitwise74/gallery-api/internal/service"
	"bitwise74/gallery-api/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileOrphans(t *testing.T) {
	f := newMediaFixture(t)
	j := &service.Janitor{DB: f.db, Store: f.store, Folder: service.DefaultFolder, Grace: time.Hour}

	kept := testutil.CreateMedia(t, f.db, f.store, f.alice, "Kept", false)
	f.store.PutAt("media-gallery/media-old.png", []byte("x"), time.Now().Add(-2*time.Hour))
	f.store.PutAt("media-gallery/media-inflight.png", []byte("x"), time.Now())
	f.store.PutAt("elsewhere/old.png", []byte("x"), time.Now().Add(-48*time.Hour))

	removed, err := j.ReconcileOrphans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.True(t, f.store.Has(kept.StoreKey))
	assert.False(t, f.store.Has("media-gallery/media-old.png"))
	assert.True(t, f.store.Has("media-gallery/media-inflight.png"), "objects inside the grace period are kept")
	assert.True(t, f.store.Has("elsewhere/old.png"), "objects outside the folder are never touched")
}

func TestJanitorStart(t *testing.T) {
	j := &service.Janitor{}

	_, err := j.Start("not a schedule", service.DefaultOrphansSchedule)
	assert.Error(t, err)

	c, err := j.Start(service.DefaultCodesSchedule, service.DefaultOrphansSchedule)
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 2)
	c.Stop()
}
