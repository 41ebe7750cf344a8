package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bitwise74/gallery-api/internal/metrics"
	"bitwise74/gallery-api/internal/model"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultCodesSchedule   = "@every 1h"
	DefaultOrphansSchedule = "@every 24h"
	DefaultOrphanGrace     = time.Hour
	sweepTimeout           = 10 * time.Minute
)

// Janitor runs the periodic maintenance jobs: dropping codes that expired
// and removing store objects no media row points to
type Janitor struct {
	DB       *gorm.DB
	Accounts *Accounts
	Store    ObjectStore
	Folder   string
	// Objects younger than Grace are never considered orphans, an upload may
	// still be writing its metadata
	Grace time.Duration
	Now   func() time.Time
}

// Start schedules both sweeps and returns the running scheduler. Callers
// stop it on shutdown.
func (j *Janitor) Start(codesSpec, orphansSpec string) (*cron.Cron, error) {
	c := cron.New()

	if _, err := c.AddFunc(codesSpec, j.sweepCodes); err != nil {
		return nil, fmt.Errorf("invalid codes schedule %q, %w", codesSpec, err)
	}

	if _, err := c.AddFunc(orphansSpec, j.sweepOrphans); err != nil {
		return nil, fmt.Errorf("invalid orphans schedule %q, %w", orphansSpec, err)
	}

	c.Start()

	zap.L().Debug("Cleanup jobs attached", zap.String("codes", codesSpec), zap.String("orphans", orphansSpec))
	return c, nil
}

func (j *Janitor) sweepCodes() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	n, err := j.Accounts.ClearExpiredCodes(ctx)
	if err != nil {
		zap.L().Error("Failed to clear expired codes", zap.Error(err))
		return
	}

	if n > 0 {
		zap.L().Debug("Cleared expired codes", zap.Int64("count", n))
	}
}

func (j *Janitor) sweepOrphans() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, err := j.ReconcileOrphans(ctx); err != nil {
		zap.L().Error("Failed to reconcile store", zap.Error(err))
	}
}

// ReconcileOrphans deletes objects under the media folder that no media
// row references and returns how many were removed
func (j *Janitor) ReconcileOrphans(ctx context.Context) (int, error) {
	folder := j.Folder
	if folder == "" {
		folder = DefaultFolder
	}

	objects, err := j.Store.List(ctx, strings.TrimSuffix(folder, "/")+"/")
	if err != nil {
		return 0, fmt.Errorf("failed to list store objects, %w", err)
	}

	if len(objects) == 0 {
		return 0, nil
	}

	var known []string
	if err := j.DB.WithContext(ctx).Model(&model.Media{}).Pluck("store_key", &known).Error; err != nil {
		return 0, fmt.Errorf("failed to query media keys, %w", err)
	}

	referenced := make(map[string]struct{}, len(known))
	for _, k := range known {
		referenced[k] = struct{}{}
	}

	grace := j.Grace
	if grace <= 0 {
		grace = DefaultOrphanGrace
	}

	now := time.Now()
	if j.Now != nil {
		now = j.Now()
	}

	var orphans []string
	for _, o := range objects {
		if _, ok := referenced[o.Key]; ok {
			continue
		}

		if now.Sub(o.LastModified) < grace {
			continue
		}

		orphans = append(orphans, o.Key)
	}

	if len(orphans) == 0 {
		return 0, nil
	}

	if err := j.Store.DeleteMany(ctx, orphans); err != nil {
		return 0, fmt.Errorf("failed to delete orphaned objects, %w", err)
	}

	metrics.OrphansRemoved.Add(float64(len(orphans)))
	zap.L().Info("Removed orphaned store objects", zap.Int("count", len(orphans)))

	return len(orphans), nil
}
