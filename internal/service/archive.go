package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"
	"slices"
	"strings"
	"time"

	"bitwise74/gallery-api/internal/apperr"
	"bitwise74/gallery-api/internal/metrics"
	"bitwise74/gallery-api/internal/model"
	"bitwise74/gallery-api/internal/policy"
	"bitwise74/gallery-api/pkg/util"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxArchiveItemSize bounds how much of a single object is buffered while
// building an archive
const maxArchiveItemSize = 64 << 20

var (
	ErrNothingArchived = errors.New("no item could be added to the archive")
	ErrNoAccessible    = apperr.New(apperr.NotFound, "No accessible media found")

	unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

// Archiver bundles media items into a single streamed ZIP file
type Archiver struct {
	DB    *gorm.DB
	Store ObjectStore
}

// ArchiveName is the file name suggested to the client for a download
func ArchiveName(t time.Time) string {
	return fmt.Sprintf("media-gallery-%d.zip", t.UnixMilli())
}

// Resolve loads the items the actor may read out of ids. Missing and
// inaccessible items are dropped silently. The result keeps the order of ids
// and contains every item once.
func (a *Archiver) Resolve(ctx context.Context, actor *policy.Actor, ids []string) ([]model.Media, error) {
	if actor == nil {
		return nil, ErrForbidden
	}

	if len(ids) == 0 {
		return nil, invalid("Media IDs array is required")
	}

	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if !util.IsID(id) {
			return nil, ErrInvalidID
		}

		if !slices.Contains(unique, id) {
			unique = append(unique, id)
		}
	}

	var found []model.Media

	err := a.DB.WithContext(ctx).
		Where("id IN ? AND (user_id = ? OR is_shared = ?)", unique, actor.ID, true).
		Find(&found).
		Error
	if err != nil {
		return nil, internalErr("Failed to fetch media", err)
	}

	byID := make(map[string]model.Media, len(found))
	for _, m := range found {
		if policy.Can(actor, policy.OpRead, &m) {
			byID[m.ID] = m
		}
	}

	items := make([]model.Media, 0, len(byID))
	for _, id := range unique {
		if m, ok := byID[id]; ok {
			items = append(items, m)
		}
	}

	if len(items) == 0 {
		return nil, ErrNoAccessible
	}

	return items, nil
}

// EntryName builds the name of an item inside the archive
func EntryName(m *model.Media) string {
	ext := path.Ext(m.OriginalName)
	if ext == "" {
		ext = ".jpg"
	}

	return unsafeNameChars.ReplaceAllString(m.Title, "_") + ext
}

func uniqueEntryName(m *model.Media, used map[string]bool) string {
	name := EntryName(m)
	if used[name] {
		ext := path.Ext(name)
		name = strings.TrimSuffix(name, ext) + "_" + m.ID + ext
	}

	used[name] = true
	return name
}

// Write streams items into w as a ZIP archive, one item at a time. Items
// that can't be fetched are skipped. If nothing was added the archive is
// left unfinished and ErrNothingArchived is returned. Nothing reaches w
// before the first entry is written.
func (a *Archiver) Write(ctx context.Context, w io.Writer, items []model.Media) (int, error) {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	used := map[string]bool{}
	added := 0

	for i := range items {
		if err := ctx.Err(); err != nil {
			return added, err
		}

		m := &items[i]

		data, err := a.fetch(ctx, m.StoreKey)
		if err != nil {
			metrics.ArchiveEntries.WithLabelValues("skipped").Inc()
			zap.L().Warn("Skipping archive item", zap.String("mediaID", m.ID), zap.Error(err))
			continue
		}

		entry, err := zw.CreateHeader(&zip.FileHeader{
			Name:     uniqueEntryName(m, used),
			Method:   zip.Deflate,
			Modified: m.CreatedAt,
		})
		if err != nil {
			return added, fmt.Errorf("failed to create archive entry, %w", err)
		}

		if _, err := entry.Write(data); err != nil {
			return added, fmt.Errorf("failed to write archive entry, %w", err)
		}

		if err := zw.Flush(); err != nil {
			return added, fmt.Errorf("failed to flush archive, %w", err)
		}

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}

		added++
		metrics.ArchiveEntries.WithLabelValues("added").Inc()
	}

	if added == 0 {
		return 0, ErrNothingArchived
	}

	if err := zw.Close(); err != nil {
		return added, fmt.Errorf("failed to finalize archive, %w", err)
	}

	return added, nil
}

func (a *Archiver) fetch(ctx context.Context, key string) ([]byte, error) {
	rc, err := a.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxArchiveItemSize+1))
	if err != nil {
		return nil, err
	}

	if len(data) > maxArchiveItemSize {
		return nil, errors.New("object too large for archive")
	}

	return data, nil
}
