package media

import (
	"fmt"
	"net/http"
	"time"

	"bitwise74/gallery-api/app/respond"
	"bitwise74/gallery-api/internal"
	"bitwise74/gallery-api/internal/service"
	"bitwise74/gallery-api/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type zipBody struct {
	MediaIDs []string `json:"mediaIds"`
}

// lazyWriter sends the download headers with the first archive byte, until
// then the handler is still free to answer with a JSON error
type lazyWriter struct {
	c       *gin.Context
	name    string
	started bool
}

func (w *lazyWriter) Write(p []byte) (int, error) {
	if !w.started {
		w.started = true

		h := w.c.Writer.Header()
		h.Set("Content-Type", "application/zip")
		h.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, w.name))
		w.c.Status(http.StatusOK)
	}

	return w.c.Writer.Write(p)
}

func (w *lazyWriter) Flush() {
	if w.started {
		w.c.Writer.Flush()
	}
}

func MediaDownloadZip(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var data zipBody
	if err := c.ShouldBindJSON(&data); err != nil {
		respond.BadRequest(c, "Please provide an array of media IDs")
		return
	}

	items, err := d.Archive.Resolve(c.Request.Context(), middleware.Actor(c), data.MediaIDs)
	if err != nil {
		respond.Error(c, err)
		return
	}

	w := &lazyWriter{c: c, name: service.ArchiveName(time.Now())}

	added, err := d.Archive.Write(c.Request.Context(), w, items)
	if err != nil {
		if !w.started {
			respond.Error(c, err)
			return
		}

		// the archive is already on its way, all we can do is cut it short
		zap.L().Warn("Archive stream aborted",
			zap.Error(err),
			zap.Int("added", added),
			zap.String("requestID", requestID),
		)
		middleware.DropConnection(c)
		return
	}

	zap.L().Debug("Archive sent", zap.Int("added", added), zap.Int("requested", len(items)), zap.String("requestID", requestID))
}
