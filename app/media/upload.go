package media

import (
	"errors"
	"net/http"

	"bitwise74/gallery-api/app/respond"
	"bitwise74/gallery-api/internal"
	"bitwise74/gallery-api/internal/service"
	"bitwise74/gallery-api/pkg/middleware"
	"bitwise74/gallery-api/pkg/validators"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func MediaUpload(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	fh, err := c.FormFile("file")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":     "Request body size exceeds limit",
				"requestID": requestID,
			})
			return
		}

		respond.BadRequest(c, "Invalid multipart form")

		zap.L().Debug("Failed to parse upload form", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	code, f, mimeType, err := validators.ImageValidator(fh, d.MaxUploadSize)
	if err != nil {
		if code == http.StatusInternalServerError {
			c.AbortWithStatusJSON(code, gin.H{
				"error":     "Internal server error",
				"requestID": requestID,
			})

			zap.L().Error("Failed to validate uploaded file", zap.Error(err), zap.String("requestID", requestID))
			return
		}

		respond.BadRequest(c, err.Error())
		return
	}
	defer f.Close()

	media, err := d.Media.Upload(c.Request.Context(), middleware.Actor(c), service.UploadInput{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Tags:        service.SplitTags(c.PostForm("tags")),
		IsShared:    c.PostForm("isShared") == "true",
		FileName:    fh.Filename,
		MimeType:    mimeType,
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Media uploaded successfully!",
		"media":   media,
	})
}
