// Package respond writes the JSON error bodies shared by every handler
package respond

import (
	"net/http"

	"bitwise74/gallery-api/internal/apperr"
	"bitwise74/gallery-api/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error answers with the status and message that belong to err. Internal
// failures are logged and replaced by a generic message.
func Error(c *gin.Context, err error) {
	requestID := middleware.RequestID(c)
	status := apperr.Status(err)

	if status >= http.StatusInternalServerError {
		zap.L().Error("Request failed",
			zap.Error(err),
			zap.String("requestID", requestID),
			zap.String("path", c.FullPath()),
		)
	}

	c.AbortWithStatusJSON(status, gin.H{
		"error":     apperr.Message(err),
		"requestID": requestID,
	})
}

// BadRequest answers 400 with msg
func BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":     msg,
		"requestID": middleware.RequestID(c),
	})
}
