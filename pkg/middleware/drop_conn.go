package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const dropConnKey = "dropConnection"

// DropConnection marks the response as broken. Once the handler chain
// returns, ConnectionDropper aborts the connection so the client never sees
// a cleanly terminated body.
func DropConnection(c *gin.Context) {
	c.Set(dropConnKey, true)
	c.Abort()
}

// ConnectionDropper must be the first middleware on the engine, outside any
// recovery middleware, so the abort panic reaches net/http untouched
func ConnectionDropper() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.GetBool(dropConnKey) {
			panic(http.ErrAbortHandler)
		}
	}
}
