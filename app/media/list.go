// Package media contains the handlers mounted under /api/media
package media

import (
	"net/http"
	"strconv"

	"bitwise74/gallery-api/app/respond"
	"bitwise74/gallery-api/internal"
	"bitwise74/gallery-api/internal/service"
	"bitwise74/gallery-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// queryInt parses an optional integer query parameter, 0 when missing
func queryInt(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}

	return n, true
}

func MediaList(c *gin.Context, d *internal.Deps) {
	page, ok := queryInt(c, "page")
	if !ok {
		respond.BadRequest(c, "Page must be a number")
		return
	}

	limit, ok := queryInt(c, "limit")
	if !ok {
		respond.BadRequest(c, "Limit must be a number")
		return
	}

	res, err := d.Media.List(c.Request.Context(), middleware.Actor(c), service.ListQuery{
		Search: c.Query("search"),
		Tags:   service.SplitTags(c.Query("tags")),
		Page:   page,
		Limit:  limit,
		SortBy: c.Query("sortBy"),
		Order:  c.Query("order"),
		Shared: c.Query("shared") == "true",
	})
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}
