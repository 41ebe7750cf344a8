package media

import (
	"net/http"

	"bitwise74/gallery-api/app/respond"
	"bitwise74/gallery-api/internal"
	"bitwise74/gallery-api/internal/service"
	"bitwise74/gallery-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type updateBody struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	// Tags may be sent as a comma separated string or as an array
	Tags     any  `json:"tags"`
	IsShared bool `json:"isShared"`
}

func bodyTags(v any) ([]string, bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case string:
		return service.SplitTags(t), true
	case []any:
		tags := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			tags = append(tags, s)
		}
		return tags, true
	default:
		return nil, false
	}
}

func MediaGet(c *gin.Context, d *internal.Deps) {
	media, err := d.Media.Get(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"media": media,
	})
}

func MediaUpdate(c *gin.Context, d *internal.Deps) {
	var data updateBody
	if err := c.ShouldBindJSON(&data); err != nil {
		respond.BadRequest(c, "Invalid request body")
		return
	}

	tags, ok := bodyTags(data.Tags)
	if !ok {
		respond.BadRequest(c, "Tags must be a string or an array of strings")
		return
	}

	media, err := d.Media.Update(c.Request.Context(), middleware.Actor(c), c.Param("id"), service.UpdateInput{
		Title:       data.Title,
		Description: data.Description,
		Tags:        tags,
		IsShared:    data.IsShared,
	})
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Media updated successfully!",
		"media":   media,
	})
}

func MediaDelete(c *gin.Context, d *internal.Deps) {
	if err := d.Media.Delete(c.Request.Context(), middleware.Actor(c), c.Param("id")); err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Media deleted successfully!",
	})
}
