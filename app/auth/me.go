package auth

import (
	"net/http"

	"bitwise74/gallery-api/app/respond"
	"bitwise74/gallery-api/internal"

	"github.com/gin-gonic/gin"
)

func AuthMe(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	user, err := d.Accounts.Me(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": user,
	})
}
