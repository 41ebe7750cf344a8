package auth

import (
	"net/http"

	"bitwise74/gallery-api/app/respond"
	"bitwise74/gallery-api/internal"

	"github.com/gin-gonic/gin"
)

type googleBody struct {
	TokenID string `json:"tokenId"`
}

func AuthGoogle(c *gin.Context, d *internal.Deps) {
	var data googleBody
	if err := c.ShouldBindJSON(&data); err != nil || data.TokenID == "" {
		respond.BadRequest(c, "Google token is required")
		return
	}

	res, err := d.Accounts.GoogleAuth(c.Request.Context(), data.TokenID)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Google authentication successful",
		"token":   res.Token,
		"user":    res.User,
	})
}
