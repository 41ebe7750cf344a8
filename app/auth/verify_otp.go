package auth

import (
	"net/http"

	"bitwise74/gallery-api/app/respond"
	"bitwise74/gallery-api/internal"

	"github.com/gin-gonic/gin"
)

type verifyBody struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func AuthVerifyOTP(c *gin.Context, d *internal.Deps) {
	var data verifyBody
	if err := c.ShouldBindJSON(&data); err != nil {
		respond.BadRequest(c, "Invalid request body")
		return
	}

	res, err := d.Accounts.VerifyOTP(c.Request.Context(), data.Email, data.OTP)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Email verified successfully",
		"token":   res.Token,
		"user":    res.User,
	})
}
