package auth

import (
	"net/http"

	"bitwise74/gallery-api/app/respond"
	"bitwise74/gallery-api/internal"

	"github.com/gin-gonic/gin"
)

type forgotBody struct {
	Email string `json:"email"`
}

type resetBody struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

func AuthForgotPassword(c *gin.Context, d *internal.Deps) {
	var data forgotBody
	if err := c.ShouldBindJSON(&data); err != nil {
		respond.BadRequest(c, "Invalid request body")
		return
	}

	email, err := d.Accounts.ForgotPassword(c.Request.Context(), data.Email)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Password reset OTP sent to your email",
		"email":   email,
	})
}

func AuthResetPassword(c *gin.Context, d *internal.Deps) {
	var data resetBody
	if err := c.ShouldBindJSON(&data); err != nil {
		respond.BadRequest(c, "Invalid request body")
		return
	}

	err := d.Accounts.ResetPassword(c.Request.Context(), data.Email, data.OTP, data.NewPassword)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Password reset successfully",
	})
}
