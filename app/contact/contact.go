// Package contact contains the contact form handlers mounted under
// /api/contact
package contact

import (
	"net/http"
	"strconv"

	"bitwise74/gallery-api/app/respond"
	"bitwise74/gallery-api/internal"
	"bitwise74/gallery-api/internal/service"
	"bitwise74/gallery-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type contactBody struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

func pageParams(c *gin.Context) (page, limit int, ok bool) {
	for key, dst := range map[string]*int{"page": &page, "limit": &limit} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}

		n, err := strconv.Atoi(raw)
		if err != nil {
			respond.BadRequest(c, "Page and limit must be numbers")
			return 0, 0, false
		}

		*dst = n
	}

	return page, limit, true
}

func ContactCreate(c *gin.Context, d *internal.Deps) {
	var data contactBody
	if err := c.ShouldBindJSON(&data); err != nil {
		respond.BadRequest(c, "Invalid request body")
		return
	}

	contact, err := d.Contacts.Create(c.Request.Context(), middleware.Actor(c), service.ContactInput{
		Name:    data.Name,
		Email:   data.Email,
		Message: data.Message,
	})
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Your message has been sent successfully! We'll get back to you soon.",
		"contact": contact,
	})
}

func ContactMessages(c *gin.Context, d *internal.Deps) {
	page, limit, ok := pageParams(c)
	if !ok {
		return
	}

	res, err := d.Contacts.ListOwn(c.Request.Context(), middleware.Actor(c), page, limit)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func ContactUpdate(c *gin.Context, d *internal.Deps) {
	var data contactBody
	if err := c.ShouldBindJSON(&data); err != nil {
		respond.BadRequest(c, "Invalid request body")
		return
	}

	contact, err := d.Contacts.Update(c.Request.Context(), middleware.Actor(c), c.Param("id"), service.ContactUpdate{
		Name:    data.Name,
		Message: data.Message,
	})
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Your message has been updated successfully!",
		"contact": contact,
	})
}

func ContactDelete(c *gin.Context, d *internal.Deps) {
	if err := d.Contacts.Delete(c.Request.Context(), middleware.Actor(c), c.Param("id")); err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Your message has been deleted successfully!",
	})
}
