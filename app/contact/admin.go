package contact

import (
	"net/http"

	"bitwise74/gallery-api/app/respond"
	"bitwise74/gallery-api/internal"
	"bitwise74/gallery-api/internal/model"
	"bitwise74/gallery-api/internal/service"
	"bitwise74/gallery-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type adminUpdateBody struct {
	Status     model.ContactStatus `json:"status"`
	AdminNotes *string             `json:"adminNotes"`
}

func ContactAdminList(c *gin.Context, d *internal.Deps) {
	page, limit, ok := pageParams(c)
	if !ok {
		return
	}

	res, err := d.Contacts.AdminList(c.Request.Context(), middleware.Actor(c), service.AdminQuery{
		Search: c.Query("search"),
		SortBy: c.Query("sortBy"),
		Order:  c.Query("order"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func ContactAdminUpdate(c *gin.Context, d *internal.Deps) {
	var data adminUpdateBody
	if err := c.ShouldBindJSON(&data); err != nil {
		respond.BadRequest(c, "Invalid request body")
		return
	}

	contact, err := d.Contacts.AdminUpdate(c.Request.Context(), middleware.Actor(c), c.Param("id"), service.AdminContactUpdate{
		Status:     data.Status,
		AdminNotes: data.AdminNotes,
	})
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Message updated successfully!",
		"contact": contact,
	})
}

func ContactAdminDelete(c *gin.Context, d *internal.Deps) {
	deleted, err := d.Contacts.AdminDelete(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        "Message has been deleted successfully!",
		"deletedContact": deleted,
	})
}
