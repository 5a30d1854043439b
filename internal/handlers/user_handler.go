package handlers

import (
	"github.com/docsense/docsense/internal/httperr"
	"github.com/docsense/docsense/internal/middleware"
	"github.com/docsense/docsense/internal/services"
	"github.com/gofiber/fiber/v2"
)

type UserHandler struct {
	admin     *services.AdminService
	documents *services.DocumentService
}

func NewUserHandler(admin *services.AdminService, documents *services.DocumentService) *UserHandler {
	return &UserHandler{admin: admin, documents: documents}
}

// MyDocuments lists the caller's own uploads for the dashboard.
func (h *UserHandler) MyDocuments(c *fiber.Ctx) error {
	docs, err := h.documents.MyDocuments(c.Context(), middleware.CallerID(c))
	if err != nil {
		return httperr.Respond(c, err)
	}

	items := make([]fiber.Map, 0, len(docs))
	for i := range docs {
		items = append(items, documentJSON(&docs[i]))
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Documents retrieved successfully",
		"data": fiber.Map{
			"documents": items,
			"count":     len(items),
		},
	})
}

// Personalize updates the caller's display fields.
func (h *UserHandler) Personalize(c *fiber.Ctx) error {
	var in struct {
		Username string `json:"username"`
		Phone    string `json:"phone"`
	}
	if err := c.BodyParser(&in); err != nil {
		return httperr.Respond(c, httperr.Validation("Invalid request body"))
	}

	user, err := h.admin.UpdateProfile(c.Context(), middleware.CallerID(c), in.Username, in.Phone)
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Personalization updated successfully",
		"data":    fiber.Map{"user": userJSON(user)},
	})
}
