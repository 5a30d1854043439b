package handlers

import (
	"github.com/docsense/docsense/internal/httperr"
	"github.com/docsense/docsense/internal/middleware"
	"github.com/docsense/docsense/internal/services"
	"github.com/gofiber/fiber/v2"
)

type AdminHandler struct {
	admin *services.AdminService
}

func NewAdminHandler(admin *services.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

func (h *AdminHandler) PendingRequests(c *fiber.Ctx) error {
	users, err := h.admin.PendingUsers(c.Context())
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Pending requests retrieved successfully",
		"data": fiber.Map{
			"users": users,
			"count": len(users),
		},
	})
}

func (h *AdminHandler) AllUsers(c *fiber.Ctx) error {
	users, stats, err := h.admin.AllUsers(c.Context())
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Users retrieved successfully",
		"data": fiber.Map{
			"users": users,
			"stats": stats,
		},
	})
}

func (h *AdminHandler) ApproveUser(c *fiber.Ctx) error {
	id, err := parseObjectID(c.Params("userId"))
	if err != nil {
		return httperr.Respond(c, err)
	}

	user, err := h.admin.ApproveUser(c.Context(), id)
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "User approved successfully",
		"data":    fiber.Map{"user": userJSON(user)},
	})
}

func (h *AdminHandler) RejectUser(c *fiber.Ctx) error {
	id, err := parseObjectID(c.Params("userId"))
	if err != nil {
		return httperr.Respond(c, err)
	}

	user, err := h.admin.RejectUser(c.Context(), id)
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "User rejected successfully",
		"data":    fiber.Map{"user": userJSON(user)},
	})
}

func (h *AdminHandler) ToggleApproval(c *fiber.Ctx) error {
	id, err := parseObjectID(c.Params("userId"))
	if err != nil {
		return httperr.Respond(c, err)
	}

	user, err := h.admin.ToggleApproval(c.Context(), id)
	if err != nil {
		return httperr.Respond(c, err)
	}

	msg := "User disapproved successfully"
	if user.IsApproved {
		msg = "User approved successfully"
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": msg,
		"data":    fiber.Map{"user": userJSON(user)},
	})
}

func (h *AdminHandler) UpdateUserRole(c *fiber.Ctx) error {
	id, err := parseObjectID(c.Params("userId"))
	if err != nil {
		return httperr.Respond(c, err)
	}

	var in struct {
		Role string `json:"role"`
	}
	if err := c.BodyParser(&in); err != nil || in.Role == "" {
		return httperr.Respond(c, httperr.Validation("Role is required"))
	}

	user, err := h.admin.UpdateUserRole(c.Context(), middleware.CallerID(c), id, in.Role)
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "User role updated successfully",
		"data":    fiber.Map{"user": userJSON(user)},
	})
}

func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	id, err := parseObjectID(c.Params("userId"))
	if err != nil {
		return httperr.Respond(c, err)
	}

	if err := h.admin.DeleteUser(c.Context(), middleware.CallerID(c), id); err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "User deleted successfully",
	})
}
