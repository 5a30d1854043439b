package handlers

import (
	"github.com/docsense/docsense/internal/httperr"
	"github.com/docsense/docsense/internal/services"
	"github.com/gofiber/fiber/v2"
)

type RoleHandler struct {
	roles *services.RoleService
}

func NewRoleHandler(roles *services.RoleService) *RoleHandler {
	return &RoleHandler{roles: roles}
}

func (h *RoleHandler) All(c *fiber.Ctx) error {
	roles, err := h.roles.All(c.Context())
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Roles retrieved successfully",
		"data":    fiber.Map{"roles": roles},
	})
}

// Active is public: registration needs the selectable roles before login.
func (h *RoleHandler) Active(c *fiber.Ctx) error {
	roles, err := h.roles.Active(c.Context())
	if err != nil {
		return httperr.Respond(c, err)
	}

	out := make([]fiber.Map, 0, len(roles))
	for _, r := range roles {
		out = append(out, fiber.Map{
			"name":        r.Name,
			"displayName": r.DisplayName,
			"description": r.Description,
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Active roles retrieved successfully",
		"data":    fiber.Map{"roles": out},
	})
}

func (h *RoleHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.roles.Stats(c.Context())
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Role statistics retrieved successfully",
		"data":    fiber.Map{"stats": stats},
	})
}

func (h *RoleHandler) Create(c *fiber.Ctx) error {
	var in services.CreateRoleInput
	if err := c.BodyParser(&in); err != nil {
		return httperr.Respond(c, httperr.Validation("Invalid request body"))
	}

	role, err := h.roles.Create(c.Context(), in)
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Role created successfully",
		"data":    fiber.Map{"role": role},
	})
}

func (h *RoleHandler) Update(c *fiber.Ctx) error {
	id, err := parseObjectID(c.Params("roleId"))
	if err != nil {
		return httperr.Respond(c, err)
	}

	var in services.UpdateRoleInput
	if err := c.BodyParser(&in); err != nil {
		return httperr.Respond(c, httperr.Validation("Invalid request body"))
	}

	role, err := h.roles.Update(c.Context(), id, in)
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Role updated successfully",
		"data":    fiber.Map{"role": role},
	})
}

func (h *RoleHandler) Delete(c *fiber.Ctx) error {
	id, err := parseObjectID(c.Params("roleId"))
	if err != nil {
		return httperr.Respond(c, err)
	}

	if err := h.roles.Delete(c.Context(), id); err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Role deleted successfully",
	})
}
