package handlers

import (
	"time"

	"github.com/docsense/docsense/internal/httperr"
	"github.com/docsense/docsense/internal/middleware"
	"github.com/docsense/docsense/internal/models"
	"github.com/docsense/docsense/internal/services"
	"github.com/gofiber/fiber/v2"
)

const refreshCookie = "refreshToken"

type AuthHandler struct {
	auth       *services.AuthService
	refreshTTL time.Duration
}

func NewAuthHandler(auth *services.AuthService, refreshTTL time.Duration) *AuthHandler {
	return &AuthHandler{auth: auth, refreshTTL: refreshTTL}
}

func userJSON(u *models.User) fiber.Map {
	return fiber.Map{
		"id":          u.ID,
		"username":    u.Username,
		"email":       u.Email,
		"phone":       u.Phone,
		"role":        u.Role,
		"is_approved": u.IsApproved,
		"is_rejected": u.IsRejected,
		"created_at":  u.CreatedAt,
	}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var in services.RegisterInput
	if err := c.BodyParser(&in); err != nil {
		return httperr.Respond(c, httperr.Validation("Invalid request body"))
	}

	user, err := h.auth.Register(c.Context(), in)
	if err != nil {
		return httperr.Respond(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Registration successful; awaiting admin approval.",
		"data":    fiber.Map{"user": userJSON(user)},
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&in); err != nil {
		return httperr.Respond(c, httperr.Validation("Invalid request body"))
	}

	user, accessToken, refreshToken, err := h.auth.Login(c.Context(), in.Email, in.Password)
	if err != nil {
		return httperr.Respond(c, err)
	}

	h.setRefreshCookie(c, refreshToken)
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Login successful",
		"data": fiber.Map{
			"accessToken": accessToken,
			"user":        userJSON(user),
		},
	})
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	accessToken, err := h.auth.Refresh(c.Context(), c.Cookies(refreshCookie))
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Token refreshed successfully",
		"data":    fiber.Map{"accessToken": accessToken},
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.auth.Logout(c.Context(), c.Cookies(refreshCookie)); err != nil {
		return httperr.Respond(c, err)
	}
	h.clearRefreshCookie(c)
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logout successful",
	})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, err := h.auth.Me(c.Context(), middleware.CallerID(c))
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "User profile retrieved successfully",
		"data":    fiber.Map{"user": userJSON(user)},
	})
}

func (h *AuthHandler) setRefreshCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookie,
		Value:    token,
		Path:     "/api/auth",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  time.Now().Add(h.refreshTTL),
	})
}

func (h *AuthHandler) clearRefreshCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookie,
		Value:    "",
		Path:     "/api/auth",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  time.Now().Add(-time.Hour),
	})
}
