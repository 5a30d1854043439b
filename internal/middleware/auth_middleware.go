package middleware

import (
	"errors"
	"strings"

	"github.com/docsense/docsense/internal/authz"
	"github.com/docsense/docsense/internal/store"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Locals keys populated by Protected.
const (
	LocalUserID = "user_id"
	LocalRole   = "role"
)

// Protected validates the bearer access token and re-checks that the account
// still exists and is approved, so revoking approval cuts off live sessions
// at the next request.
func Protected(users store.UserStore, accessSecret string) fiber.Handler {
	secret := []byte(accessSecret)

	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			return unauthorized(c, "Access token required")
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")
		if tokenString == "" {
			return unauthorized(c, "Access token required")
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			return unauthorized(c, "Invalid access token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return unauthorized(c, "Invalid token claims")
		}
		rawID, _ := claims["user_id"].(string)
		userID, err := primitive.ObjectIDFromHex(rawID)
		if err != nil {
			return unauthorized(c, "Invalid token payload")
		}

		user, err := users.ByID(c.Context(), userID)
		if errors.Is(err, store.ErrNotFound) {
			return unauthorized(c, "User not found")
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Internal server error",
			})
		}
		if !user.CanAuthenticate() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"message": "Account is not approved or has been rejected",
			})
		}

		c.Locals(LocalUserID, user.ID)
		c.Locals(LocalRole, user.Role)
		return c.Next()
	}
}

// AdminOnly gates a route group to the administrative role. It must run after
// Protected.
func AdminOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals(LocalRole).(string)
		if !authz.CanManageRequests(role) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"message": "Insufficient permissions. Access denied.",
			})
		}
		return c.Next()
	}
}

// CallerID extracts the authenticated user's id from the request context.
func CallerID(c *fiber.Ctx) primitive.ObjectID {
	id, _ := c.Locals(LocalUserID).(primitive.ObjectID)
	return id
}

// CallerRole extracts the authenticated user's role from the request context.
func CallerRole(c *fiber.Ctx) string {
	role, _ := c.Locals(LocalRole).(string)
	return role
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"message": msg,
	})
}
