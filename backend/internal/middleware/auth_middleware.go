package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/user/carteira/backend/internal/auth"
	"github.com/user/carteira/backend/internal/models"
)

// Protected verifies the bearer token (or the `token` cookie the SPA
// sets) and stores the claims in the request context.
func Protected() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := ""

		authHeader := c.Get("Authorization")
		if authHeader != "" {
			// Expecting "Bearer <token>"
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid authorization header format"})
			}
			tokenString = parts[1]
		} else if cookie := c.Cookies("token"); cookie != "" {
			tokenString = cookie
		}

		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing authorization token"})
		}

		claims, err := auth.ValidateJWT(tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
		}

		c.Locals("userID", claims.UserID)
		c.Locals("email", claims.Email)
		c.Locals("role", claims.Role)

		return c.Next()
	}
}

// AdminOnly rejects callers whose token does not carry the admin role.
// Must run after Protected.
func AdminOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals("role").(string)
		if !ok || role != models.RoleAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Admin role required"})
		}
		return c.Next()
	}
}
