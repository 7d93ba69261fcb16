package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/user/carteira/backend/internal/database"
	"github.com/user/carteira/backend/internal/models"
)

// UpdateRoleRequest defines the body for the admin role-update endpoint.
type UpdateRoleRequest struct {
	UserID  uuid.UUID `json:"userId"`
	NewRole string    `json:"newRole"`
}

// Me returns the authenticated user's profile.
func Me(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID in token"})
	}

	user, err := database.GetUserByID(c.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("error fetching user")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve user"})
	}
	if user == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}

	user.Password = ""
	return c.JSON(fiber.Map{"user": user})
}

// Role returns just the caller's role, read from the token claims.
// The SPA polls this to decide whether to show admin screens.
func Role(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid role in token"})
	}
	return c.JSON(fiber.Map{"role": role})
}

// ListUsers returns every account. Admin only.
func ListUsers(c *fiber.Ctx) error {
	users, err := database.ListUsers(c.Context())
	if err != nil {
		log.Error().Err(err).Msg("error listing users")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list users"})
	}
	return c.JSON(fiber.Map{"users": users})
}

// UpdateRole changes another user's role. Admin only.
func UpdateRole(c *fiber.Ctx) error {
	req := new(UpdateRoleRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}

	if req.UserID == uuid.Nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "userId is required"})
	}
	if req.NewRole != models.RoleCliente && req.NewRole != models.RoleAdmin {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "newRole must be cliente or admin"})
	}

	updated, err := database.UpdateUserRole(c.Context(), req.UserID, req.NewRole)
	if err != nil {
		log.Error().Err(err).Str("user_id", req.UserID.String()).Msg("error updating role")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update role"})
	}
	if !updated {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}

	return c.JSON(fiber.Map{"userId": req.UserID, "role": req.NewRole})
}
