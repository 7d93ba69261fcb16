package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/user/carteira/backend/internal/database"
	"github.com/user/carteira/backend/internal/models"
)

// LevelRequest defines the body for creating or updating an asset's
// support/resistance record.
type LevelRequest struct {
	AssetCode string              `json:"asset_code"`
	AssetName string              `json:"asset_name"`
	Levels    []models.PriceLevel `json:"levels"`
}

func validateLevels(levels []models.PriceLevel) string {
	for _, lvl := range levels {
		if lvl.Type != "suporte" && lvl.Type != "resistencia" {
			return "Level type must be suporte or resistencia"
		}
		if lvl.Value.IsNegative() {
			return "Level value must not be negative"
		}
	}
	return ""
}

// ListLevels returns all support/resistance records, filtered by the
// optional `search` query parameter (case-insensitive substring on
// code or name). Available to any authenticated user.
func ListLevels(c *fiber.Ctx) error {
	search := c.Query("search")

	// An exact upper-cased code match short-circuits the substring scan.
	if code := normalizeAssetCode(search); code != "" {
		if lvl, err := database.GetLevelByAssetCode(c.Context(), code); err == nil && lvl != nil {
			return c.JSON(fiber.Map{"levels": []*models.SupportResistanceLevel{lvl}})
		}
	}

	levels, err := database.ListLevels(c.Context(), search)
	if err != nil {
		log.Error().Err(err).Msg("error listing support/resistance levels")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list levels"})
	}

	return c.JSON(fiber.Map{"levels": levels})
}

// CreateLevel registers the levels for an asset. Admin only; one
// record per asset code.
func CreateLevel(c *fiber.Ctx) error {
	adminID, ok := currentUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID in token"})
	}

	req := new(LevelRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}

	assetCode := normalizeAssetCode(req.AssetCode)
	if assetCode == "" || req.AssetName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "asset_code and asset_name are required"})
	}
	if msg := validateLevels(req.Levels); msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}

	existing, err := database.GetLevelByAssetCode(c.Context(), assetCode)
	if err != nil {
		log.Error().Err(err).Msg("error checking existing levels")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save levels"})
	}
	if existing != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Levels already registered for this asset"})
	}

	lvl := &models.SupportResistanceLevel{
		AssetCode: assetCode,
		AssetName: req.AssetName,
		Levels:    req.Levels,
		AdminID:   adminID,
	}
	if err := database.CreateLevel(c.Context(), lvl); err != nil {
		log.Error().Err(err).Msg("error creating levels")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save levels"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"level": lvl})
}

// UpdateLevel overwrites an existing record. Admin only.
func UpdateLevel(c *fiber.Ctx) error {
	adminID, ok := currentUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID in token"})
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid level id"})
	}

	req := new(LevelRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}
	if msg := validateLevels(req.Levels); msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}

	existing, err := database.GetLevelByID(c.Context(), id)
	if err != nil {
		log.Error().Err(err).Msg("error fetching levels")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update levels"})
	}
	if existing == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Levels not found"})
	}

	existing.AssetName = req.AssetName
	existing.Levels = req.Levels
	existing.AdminID = adminID

	updated, err := database.UpdateLevel(c.Context(), existing)
	if err != nil {
		log.Error().Err(err).Msg("error updating levels")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update levels"})
	}
	if !updated {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Levels not found"})
	}

	return c.JSON(fiber.Map{"level": existing})
}

// DeleteLevel removes a record. Admin only.
func DeleteLevel(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid level id"})
	}

	deleted, err := database.DeleteLevel(c.Context(), id)
	if err != nil {
		log.Error().Err(err).Msg("error deleting levels")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete levels"})
	}
	if !deleted {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Levels not found"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
