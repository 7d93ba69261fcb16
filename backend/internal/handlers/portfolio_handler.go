package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/user/carteira/backend/internal/database"
	"github.com/user/carteira/backend/internal/ledger"
	"github.com/user/carteira/backend/internal/models"
)

// AssetRequest defines the body for manually adding or correcting a
// holding. Both paths are recorded as an ajuste operation so the
// ledger stays the single source of truth for positions.
type AssetRequest struct {
	AssetCode    string          `json:"asset_code"`
	Quantity     decimal.Decimal `json:"quantity"`
	AverageCost  decimal.Decimal `json:"average_cost"`
	PurchaseDate string          `json:"purchase_date"` // optional, RFC3339 or YYYY-MM-DD
}

// ListAssets returns all of the caller's positions.
func ListAssets(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID in token"})
	}

	positions, err := database.ListPositions(c.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("error listing positions")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve portfolio"})
	}

	return c.JSON(fiber.Map{"assets": positions})
}

// CreateAsset registers a holding the user already owns (quantity and
// average price known). Rejected with 409 when a position for the
// asset already exists; subsequent changes go through operations or
// the correction endpoint.
func CreateAsset(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID in token"})
	}

	req := new(AssetRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}

	assetCode := normalizeAssetCode(req.AssetCode)
	if assetCode == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "asset_code is required"})
	}
	if !req.Quantity.IsPositive() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Quantity must be positive"})
	}
	if req.AverageCost.IsNegative() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Average cost must not be negative"})
	}

	opDate, err := parseDate(req.PurchaseDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid purchase_date"})
	}

	existing, err := database.GetPosition(c.Context(), userID, assetCode)
	if err != nil {
		log.Error().Err(err).Msg("error checking existing position")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to add asset"})
	}
	if existing != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Asset already registered in portfolio"})
	}

	position, _, err := applyAjuste(c.Context(), userID, assetCode, req.Quantity, req.AverageCost, opDate)
	if err != nil {
		if isLedgerError(err) {
			return ledgerErrorResponse(c, err)
		}
		log.Error().Err(err).Msg("error registering asset")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to add asset"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"asset": position})
}

// UpdateAsset manually corrects a holding. The correction is written
// as an ajuste operation rather than a raw field overwrite.
func UpdateAsset(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID in token"})
	}

	assetCode := normalizeAssetCode(c.Params("code"))
	if assetCode == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Asset code is required"})
	}

	req := new(AssetRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}
	req.AssetCode = assetCode

	if req.Quantity.IsNegative() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Quantity must not be negative"})
	}
	if req.AverageCost.IsNegative() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Average cost must not be negative"})
	}

	opDate, err := parseDate(req.PurchaseDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid purchase_date"})
	}

	existing, err := database.GetPosition(c.Context(), userID, assetCode)
	if err != nil {
		log.Error().Err(err).Msg("error fetching position")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update asset"})
	}
	if existing == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Asset not found in portfolio"})
	}

	position, closed, err := applyAjuste(c.Context(), userID, assetCode, req.Quantity, req.AverageCost, opDate)
	if err != nil {
		if isLedgerError(err) {
			return ledgerErrorResponse(c, err)
		}
		log.Error().Err(err).Msg("error correcting asset")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update asset"})
	}
	if closed {
		// Corrected to zero quantity: the position is closed.
		return c.SendStatus(fiber.StatusNoContent)
	}

	return c.JSON(fiber.Map{"asset": position})
}

// DeleteAsset removes the position row only; the asset's operations
// remain in the ledger for history.
func DeleteAsset(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID in token"})
	}

	assetCode := normalizeAssetCode(c.Params("code"))
	if assetCode == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Asset code is required"})
	}

	deleted, err := database.DeletePosition(c.Context(), nil, userID, assetCode)
	if err != nil {
		log.Error().Err(err).Msg("error deleting position")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to remove asset"})
	}
	if !deleted {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Asset not found in portfolio"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// applyAjuste records the ajuste operation and writes the resulting
// position in one transaction. Returns the stored position (nil when
// the ajuste closed it) and whether it closed. Ledger validation
// errors come back unwrapped so callers can map them to 400s.
func applyAjuste(ctx context.Context, userID uuid.UUID, assetCode string, quantity, averageCost decimal.Decimal, opDate time.Time) (*models.Position, bool, error) {
	op := models.Operation{
		UserID:        userID,
		AssetCode:     assetCode,
		Type:          models.OpAjuste,
		Quantity:      quantity,
		Price:         averageCost,
		OperationDate: opDate,
	}

	tx, err := database.DB.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	pos := models.Position{
		UserID:      userID,
		AssetCode:   assetCode,
		Quantity:    decimal.Zero,
		AverageCost: decimal.Zero,
	}
	var expectedVersion int64
	if locked, err := database.GetPositionForUpdate(ctx, tx, userID, assetCode); err != nil {
		return nil, false, err
	} else if locked != nil {
		pos = *locked
		expectedVersion = locked.Version
	}

	updated, closed, err := ledger.Apply(pos, op)
	if err != nil {
		return nil, false, err
	}

	if err := database.CreateOperation(ctx, tx, &op); err != nil {
		return nil, false, err
	}

	if closed {
		if _, err := database.DeletePosition(ctx, tx, userID, assetCode); err != nil {
			return nil, false, err
		}
	} else {
		if err := database.UpsertPosition(ctx, tx, &updated, expectedVersion); err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("error committing ajuste: %w", err)
	}

	if closed {
		return nil, true, nil
	}
	return &updated, false, nil
}

// isLedgerError reports whether err is a validation error from the
// ledger engine (as opposed to an infrastructure failure).
func isLedgerError(err error) bool {
	return errors.Is(err, ledger.ErrInsufficientQuantity) ||
		errors.Is(err, ledger.ErrInvalidQuantity) ||
		errors.Is(err, ledger.ErrInvalidPrice) ||
		errors.Is(err, ledger.ErrUnknownType)
}
