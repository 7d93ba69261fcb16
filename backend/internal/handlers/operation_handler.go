package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/user/carteira/backend/internal/database"
	"github.com/user/carteira/backend/internal/ledger"
	"github.com/user/carteira/backend/internal/models"
)

// OperationRequest defines the body for recording a buy or sell.
type OperationRequest struct {
	AssetCode     string          `json:"asset_code"`
	Type          string          `json:"type"` // entrada or saida
	Quantity      decimal.Decimal `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	OperationDate string          `json:"operation_date"` // RFC3339 or YYYY-MM-DD, empty = now
}

// OperationResponse pairs the recorded operation with the resulting
// position (nil when the operation closed it).
type OperationResponse struct {
	Operation *models.Operation `json:"operation"`
	Position  *models.Position  `json:"position,omitempty"`
	Closed    bool              `json:"closed"`
}

// CreateOperation records an entrada or saida and updates the cached
// position in the same database transaction: the row is locked, the
// ledger rule applied, the operation inserted, and the position
// upserted (or deleted when the quantity hits zero) atomically.
func CreateOperation(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID in token"})
	}

	req := new(OperationRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}

	assetCode := normalizeAssetCode(req.AssetCode)
	if assetCode == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "asset_code is required"})
	}
	if req.Type != models.OpEntrada && req.Type != models.OpSaida {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "type must be entrada or saida"})
	}

	opDate, err := parseDate(req.OperationDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid operation_date"})
	}

	op := models.Operation{
		UserID:        userID,
		AssetCode:     assetCode,
		Type:          req.Type,
		Quantity:      req.Quantity,
		Price:         req.Price,
		OperationDate: opDate,
	}

	tx, err := database.DB.Begin(c.Context())
	if err != nil {
		log.Error().Err(err).Msg("error starting transaction")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to record operation"})
	}
	defer tx.Rollback(c.Context())

	pos, err := database.GetPositionForUpdate(c.Context(), tx, userID, assetCode)
	if err != nil {
		log.Error().Err(err).Msg("error locking position")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to record operation"})
	}

	if pos == nil {
		if req.Type == models.OpSaida {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No position held for this asset"})
		}
		pos = &models.Position{
			UserID:      userID,
			AssetCode:   assetCode,
			Quantity:    decimal.Zero,
			AverageCost: decimal.Zero,
		}
	}

	updated, closed, err := ledger.Apply(*pos, op)
	if err != nil {
		return ledgerErrorResponse(c, err)
	}

	if err := database.CreateOperation(c.Context(), tx, &op); err != nil {
		log.Error().Err(err).Msg("error inserting operation")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to record operation"})
	}

	var position *models.Position
	if closed {
		if _, err := database.DeletePosition(c.Context(), tx, userID, assetCode); err != nil {
			log.Error().Err(err).Msg("error removing closed position")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to record operation"})
		}
	} else {
		if err := database.UpsertPosition(c.Context(), tx, &updated, pos.Version); err != nil {
			log.Error().Err(err).Msg("error upserting position")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to record operation"})
		}
		position = &updated
	}

	if err := tx.Commit(c.Context()); err != nil {
		log.Error().Err(err).Msg("error committing operation")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to record operation"})
	}

	return c.Status(fiber.StatusCreated).JSON(OperationResponse{
		Operation: &op,
		Position:  position,
		Closed:    closed,
	})
}

// ListOperations returns the caller's ledger entries, optionally
// filtered by the `asset` query parameter, in chronological order.
func ListOperations(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID in token"})
	}

	assetCode := normalizeAssetCode(c.Query("asset"))

	ops, err := database.ListOperations(c.Context(), nil, userID, assetCode)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("error listing operations")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list operations"})
	}

	return c.JSON(fiber.Map{"operations": ops})
}

// DeleteOperation removes a ledger entry and refolds the affected
// position from the remaining operations, all in one transaction, so
// the position row always equals the fold of the surviving ledger.
func DeleteOperation(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID in token"})
	}

	operationID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid operation id"})
	}

	op, err := database.GetOperation(c.Context(), userID, operationID)
	if err != nil {
		log.Error().Err(err).Msg("error fetching operation")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete operation"})
	}
	if op == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Operation not found"})
	}

	tx, err := database.DB.Begin(c.Context())
	if err != nil {
		log.Error().Err(err).Msg("error starting transaction")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete operation"})
	}
	defer tx.Rollback(c.Context())

	pos, err := database.GetPositionForUpdate(c.Context(), tx, userID, op.AssetCode)
	if err != nil {
		log.Error().Err(err).Msg("error locking position")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete operation"})
	}

	deleted, err := database.DeleteOperation(c.Context(), tx, userID, operationID)
	if err != nil {
		log.Error().Err(err).Msg("error deleting operation")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete operation"})
	}
	if !deleted {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Operation not found"})
	}

	remaining, err := database.ListOperations(c.Context(), tx, userID, op.AssetCode)
	if err != nil {
		log.Error().Err(err).Msg("error listing remaining operations")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete operation"})
	}

	refolded, closed, err := ledger.Fold(userID, op.AssetCode, remaining)
	if err != nil {
		// The remaining ledger no longer folds (e.g. a sell now exceeds
		// the held quantity); refuse to leave the position inconsistent.
		if errors.Is(err, ledger.ErrInsufficientQuantity) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Deleting this operation would make the remaining history invalid"})
		}
		log.Error().Err(err).Msg("error refolding position")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete operation"})
	}

	switch {
	case closed && pos != nil:
		if _, err := database.DeletePosition(c.Context(), tx, userID, op.AssetCode); err != nil {
			log.Error().Err(err).Msg("error removing closed position")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete operation"})
		}
	case !closed:
		var expectedVersion int64
		if pos != nil {
			expectedVersion = pos.Version
		}
		if err := database.UpsertPosition(c.Context(), tx, &refolded, expectedVersion); err != nil {
			log.Error().Err(err).Msg("error upserting refolded position")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete operation"})
		}
	}

	if err := tx.Commit(c.Context()); err != nil {
		log.Error().Err(err).Msg("error committing operation delete")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete operation"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ledgerErrorResponse maps ledger engine errors onto HTTP statuses.
func ledgerErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ledger.ErrInsufficientQuantity):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Sale quantity exceeds held quantity"})
	case errors.Is(err, ledger.ErrInvalidQuantity):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Quantity must be positive"})
	case errors.Is(err, ledger.ErrInvalidPrice):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Price must not be negative"})
	case errors.Is(err, ledger.ErrUnknownType):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown operation type"})
	default:
		log.Error().Err(err).Msg("unexpected ledger error")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to apply operation"})
	}
}
