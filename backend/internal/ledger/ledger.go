// Package ledger consolidates a user's buy/sell operations for one asset
// into a position: held quantity plus weighted-average acquisition cost.
//
// The operation ledger is the single source of truth. A position row is
// only a cache of Fold over the asset's non-deleted operations; Apply is
// the O(1) incremental form used on the hot path. Applying operations in
// chronological order, one at a time, yields exactly the Fold result.
package ledger

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/user/carteira/backend/internal/models"
)

var (
	// ErrInsufficientQuantity is returned when a saida exceeds the held quantity.
	ErrInsufficientQuantity = errors.New("insufficient quantity for sale")
	// ErrInvalidQuantity is returned for zero or negative quantities.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrInvalidPrice is returned for negative prices.
	ErrInvalidPrice = errors.New("price must not be negative")
	// ErrUnknownType is returned for operation types other than entrada, saida, ajuste.
	ErrUnknownType = errors.New("unknown operation type")
)

// Apply folds a single operation into an existing position and returns
// the updated position plus whether it is now closed (quantity exactly
// zero). The input position is not mutated; on error it is returned
// unchanged and closed is false.
//
// For an asset with no stored position yet, pass a zero-quantity
// position carrying the user id and asset code.
func Apply(pos models.Position, op models.Operation) (models.Position, bool, error) {
	if err := validate(op); err != nil {
		return pos, false, err
	}

	switch op.Type {
	case models.OpEntrada:
		// newAvg = (oldQty*oldAvg + q*p) / (oldQty + q)
		newQty := pos.Quantity.Add(op.Quantity)
		cost := pos.Quantity.Mul(pos.AverageCost).Add(op.Quantity.Mul(op.Price))
		pos.AverageCost = cost.Div(newQty)
		pos.Quantity = newQty
		if pos.FirstPurchaseDate == nil || op.OperationDate.Before(*pos.FirstPurchaseDate) {
			d := op.OperationDate
			pos.FirstPurchaseDate = &d
		}

	case models.OpSaida:
		if op.Quantity.GreaterThan(pos.Quantity) {
			return pos, false, ErrInsufficientQuantity
		}
		// Average cost is unchanged by sells; realized P&L is not tracked.
		pos.Quantity = pos.Quantity.Sub(op.Quantity)

	case models.OpAjuste:
		// Manual correction: the operation snapshots the desired state,
		// so the fold stays the single source of truth.
		pos.Quantity = op.Quantity
		pos.AverageCost = op.Price
		if pos.FirstPurchaseDate == nil {
			d := op.OperationDate
			pos.FirstPurchaseDate = &d
		}
	}

	pos.TotalInvested = pos.Quantity.Mul(pos.AverageCost)
	return pos, pos.Quantity.IsZero(), nil
}

// Fold reconstructs a position from scratch out of the full operation
// list. Operations are processed in ascending operation date, creation
// time breaking ties. Returns the consolidated position and whether the
// final quantity is zero (position closed, row should not exist).
func Fold(userID uuid.UUID, assetCode string, ops []models.Operation) (models.Position, bool, error) {
	sorted := make([]models.Operation, len(ops))
	copy(sorted, ops)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].OperationDate.Equal(sorted[j].OperationDate) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].OperationDate.Before(sorted[j].OperationDate)
	})

	pos := models.Position{
		UserID:      userID,
		AssetCode:   assetCode,
		Quantity:    decimal.Zero,
		AverageCost: decimal.Zero,
	}

	closed := true
	for _, op := range sorted {
		var err error
		pos, closed, err = Apply(pos, op)
		if err != nil {
			return pos, false, err
		}
	}
	pos.UpdatedAt = time.Now()
	return pos, closed || len(sorted) == 0, nil
}

// validate rejects malformed operations before any state is touched.
func validate(op models.Operation) error {
	switch op.Type {
	case models.OpEntrada, models.OpSaida:
		if !op.Quantity.IsPositive() {
			return ErrInvalidQuantity
		}
	case models.OpAjuste:
		// An ajuste to zero closes the position, so zero is allowed here.
		if op.Quantity.IsNegative() {
			return ErrInvalidQuantity
		}
	default:
		return ErrUnknownType
	}
	if op.Price.IsNegative() {
		return ErrInvalidPrice
	}
	return nil
}
