package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/user/carteira/backend/internal/models"
)

// ErrVersionConflict signals that a position changed underneath an
// optimistic update. The caller should retry or abort the transaction.
var ErrVersionConflict = errors.New("position modified concurrently")

// GetPosition retrieves one position for a user. Returns nil, nil when
// the user holds no such asset.
func GetPosition(ctx context.Context, userID uuid.UUID, assetCode string) (*models.Position, error) {
	return getPosition(ctx, Querier(nil), userID, assetCode, false)
}

// GetPositionForUpdate retrieves a position inside a transaction with a
// row lock, serializing concurrent operations against the same holding.
func GetPositionForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID, assetCode string) (*models.Position, error) {
	return getPosition(ctx, tx, userID, assetCode, true)
}

func getPosition(ctx context.Context, q PgxQuerier, userID uuid.UUID, assetCode string, forUpdate bool) (*models.Position, error) {
	pos := &models.Position{}
	query := `SELECT user_id, asset_code, quantity, average_cost, total_invested,
				   first_purchase_date, version, updated_at
			  FROM positions WHERE user_id = $1 AND asset_code = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	err := q.QueryRow(ctx, query, userID, assetCode).
		Scan(&pos.UserID, &pos.AssetCode, &pos.Quantity, &pos.AverageCost,
			&pos.TotalInvested, &pos.FirstPurchaseDate, &pos.Version, &pos.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting position for user %s asset %s: %w", userID, assetCode, err)
	}
	return pos, nil
}

// ListPositions retrieves all positions for a user, ordered by asset code.
func ListPositions(ctx context.Context, userID uuid.UUID) ([]*models.Position, error) {
	positions := make([]*models.Position, 0)
	query := `SELECT user_id, asset_code, quantity, average_cost, total_invested,
				   first_purchase_date, version, updated_at
			  FROM positions WHERE user_id = $1 ORDER BY asset_code`

	rows, err := DB.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying positions for user %s: %w", userID, err)
	}
	defer rows.Close()

	for rows.Next() {
		pos := &models.Position{}
		err := rows.Scan(&pos.UserID, &pos.AssetCode, &pos.Quantity, &pos.AverageCost,
			&pos.TotalInvested, &pos.FirstPurchaseDate, &pos.Version, &pos.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("error scanning position row for user %s: %w", userID, err)
		}
		positions = append(positions, pos)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("error iterating position rows for user %s: %w", userID, rows.Err())
	}

	return positions, nil
}

// UpsertPosition writes a ledger-derived position. For an existing row
// the update is guarded by expectedVersion (compare-and-swap); pass 0
// when the position is known to be new.
func UpsertPosition(ctx context.Context, tx pgx.Tx, pos *models.Position, expectedVersion int64) error {
	querier := Querier(tx)

	if expectedVersion == 0 {
		query := `INSERT INTO positions (user_id, asset_code, quantity, average_cost,
					  total_invested, first_purchase_date)
				  VALUES ($1, $2, $3, $4, $5, $6)
				  RETURNING version, updated_at`

		err := querier.QueryRow(ctx, query,
			pos.UserID, pos.AssetCode, pos.Quantity, pos.AverageCost,
			pos.TotalInvested, pos.FirstPurchaseDate,
		).Scan(&pos.Version, &pos.UpdatedAt)
		if err != nil {
			return fmt.Errorf("error inserting position for user %s asset %s: %w",
				pos.UserID, pos.AssetCode, err)
		}
		return nil
	}

	query := `UPDATE positions
			  SET quantity = $1, average_cost = $2, total_invested = $3,
				  first_purchase_date = $4, version = version + 1, updated_at = NOW()
			  WHERE user_id = $5 AND asset_code = $6 AND version = $7`

	cmdTag, err := querier.Exec(ctx, query,
		pos.Quantity, pos.AverageCost, pos.TotalInvested, pos.FirstPurchaseDate,
		pos.UserID, pos.AssetCode, expectedVersion)
	if err != nil {
		return fmt.Errorf("error updating position for user %s asset %s: %w",
			pos.UserID, pos.AssetCode, err)
	}

	if cmdTag.RowsAffected() != 1 {
		return ErrVersionConflict
	}
	pos.Version = expectedVersion + 1
	return nil
}

// DeletePosition removes a position row. Operations for the asset are
// left untouched. Returns false when no row existed.
func DeletePosition(ctx context.Context, tx pgx.Tx, userID uuid.UUID, assetCode string) (bool, error) {
	query := `DELETE FROM positions WHERE user_id = $1 AND asset_code = $2`

	cmdTag, err := Querier(tx).Exec(ctx, query, userID, assetCode)
	if err != nil {
		return false, fmt.Errorf("error deleting position for user %s asset %s: %w", userID, assetCode, err)
	}

	return cmdTag.RowsAffected() == 1, nil
}
