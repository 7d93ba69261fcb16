package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/user/carteira/backend/internal/models"
)

// CreateOperation inserts a ledger entry. Callers recording an
// operation alongside a position update must pass the shared
// transaction so both writes commit or roll back together.
func CreateOperation(ctx context.Context, tx pgx.Tx, op *models.Operation) error {
	query := `INSERT INTO operations (user_id, asset_code, type, quantity, price, operation_date)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING id, created_at`

	querier := Querier(tx)

	err := querier.QueryRow(ctx, query,
		op.UserID, op.AssetCode, op.Type, op.Quantity, op.Price, op.OperationDate,
	).Scan(&op.ID, &op.CreatedAt)

	if err != nil {
		return fmt.Errorf("error creating operation for user %s: %w", op.UserID, err)
	}
	return nil
}

// ListOperations retrieves a user's operations in ledger order
// (operation date ascending, creation time breaking ties). An empty
// assetCode returns operations for every asset.
func ListOperations(ctx context.Context, tx pgx.Tx, userID uuid.UUID, assetCode string) ([]models.Operation, error) {
	ops := make([]models.Operation, 0)
	query := `SELECT id, user_id, asset_code, type, quantity, price, operation_date, created_at
			  FROM operations
			  WHERE user_id = $1 AND ($2 = '' OR asset_code = $2)
			  ORDER BY operation_date ASC, created_at ASC`

	rows, err := Querier(tx).Query(ctx, query, userID, assetCode)
	if err != nil {
		return nil, fmt.Errorf("error querying operations for user %s: %w", userID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var op models.Operation
		err := rows.Scan(&op.ID, &op.UserID, &op.AssetCode, &op.Type,
			&op.Quantity, &op.Price, &op.OperationDate, &op.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("error scanning operation row for user %s: %w", userID, err)
		}
		ops = append(ops, op)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("error iterating operation rows for user %s: %w", userID, rows.Err())
	}

	return ops, nil
}

// GetOperation retrieves one operation, scoped to the owning user.
// Returns nil, nil when absent or owned by someone else.
func GetOperation(ctx context.Context, userID, operationID uuid.UUID) (*models.Operation, error) {
	op := &models.Operation{}
	query := `SELECT id, user_id, asset_code, type, quantity, price, operation_date, created_at
			  FROM operations WHERE id = $1 AND user_id = $2`

	err := DB.QueryRow(ctx, query, operationID, userID).
		Scan(&op.ID, &op.UserID, &op.AssetCode, &op.Type,
			&op.Quantity, &op.Price, &op.OperationDate, &op.CreatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting operation %s: %w", operationID, err)
	}
	return op, nil
}

// DeleteOperation removes a ledger entry inside the transaction that
// also refolds the position. Returns false when nothing was deleted.
func DeleteOperation(ctx context.Context, tx pgx.Tx, userID, operationID uuid.UUID) (bool, error) {
	query := `DELETE FROM operations WHERE id = $1 AND user_id = $2`

	cmdTag, err := Querier(tx).Exec(ctx, query, operationID, userID)
	if err != nil {
		return false, fmt.Errorf("error deleting operation %s: %w", operationID, err)
	}

	return cmdTag.RowsAffected() == 1, nil
}
