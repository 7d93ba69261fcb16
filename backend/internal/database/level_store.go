package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/user/carteira/backend/internal/models"
)

const levelColumns = `id, asset_code, asset_name, levels, admin_id, last_modified, created_at, updated_at`

func scanLevel(row pgx.Row) (*models.SupportResistanceLevel, error) {
	lvl := &models.SupportResistanceLevel{}
	var levelsJSON []byte

	err := row.Scan(&lvl.ID, &lvl.AssetCode, &lvl.AssetName, &levelsJSON,
		&lvl.AdminID, &lvl.LastModified, &lvl.CreatedAt, &lvl.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(levelsJSON, &lvl.Levels); err != nil {
		return nil, fmt.Errorf("error decoding levels for asset %s: %w", lvl.AssetCode, err)
	}
	return lvl, nil
}

// CreateLevel inserts a support/resistance record for an asset.
func CreateLevel(ctx context.Context, lvl *models.SupportResistanceLevel) error {
	levelsJSON, err := json.Marshal(lvl.Levels)
	if err != nil {
		return fmt.Errorf("error encoding levels for asset %s: %w", lvl.AssetCode, err)
	}

	query := `INSERT INTO support_resistance_levels (asset_code, asset_name, levels, admin_id)
			  VALUES ($1, $2, $3, $4)
			  RETURNING id, last_modified, created_at, updated_at`

	err = DB.QueryRow(ctx, query, lvl.AssetCode, lvl.AssetName, levelsJSON, lvl.AdminID).
		Scan(&lvl.ID, &lvl.LastModified, &lvl.CreatedAt, &lvl.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating levels for asset %s: %w", lvl.AssetCode, err)
	}
	return nil
}

// GetLevelByID retrieves one record. Returns nil, nil when absent.
func GetLevelByID(ctx context.Context, id uuid.UUID) (*models.SupportResistanceLevel, error) {
	query := `SELECT ` + levelColumns + ` FROM support_resistance_levels WHERE id = $1`

	lvl, err := scanLevel(DB.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting levels %s: %w", id, err)
	}
	return lvl, nil
}

// GetLevelByAssetCode retrieves the record for an exact (upper-cased)
// asset code. Returns nil, nil when absent. Used to enforce the
// one-record-per-asset rule at the application layer.
func GetLevelByAssetCode(ctx context.Context, assetCode string) (*models.SupportResistanceLevel, error) {
	query := `SELECT ` + levelColumns + ` FROM support_resistance_levels WHERE UPPER(asset_code) = $1`

	lvl, err := scanLevel(DB.QueryRow(ctx, query, strings.ToUpper(assetCode)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting levels for asset %s: %w", assetCode, err)
	}
	return lvl, nil
}

// ListLevels returns all records, or those matching a case-insensitive
// substring of the asset code or name when search is non-empty.
func ListLevels(ctx context.Context, search string) ([]*models.SupportResistanceLevel, error) {
	levels := make([]*models.SupportResistanceLevel, 0)
	query := `SELECT ` + levelColumns + `
			  FROM support_resistance_levels
			  WHERE $1 = '' OR asset_code ILIKE '%' || $1 || '%' OR asset_name ILIKE '%' || $1 || '%'
			  ORDER BY asset_code`

	rows, err := DB.Query(ctx, query, search)
	if err != nil {
		return nil, fmt.Errorf("error querying levels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		lvl, err := scanLevel(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning level row: %w", err)
		}
		levels = append(levels, lvl)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("error iterating level rows: %w", rows.Err())
	}

	return levels, nil
}

// UpdateLevel overwrites name, levels and the responsible admin.
// Returns false when the record does not exist.
func UpdateLevel(ctx context.Context, lvl *models.SupportResistanceLevel) (bool, error) {
	levelsJSON, err := json.Marshal(lvl.Levels)
	if err != nil {
		return false, fmt.Errorf("error encoding levels for asset %s: %w", lvl.AssetCode, err)
	}

	query := `UPDATE support_resistance_levels
			  SET asset_name = $1, levels = $2, admin_id = $3,
				  last_modified = NOW(), updated_at = NOW()
			  WHERE id = $4`

	cmdTag, err := DB.Exec(ctx, query, lvl.AssetName, levelsJSON, lvl.AdminID, lvl.ID)
	if err != nil {
		return false, fmt.Errorf("error updating levels %s: %w", lvl.ID, err)
	}

	return cmdTag.RowsAffected() == 1, nil
}

// DeleteLevel removes a record. Returns false when nothing was deleted.
func DeleteLevel(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `DELETE FROM support_resistance_levels WHERE id = $1`

	cmdTag, err := DB.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("error deleting levels %s: %w", id, err)
	}

	return cmdTag.RowsAffected() == 1, nil
}
