package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var DB *pgxpool.Pool

// schema is applied on every startup; all statements are idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL DEFAULT 'cliente',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_sign_in_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS operations (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id UUID NOT NULL REFERENCES users(id),
	asset_code TEXT NOT NULL,
	type TEXT NOT NULL,
	quantity NUMERIC NOT NULL,
	price NUMERIC NOT NULL,
	operation_date TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_operations_user_asset
	ON operations (user_id, asset_code, operation_date);

CREATE TABLE IF NOT EXISTS positions (
	user_id UUID NOT NULL REFERENCES users(id),
	asset_code TEXT NOT NULL,
	quantity NUMERIC NOT NULL,
	average_cost NUMERIC NOT NULL,
	total_invested NUMERIC NOT NULL,
	first_purchase_date TIMESTAMPTZ,
	version BIGINT NOT NULL DEFAULT 1,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, asset_code)
);

CREATE TABLE IF NOT EXISTS support_resistance_levels (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	asset_code TEXT NOT NULL,
	asset_name TEXT NOT NULL,
	levels JSONB NOT NULL DEFAULT '[]',
	admin_id UUID NOT NULL REFERENCES users(id),
	last_modified TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_srl_asset_code
	ON support_resistance_levels (UPPER(asset_code));
`

// InitDB initializes the connection pool and bootstraps the schema.
// The URL comes from the config object built at startup.
func InitDB(ctx context.Context, databaseURL string) error {
	var err error
	DB, err = pgxpool.New(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := DB.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := DB.Exec(ctx, schema); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		DB.Close()
	}
}

// PgxQuerier lets store functions run against either the pool or an
// open transaction.
type PgxQuerier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
}

// Querier returns the transaction if not nil, otherwise the pool.
func Querier(tx pgx.Tx) PgxQuerier {
	if tx != nil {
		return tx
	}
	return DB
}
