package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User roles. Every account starts as a cliente; only an admin can promote.
const (
	RoleCliente = "cliente"
	RoleAdmin   = "admin"
)

// Operation types recorded in the ledger.
const (
	OpEntrada = "entrada" // buy/acquisition
	OpSaida   = "saida"   // sell/disposal
	OpAjuste  = "ajuste"  // manual correction, snapshots quantity and average cost
)

// User represents a registered account.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"` // stored lowercase
	Password     string     `json:"-"`     // bcrypt hash, never serialized
	Name         string     `json:"name,omitempty"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastSignInAt *time.Time `json:"last_sign_in_at,omitempty"`
}

// Operation is an immutable ledger entry for one user's asset.
// The set of non-deleted operations for (UserID, AssetCode) is the
// source of truth for the consolidated position.
type Operation struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	AssetCode     string          `json:"asset_code"`
	Type          string          `json:"type"` // entrada, saida, ajuste
	Quantity      decimal.Decimal `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	OperationDate time.Time       `json:"operation_date"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Position is the consolidated holding of one asset for one user,
// derived from the operation ledger and cached as a row for reads.
type Position struct {
	UserID            uuid.UUID       `json:"user_id"`
	AssetCode         string          `json:"asset_code"`
	Quantity          decimal.Decimal `json:"quantity"`
	AverageCost       decimal.Decimal `json:"average_cost"`
	TotalInvested     decimal.Decimal `json:"total_invested"`
	FirstPurchaseDate *time.Time      `json:"first_purchase_date,omitempty"`
	Version           int64           `json:"-"` // optimistic concurrency token
	UpdatedAt         time.Time       `json:"updated_at"`
}

// PriceLevel is a single analyst-entered threshold.
type PriceLevel struct {
	Type  string          `json:"type"` // "suporte" or "resistencia"
	Value decimal.Decimal `json:"value"`
}

// SupportResistanceLevel groups the curated levels for one asset.
// At most one record per asset code, enforced at the application layer.
type SupportResistanceLevel struct {
	ID           uuid.UUID    `json:"id"`
	AssetCode    string       `json:"asset_code"`
	AssetName    string       `json:"asset_name"`
	Levels       []PriceLevel `json:"levels"`
	AdminID      uuid.UUID    `json:"admin_id"`
	LastModified time.Time    `json:"last_modified"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// MarketAsset is a transient row from the external spreadsheet feed.
// Never persisted; refreshed wholesale on each fetch.
type MarketAsset struct {
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Volume        int64           `json:"volume"`
	MarketValue   decimal.Decimal `json:"market_value"`
	LastUpdated   time.Time       `json:"last_updated"`
}
