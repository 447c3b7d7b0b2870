// Package domain defines the core interfaces and types for claimguard.
package domain

import (
	"context"
	"time"
)

// ClaimRepository persists claims. Claims are appended on submission and only
// their review fields are mutated afterwards.
type ClaimRepository interface {
	// Create stores a new claim and returns its ID. An empty claim.ID is
	// assigned by the repository.
	Create(ctx context.Context, claim *Claim) (string, error)

	// GetByID returns ErrNotFound for an unknown ID.
	GetByID(ctx context.Context, id string) (*Claim, error)

	// FindByClaimantVendorAmount returns prior claims matching all three
	// fields exactly.
	FindByClaimantVendorAmount(ctx context.Context, claimantID, vendor string, total float64) ([]ClaimRef, error)

	// List returns claims matching the filter, newest submission first.
	List(ctx context.Context, filter ClaimFilter) ([]*Claim, error)

	// UpdateStatus applies a review. When expected is non-nil the write only
	// happens if the stored status still equals *expected; otherwise it
	// returns ErrConflict. Notes are appended to the stored ones.
	UpdateStatus(ctx context.Context, id string, expected *Status, update StatusUpdate) error

	// Stats aggregates every claim matching the equality fields of filter.
	// Limit and Offset are ignored.
	Stats(ctx context.Context, filter ClaimFilter) (*ClaimStats, error)
}

// RuleStore persists custom indicator rules.
type RuleStore interface {
	SaveRuleConfig(ctx context.Context, rule *RuleConfig) error
	GetRuleConfig(ctx context.Context, ruleID string) (*RuleConfig, error)
	ListRuleConfigs(ctx context.Context) ([]*RuleConfig, error)
	DeleteRuleConfig(ctx context.Context, ruleID string) error
}

// Repository defines the interface for data persistence.
type Repository interface {
	ClaimRepository
	RuleStore

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the storage driver: "sqlite", "postgres" or "bolt"
	Driver string `json:"driver"`

	// SQLite specific
	SQLitePath string `json:"sqlitePath"`

	// BoltDB specific
	BoltPath string `json:"boltPath"`

	// PostgreSQL specific
	PostgresHost     string `json:"postgresHost"`
	PostgresPort     int    `json:"postgresPort"`
	PostgresUser     string `json:"postgresUser"`
	PostgresPassword string `json:"-"`
	PostgresDB       string `json:"postgresDb"`
	PostgresSSLMode  string `json:"postgresSslMode"`

	// Connection pool settings
	MaxOpenConns    int           `json:"maxOpenConns"`
	MaxIdleConns    int           `json:"maxIdleConns"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime"`
}
