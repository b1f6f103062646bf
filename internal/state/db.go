// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		-- Append-only observable event log. Amounts are stored as NUMERIC(78,0)
		-- so full 256-bit integer values round-trip without loss.
		CREATE TABLE IF NOT EXISTS farm_events (
			seq BIGSERIAL PRIMARY KEY,
			event_id UUID NOT NULL UNIQUE,
			kind VARCHAR(32) NOT NULL,
			event_timestamp TIMESTAMPTZ NOT NULL,
			actor VARCHAR(128) NOT NULL DEFAULT '',
			pool_id BIGINT NOT NULL DEFAULT 0,
			amount NUMERIC(78, 0) NOT NULL DEFAULT 0,
			recipient VARCHAR(128) NOT NULL DEFAULT '',
			block_height BIGINT NOT NULL DEFAULT 0,
			total_staked NUMERIC(78, 0) NOT NULL DEFAULT 0,
			acc_reward_per_share NUMERIC(78, 0) NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_farm_events_pool ON farm_events(pool_id, seq DESC);
		CREATE INDEX IF NOT EXISTS idx_farm_events_kind ON farm_events(kind, seq DESC);
		CREATE INDEX IF NOT EXISTS idx_farm_events_actor ON farm_events(actor, seq DESC);

		-- Full-ledger checkpoints written by the service loop; the newest row
		-- rehydrates the in-memory store on boot.
		CREATE TABLE IF NOT EXISTS ledger_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			block_height BIGINT NOT NULL,
			total_alloc_points BIGINT NOT NULL,
			total_funding NUMERIC(78, 0) NOT NULL,
			pools JSONB NOT NULL,
			positions JSONB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_ledger_snapshots_created ON ledger_snapshots(created_at DESC);

		-- Single-row counter for cumulative reward funding.
		CREATE TABLE IF NOT EXISTS funding_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			total_funding NUMERIC(78, 0) NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		INSERT INTO funding_counter (id, total_funding)
		VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
