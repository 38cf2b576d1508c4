package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"admissions-lifecycle/internal/common/config"

	_ "github.com/lib/pq"
)

// PostgresClient wraps the SQL connection pool shared by the store, the audit
// recorder and the mapping repository.
type PostgresClient struct {
	DB *sql.DB
}

func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// Schema creates the tables the engine needs. audit_log has no UPDATE or
// DELETE path anywhere in the code.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS applications (
		id               TEXT PRIMARY KEY,
		status           TEXT NOT NULL,
		priority         TEXT NOT NULL DEFAULT 'normal',
		source           TEXT,
		source_email     TEXT,
		extracted_fields JSONB NOT NULL DEFAULT '{}'::jsonb,
		confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		decision_notes   TEXT,
		created_at       TIMESTAMPTZ NOT NULL,
		decided_at       TIMESTAMPTZ,
		updated_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_applications_status ON applications (status)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id        TEXT PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL,
		actor_id  TEXT NOT NULL,
		action    TEXT NOT NULL,
		target_id TEXT NOT NULL,
		detail    TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_target ON audit_log (target_id, timestamp)`,
	`CREATE TABLE IF NOT EXISTS field_mappings (
		position          INTEGER NOT NULL,
		source_field      TEXT PRIMARY KEY,
		destination_field TEXT NOT NULL
	)`,
}

// Migrate applies Schema in order.
func (c *PostgresClient) Migrate(ctx context.Context) error {
	for _, stmt := range Schema {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
