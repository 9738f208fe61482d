// Package db provides PostgreSQL database access and lifecycle management.
//
// It owns the shared connection pool, the idempotent schema migration, and
// the generic Gateway that every entity is built on (see gateway.go).
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/obsplane/observability/internal/logger"
)

// Database wraps the shared connection pool used by every entity Gateway.
type Database struct {
	sqlDB *sql.DB
}

// PoolConfig tunes the connection pool: a handful of connections for a
// serverless deployment target, up to two dozen for a long-lived server.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPoolConfig matches the serverless-leaning default.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    3,
		MaxIdleConns:    3,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// NewDatabase opens the pool against a single DATABASE_URL DSN, unlike a
// decomposed host/port/user/password config.
func NewDatabase(ctx context.Context, dsn string, pool PoolConfig) (*Database, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database: DATABASE_URL is required")
	}
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("database: open: %w", err)
	}
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("database: ping: %w", err)
	}

	logger.Gateway().Info().Int("max_open_conns", pool.MaxOpenConns).Msg("database pool ready")
	return &Database{sqlDB: sqlDB}, nil
}

// NewDatabaseForTesting wraps an existing *sql.DB (e.g. from go-sqlmock) for
// dependency injection in tests. Do not use in production code.
func NewDatabaseForTesting(sqlDB *sql.DB) *Database {
	return &Database{sqlDB: sqlDB}
}

// DB exposes the underlying pool for Gateway construction and health checks.
func (d *Database) DB() *sql.DB { return d.sqlDB }

// Close releases the pool.
func (d *Database) Close() error { return d.sqlDB.Close() }

// schemaStatements is the hand-written, idempotent migration set: every
// statement is a CREATE ... IF NOT EXISTS so Migrate can run on every boot of
// both cmd/api and cmd/worker without a separate migration runner or
// tracking table.
var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,

	`CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		deleted_at TIMESTAMPTZ,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user',
		embedding vector(16)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_active ON users (id) WHERE deleted_at IS NULL`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id SERIAL PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		deleted_at TIMESTAMPTZ,
		user_id INTEGER NOT NULL REFERENCES users(id),
		token_hash TEXT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		device_fingerprint TEXT NOT NULL DEFAULT '',
		source_ip TEXT NOT NULL DEFAULT '',
		revoked_at TIMESTAMPTZ,
		embedding vector(16)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user ON refresh_tokens (user_id) WHERE deleted_at IS NULL`,

	`CREATE TABLE IF NOT EXISTS logs (
		id SERIAL PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		deleted_at TIMESTAMPTZ,
		source TEXT NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		attributes JSONB,
		embedding vector(16)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_logs_active ON logs (created_at) WHERE deleted_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_logs_level ON logs (level) WHERE deleted_at IS NULL`,

	`CREATE TABLE IF NOT EXISTS metric_windows (
		id SERIAL PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		deleted_at TIMESTAMPTZ,
		endpoint TEXT NOT NULL,
		window_start BIGINT NOT NULL,
		window_end BIGINT NOT NULL,
		p50_ms INTEGER NOT NULL DEFAULT 0,
		p95_ms INTEGER NOT NULL DEFAULT 0,
		p99_ms INTEGER NOT NULL DEFAULT 0,
		error_rate_percent INTEGER NOT NULL DEFAULT 0,
		traffic_count INTEGER NOT NULL DEFAULT 0,
		mean_request_size_bytes DOUBLE PRECISION,
		mean_response_size_bytes DOUBLE PRECISION,
		embedding vector(16)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_metric_windows_endpoint_window
		ON metric_windows (endpoint, window_start) WHERE deleted_at IS NULL`,

	`CREATE TABLE IF NOT EXISTS request_snapshots (
		id SERIAL PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		deleted_at TIMESTAMPTZ,
		method TEXT NOT NULL,
		path TEXT NOT NULL,
		query JSONB,
		headers JSONB,
		body TEXT,
		user_id INTEGER,
		version TEXT,
		environment TEXT,
		response_status INTEGER NOT NULL DEFAULT 0,
		response_headers JSONB,
		response_body TEXT,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		geo JSONB,
		embedding vector(16)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_request_snapshots_path ON request_snapshots (path) WHERE deleted_at IS NULL`,

	`CREATE TABLE IF NOT EXISTS worker_stats (
		id SERIAL PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		deleted_at TIMESTAMPTZ,
		mode TEXT NOT NULL,
		queue_depth INTEGER NOT NULL DEFAULT 0,
		in_flight_count INTEGER NOT NULL DEFAULT 0,
		scheduled_job_count INTEGER NOT NULL DEFAULT 0,
		available_job_count INTEGER NOT NULL DEFAULT 0,
		scheduled_jobs JSONB,
		available_jobs JSONB,
		last_heartbeat TIMESTAMPTZ NOT NULL DEFAULT now(),
		embedding vector(16)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_worker_stats_mode ON worker_stats (mode) WHERE deleted_at IS NULL`,
}

// Migrate applies the schema. It is safe to call on every boot of both
// cmd/api and cmd/worker.
func (d *Database) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := d.sqlDB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	logger.Gateway().Info().Msg("schema migrated")
	return nil
}

// Ping is the bare connectivity check used by the Health aggregation handler
// and the HEALTH_CHECK job's default rule.
func (d *Database) Ping(ctx context.Context) error {
	return HealthPing(ctx, d.sqlDB)
}
