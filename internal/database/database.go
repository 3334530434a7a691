package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	return pgxpool.NewWithConfig(ctx, cfg)
}

// EnsureSchema creates the lab_results table if needed. Having the migration
// in code keeps the service self-contained so docker-compose can bootstrap
// everything.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS lab_results (
	id BIGSERIAL PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	user_id TEXT NOT NULL,
	file_name TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	page_count INT NOT NULL,
	status TEXT NOT NULL,
	description TEXT,
	error_details TEXT
);
CREATE INDEX IF NOT EXISTS idx_lab_results_user_created ON lab_results(user_id, created_at DESC);`
	_, err := pool.Exec(ctx, stmt)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
