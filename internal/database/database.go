// Package database manages the PostgreSQL connection pool and
// bootstraps the schema on startup.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a pgx connection pool with application-level helpers. One
// pool is shared by the persistence workers and the per-request user
// existence check (spec: max connections = persistence workers + 1, to
// leave one connection free for schema/maintenance work).
type DB struct {
	Pool *pgxpool.Pool
}

// Open connects to PostgreSQL, verifies the connection, and bootstraps
// the schema. If reset is true, all four tables are dropped first — a
// development-time switch only.
func Open(ctx context.Context, connString string, maxConns int32, reset bool) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("database: parse config: %w", err)
	}

	cfg.MaxConns = maxConns
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database: ping: %w", err)
	}

	if reset {
		if _, err := pool.Exec(ctx, DropSchema); err != nil {
			pool.Close()
			return nil, fmt.Errorf("database: drop schema: %w", err)
		}
	}

	if _, err := pool.Exec(ctx, CreateSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database: bootstrap schema: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close shuts down the connection pool. Call this only after every
// persistence worker has exited, so in-flight batches are never lost.
func (db *DB) Close() {
	db.Pool.Close()
}
