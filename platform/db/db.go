// Package db opens the Postgres pool that backs the claim store and applies
// its schema migrations.
package db

import (
	"context"
	"time"

	"cashback_backend/platform/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	applicationName = "cashback_backend"
	// Claim updates hold a row lock for one read-modify-write; anything
	// waiting longer than this is stuck behind a broken transaction.
	lockTimeout = "5s"
)

// NewPool opens the pool and pings it once.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.GetDatabaseURL())
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 15 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	params := poolConfig.ConnConfig.RuntimeParams
	if _, ok := params["application_name"]; !ok {
		params["application_name"] = applicationName
	}
	if _, ok := params["lock_timeout"]; !ok {
		params["lock_timeout"] = lockTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
