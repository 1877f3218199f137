package main

import (
	"context"

	apphttp "cashback_backend/internal/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type dbPool struct {
	*pgxpool.Pool
}

type redisClient struct {
	*redis.Client
}

func (c *redisClient) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

// readiness reports ready when every configured backing store answers.
type readiness []apphttp.HealthChecker

func (r readiness) with(checker apphttp.HealthChecker) readiness {
	if checker == nil {
		return r
	}
	return append(r, checker)
}

func (r readiness) Ping(ctx context.Context) error {
	for _, checker := range r {
		if err := checker.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}
