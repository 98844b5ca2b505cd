// Package postgres stores the catalog and confirmed reservations in PostgreSQL through pgx.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avstrong/staybook/internal/logger"
)

type PoolConfig struct {
	L        *logger.Logger
	URL      string
	Attempts int
	Backoff  time.Duration
}

// NewPool connects and pings, retrying while the database container is still starting.
//
//nolint:gomnd
func NewPool(ctx context.Context, conf PoolConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(conf.URL)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	poolCfg.MaxConns = 20
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	attempts := conf.Attempts
	if attempts < 1 {
		attempts = 5
	}

	backoff := conf.Backoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}

	for attempt := 1; ; attempt++ {
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}

			pool.Close()
		}

		if attempt == attempts {
			return nil, fmt.Errorf("connect to postgres after %d attempts: %w", attempts, err)
		}

		conf.L.LogWarnf("Postgres connect attempt %d/%d failed: %v, retrying in %s", attempt, attempts, err, backoff)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to postgres: %w", ctx.Err())
		case <-time.After(backoff):
		}
	}
}
