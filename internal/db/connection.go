// Package db contains code for connecting to the PostgreSQL database.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/klxm/synch/internal/config"
	"github.com/klxm/synch/internal/logger"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnectTimeout  = 10 * time.Second
	defaultPingTimeout     = 30 * time.Second
)

// NewPool creates a connection pool from the provided configuration and
// waits until the database answers a ping.
func NewPool(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration is required")
	}

	if cfg.Host == "" {
		return nil, fmt.Errorf("database host is required")
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("database port is required")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("database user is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("database name is required")
	}

	connStr, err := cfg.GetConnectionString()
	if err != nil {
		return nil, fmt.Errorf("failed to build connection string: %w", err)
	}

	poolCfg, err := PoolConfig(connStr, cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := Ping(ctx, pool, defaultPingTimeout); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Infof("Database connection established: %s@%s:%d/%s",
		cfg.User, cfg.Host, cfg.Port, cfg.Database)

	return pool, nil
}

// PoolConfig parses connStr and applies the pool limits of cfg
func PoolConfig(connStr string, cfg *config.DatabaseConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string: %w", err)
	}

	poolCfg.MaxConns = defaultMaxOpenConns
	poolCfg.MinConns = defaultMaxIdleConns
	poolCfg.MaxConnLifetime = defaultConnMaxLifetime
	poolCfg.ConnConfig.ConnectTimeout = defaultConnectTimeout

	if cfg == nil {
		return poolCfg, nil
	}
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		poolCfg.MinConns = cfg.MaxIdleConns
	}
	if poolCfg.MinConns > poolCfg.MaxConns {
		poolCfg.MinConns = poolCfg.MaxConns
	}
	if cfg.ConnMaxLifetime != "" {
		duration, err := time.ParseDuration(cfg.ConnMaxLifetime)
		if err != nil {
			return nil, fmt.Errorf("invalid connection max lifetime: %w", err)
		}
		poolCfg.MaxConnLifetime = duration
	}
	return poolCfg, nil
}

// Ping retries a ping with exponential backoff until it succeeds or
// maxElapsed has passed.
func Ping(ctx context.Context, pool *pgxpool.Pool, maxElapsed time.Duration) error {
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if err := pool.Ping(ctx); err != nil {
			logger.Debugf("Database ping attempt %d failed: %v", attempt, err)
			return struct{}{}, err
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(maxElapsed),
	)
	if err != nil {
		return fmt.Errorf("failed to ping database after %d attempts: %w", attempt, err)
	}
	return nil
}
