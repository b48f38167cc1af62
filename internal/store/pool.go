// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

// Package store owns the PostgreSQL connection pool and schema migrations.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// ConnectOptions bounds how long Open keeps trying to reach the database.
type ConnectOptions struct {
	// Attempts is the maximum number of pings after the first one.
	Attempts uint64
	// Backoff is the first retry delay; it doubles up to MaxBackoff.
	Backoff    time.Duration
	MaxBackoff time.Duration
	Logger     *slog.Logger
}

// DefaultConnectOptions tolerates a database that is still starting.
func DefaultConnectOptions() ConnectOptions {
	return ConnectOptions{
		Attempts:   5,
		Backoff:    200 * time.Millisecond,
		MaxBackoff: 5 * time.Second,
		Logger:     slog.Default(),
	}
}

// pinger is the part of *pgxpool.Pool that Open waits on.
type pinger interface {
	Ping(ctx context.Context) error
}

// Open creates a pool for databaseURL and waits until it answers a ping.
func Open(ctx context.Context, databaseURL string, opts ConnectOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}
	if err := waitReady(ctx, pool, opts); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func waitReady(ctx context.Context, db pinger, opts ConnectOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	base := opts.Backoff
	if base <= 0 {
		base = 200 * time.Millisecond
	}

	backoff := retry.NewExponential(base)
	if opts.MaxBackoff > 0 {
		backoff = retry.WithCappedDuration(opts.MaxBackoff, backoff)
	}
	backoff = retry.WithMaxRetries(opts.Attempts, backoff)

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := db.Ping(ctx); err != nil {
			logger.WarnContext(ctx, "database not ready", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", attempt).
			Wrap(err)
	}
	return nil
}
