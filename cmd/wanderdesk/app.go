// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/wanderdesk/wanderdesk/internal/audit"
	"github.com/wanderdesk/wanderdesk/internal/auth"
	"github.com/wanderdesk/wanderdesk/internal/auth/postgres"
	"github.com/wanderdesk/wanderdesk/internal/config"
	"github.com/wanderdesk/wanderdesk/internal/notify"
	"github.com/wanderdesk/wanderdesk/internal/observability"
	"github.com/wanderdesk/wanderdesk/internal/store"
)

// eventReader lists stored security events, newest first.
type eventReader interface {
	Recent(ctx context.Context, accountKey string, limit int) ([]auth.AuditEvent, error)
}

// backend is the persistent side of the service.
type backend struct {
	users   auth.UserStore
	events  auth.AuditSink
	purger  audit.Purger
	history eventReader
}

// app holds the assembled components a command runs against.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	service   *auth.Service
	audit     *audit.Logger
	retention *audit.RetentionWorker
	history   eventReader
	// obs is nil when metrics.addr is empty.
	obs     *observability.Server
	closers []func() error
}

// newApp wires the auth service over be. Notices are written to notices.
func newApp(cfg *config.Config, be backend, notices io.Writer, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, history: be.history}

	var recorder auth.Recorder
	auditOpts := audit.Options{
		Mode:    audit.Mode(cfg.Audit.Mode),
		WALPath: cfg.Audit.WALPath,
		Logger:  logger,
	}
	if cfg.Metrics.Addr != "" {
		a.obs = observability.NewServer(cfg.Metrics.Addr, func() bool { return a.service != nil })
		recorder = a.obs.Metrics()
		auditOpts.Registerer = a.obs.Registry()
	}

	auditLogger, err := audit.NewLogger(audit.Tee(be.events, audit.NewSlogSink(logger)), auditOpts)
	if err != nil {
		return nil, err
	}
	a.audit = auditLogger
	a.closers = append(a.closers, auditLogger.Close)

	if be.purger != nil {
		retention := audit.DefaultRetentionConfig()
		retention.RetainFor = cfg.Audit.Retention
		a.retention = audit.NewRetentionWorker(retention, be.purger, logger)
	}

	notifier := notify.NewBackground(notify.NewRetrying(
		notify.NewOutbox(notices, logger),
		notify.RetryConfig{
			Retries:    cfg.Notify.Retries,
			Backoff:    notify.DefaultRetryConfig().Backoff,
			MaxBackoff: notify.DefaultRetryConfig().MaxBackoff,
		},
		logger,
	), logger)
	a.closers = append(a.closers, notifier.Close)

	opts := append(cfg.AuthOptions(),
		auth.WithNotifier(notifier),
		auth.WithAuditSink(auditLogger),
		auth.WithLogger(logger),
	)
	if recorder != nil {
		opts = append(opts, auth.WithRecorder(recorder))
	}
	svc, err := auth.NewService(be.users, opts...)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.service = svc

	if a.obs != nil {
		if err := a.obs.Watch(svc); err != nil {
			_ = a.Close()
			return nil, err
		}
	}
	return a, nil
}

// Close releases components in reverse order of creation.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// connect opens the database named by cfg, migrating it first when
// auto_migrate is set.
func connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}

	if cfg.Database.AutoMigrate {
		if err := migrateUp(cfg.Database.URL, logger); err != nil {
			return nil, err
		}
	}

	opts := store.DefaultConnectOptions()
	opts.Attempts = cfg.Database.ConnectAttempts
	opts.Logger = logger
	return store.Open(ctx, cfg.Database.URL, opts)
}

func migrateUp(databaseURL string, logger *slog.Logger) error {
	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	if err := migrator.Up(); err != nil {
		return err
	}
	v, _, err := migrator.Version()
	if err != nil {
		return err
	}
	logger.Info("database schema ready", "version", v)
	return nil
}

// postgresBackend adapts pool to the auth storage ports.
func postgresBackend(pool *pgxpool.Pool) backend {
	events := postgres.NewAuditRepository(pool)
	return backend{
		users:   postgres.NewAccountRepository(pool),
		events:  events,
		purger:  events,
		history: events,
	}
}

// openApp connects to the database and assembles the app. The pool closes
// with the app. Tests replace it with an in-memory backend.
var openApp = func(ctx context.Context, cfg *config.Config, notices io.Writer, logger *slog.Logger) (*app, error) {
	pool, err := connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a, err := newApp(cfg, postgresBackend(pool), notices, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	a.closers = append([]func() error{func() error { pool.Close(); return nil }}, a.closers...)
	return a, nil
}

// openNotices resolves notify.outbox. "-" and "" write to stdout.
func openNotices(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, oops.Code("OUTBOX_OPEN_FAILED").With("path", path).Wrap(err)
	}
	return f, f.Close, nil
}

// withApp loads config, opens the app and runs fn against it. Notices go to
// the configured outbox.
func withApp(cmd *cobra.Command, fn func(context.Context, *app) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogging(cmd, cfg)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	notices, closeNotices, err := openNotices(cfg.Notify.Outbox, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer func() {
		if err := closeNotices(); err != nil {
			logger.Warn("failed to close outbox", "error", err)
		}
	}()

	a, err := openApp(ctx, cfg, notices, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("error during shutdown", "error", err)
		}
	}()

	return fn(ctx, a)
}
