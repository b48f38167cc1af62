// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// shutdownTimeout bounds graceful shutdown of the HTTP listener.
const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the auth service",
		Long: `Run the auth service until interrupted. Serve connects to the database,
applies pending migrations, replays the audit write-ahead log, and runs the
janitor and audit retention in the background. Metrics, health probes and
/debug/security are served on --metrics-addr.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		return a.run(ctx, cmd)
	})
}

// run starts the background workers and blocks until a signal, a server
// error or ctx ends.
func (a *app) run(ctx context.Context, cmd *cobra.Command) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if n, err := a.audit.ReplayWAL(ctx); err != nil {
		a.logger.Warn("audit write-ahead log replay incomplete", "replayed", n, "error", err)
	}

	if a.retention != nil {
		a.retention.Start(ctx)
		defer a.retention.Stop()
	}

	janitorDone := make(chan struct{})
	go func() {
		defer close(janitorDone)
		a.service.RunJanitor(ctx, a.cfg.Auth.SweepInterval)
	}()
	defer func() {
		cancel()
		<-janitorDone
	}()

	var obsErr <-chan error
	if a.obs != nil {
		errCh, err := a.obs.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").With("addr", a.cfg.Metrics.Addr).Wrap(err)
		}
		obsErr = errCh
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			if err := a.obs.Stop(shutdownCtx); err != nil {
				a.logger.Warn("error stopping observability server", "error", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("wanderdesk started")
	a.logger.Info("auth service ready",
		"metrics_addr", a.cfg.Metrics.Addr,
		"lockout_enabled", a.cfg.Auth.LockoutEnabled,
		"session_timeout", a.cfg.Auth.SessionTimeout,
	)

	select {
	case sig := <-sigChan:
		a.logger.Info("received shutdown signal", "signal", sig)
	case err, ok := <-obsErr:
		if ok && err != nil {
			return oops.Code("OBSERVABILITY_FAILED").Wrap(err)
		}
	case <-ctx.Done():
		a.logger.Info("context cancelled, shutting down")
	}

	a.logger.Info("shutting down")
	return nil
}
