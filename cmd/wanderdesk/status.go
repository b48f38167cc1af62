// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/wanderdesk/wanderdesk/internal/auth"
	"github.com/wanderdesk/wanderdesk/internal/store"
)

// statusTimeout bounds each status probe.
const statusTimeout = 2 * time.Second

// ServerStatus describes the running service as seen on its metrics address.
type ServerStatus struct {
	Addr     string                   `json:"addr" yaml:"addr"`
	Running  bool                     `json:"running" yaml:"running"`
	Security *auth.SecurityStatistics `json:"security,omitempty" yaml:"security,omitempty"`
	Error    string                   `json:"error,omitempty" yaml:"error,omitempty"`
}

// StatusReport is what the status command prints.
type StatusReport struct {
	Server      ServerStatus           `json:"server" yaml:"server"`
	Schema      *store.MigrationStatus `json:"schema,omitempty" yaml:"schema,omitempty"`
	SchemaError string                 `json:"schema_error,omitempty" yaml:"schema_error,omitempty"`
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the security snapshot of a running service",
		Long: `Query the running service on --metrics-addr for its security statistics
(active sessions, locked accounts, failed attempts, pending resets, user
counts) and report the database schema version when a database is configured.`,
		Args: cobra.NoArgs,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return validateFormat(format)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			setupLogging(cmd, cfg)

			report := StatusReport{Server: queryServer(cmd.Context(), cfg.Metrics.Addr)}
			if cfg.Database.URL != "" {
				st, err := schemaStatus(cfg.Database.URL)
				if err != nil {
					report.SchemaError = err.Error()
				} else {
					report.Schema = &st
				}
			}
			return writeStatus(cmd, format, report)
		},
	}

	cmd.Flags().StringVar(&format, "format", formatTable, "output format (table, json, yaml)")
	return cmd
}

// queryServer fetches /debug/security from addr.
func queryServer(ctx context.Context, addr string) ServerStatus {
	status := ServerStatus{Addr: addr}
	if addr == "" {
		status.Error = "metrics address not configured"
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/debug/security", http.NoBody)
	if err != nil {
		status.Error = fmt.Sprintf("invalid address: %v", err)
		return status
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	defer func() { _ = resp.Body.Close() }()

	// The server answered, so it is running even if the snapshot failed.
	status.Running = true
	if resp.StatusCode != http.StatusOK {
		status.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		return status
	}
	var stats auth.SecurityStatistics
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		status.Error = fmt.Sprintf("failed to decode snapshot: %v", err)
		return status
	}
	status.Security = &stats
	return status
}

func schemaStatus(databaseURL string) (store.MigrationStatus, error) {
	m, err := newMigrator(databaseURL)
	if err != nil {
		return store.MigrationStatus{}, err
	}
	defer func() { _ = m.Close() }()
	st, err := m.Status()
	if err != nil {
		return store.MigrationStatus{}, oops.With("operation", "schema status").Wrap(err)
	}
	return st, nil
}

func writeStatus(cmd *cobra.Command, format string, report StatusReport) error {
	return writeValue(cmd.OutOrStdout(), format, report, func(w *tabwriter.Writer) {
		srv := report.Server
		state := "stopped"
		if srv.Running {
			state = "running"
		}
		addr := srv.Addr
		if addr == "" {
			addr = "-"
		}
		row(w, "SERVER", addr, state)
		if srv.Error != "" {
			row(w, "ERROR", srv.Error)
		}
		if s := srv.Security; s != nil {
			row(w, "ACTIVE SESSIONS", s.ActiveSessions)
			row(w, "LOCKED ACCOUNTS", s.LockedAccounts)
			row(w, "FAILED ATTEMPTS", s.TotalFailedAttempts)
			row(w, "PENDING RESETS", s.PendingResetTokens)
			row(w, "USERS", fmt.Sprintf("%d (%d active)", s.TotalUsers, s.ActiveUsers))
		}
		switch {
		case report.Schema != nil:
			dirty := ""
			if report.Schema.Dirty {
				dirty = " (dirty)"
			}
			row(w, "SCHEMA", fmt.Sprintf("%d%s, %d pending", report.Schema.Version, dirty, len(report.Schema.Pending)))
		case report.SchemaError != "":
			row(w, "SCHEMA", report.SchemaError)
		}
	})
}
