// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package main

import (
	"context"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/wanderdesk/wanderdesk/internal/auth"
)

// eventsConfig holds flags for the events command.
type eventsConfig struct {
	account string
	limit   int
	format  string
}

// NewEventsCmd creates the events subcommand.
func NewEventsCmd() *cobra.Command {
	cfg := &eventsConfig{}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recent security events",
		Long: `List stored security events, newest first: logins, lockouts, resets,
password changes and account blocks. Filter to one account with --account.`,
		Args: cobra.NoArgs,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			if cfg.limit < 1 {
				return oops.Code("INVALID_LIMIT").With("limit", cfg.limit).Errorf("--limit must be at least 1")
			}
			return validateFormat(cfg.format)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				return runEvents(ctx, cmd, a, cfg)
			})
		},
	}

	cmd.Flags().StringVar(&cfg.account, "account", "", "only events for this email")
	cmd.Flags().IntVar(&cfg.limit, "limit", 20, "maximum number of events")
	cmd.Flags().StringVar(&cfg.format, "format", formatTable, "output format (table, json, yaml)")
	return cmd
}

func runEvents(ctx context.Context, cmd *cobra.Command, a *app, cfg *eventsConfig) error {
	if a.history == nil {
		return oops.Code("EVENTS_UNAVAILABLE").Errorf("no event store configured")
	}
	key := ""
	if cfg.account != "" {
		key = auth.NormalizeEmail(cfg.account)
	}
	events, err := a.history.Recent(ctx, key, cfg.limit)
	if err != nil {
		return err
	}
	if events == nil {
		events = []auth.AuditEvent{}
	}
	return writeEvents(cmd, cfg.format, events)
}

func writeEvents(cmd *cobra.Command, format string, events []auth.AuditEvent) error {
	return writeValue(cmd.OutOrStdout(), format, events, func(w *tabwriter.Writer) {
		row(w, "TIME", "EVENT", "ACCOUNT", "CORRELATION", "DETAILS")
		for _, e := range events {
			account := e.AccountKey
			if account == "" {
				account = "-"
			}
			corr := e.CorrelationID
			if corr == "" {
				corr = "-"
			}
			row(w, e.At.UTC().Format(time.RFC3339), e.Name, account, corr, formatDetails(e.Details))
		}
	})
}

// formatDetails renders details as sorted key=value pairs.
func formatDetails(details map[string]string) string {
	if len(details) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+details[k])
	}
	return strings.Join(parts, " ")
}
