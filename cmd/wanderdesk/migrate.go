// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package main

import (
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/wanderdesk/wanderdesk/internal/store"
)

// migrator is the part of store.Migrator the subcommands drive.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (store.MigrationStatus, error)
	Close() error
}

// newMigrator is replaced in tests.
var newMigrator = func(databaseURL string) (migrator, error) {
	return store.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate command and its subcommands.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Apply, roll back or inspect database migrations. Without a subcommand,
migrate applies every pending migration.`,
		Args: cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m migrator, _ []string) error {
			return migrateUpCmd(cmd, m)
		}),
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m migrator, _ []string) error {
			return migrateUpCmd(cmd, m)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m migrator, _ []string) error {
			cmd.Println("Rolling back all migrations...")
			if err := m.Down(); err != nil {
				return err
			}
			cmd.Println("Rollback complete")
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "steps N",
		Short: "Apply N migrations (negative N rolls back)",
		Args:  cobra.ExactArgs(1),
		RunE: withMigrator(func(cmd *cobra.Command, m migrator, args []string) error {
			n, err := parseSteps(args[0])
			if err != nil {
				return err
			}
			if err := m.Steps(n); err != nil {
				return err
			}
			cmd.Printf("Moved %d step(s)\n", n)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations",
		Long: `Set the recorded schema version and clear the dirty flag. Use it only
after repairing a failed migration by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: withMigrator(func(cmd *cobra.Command, m migrator, args []string) error {
			v, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			if err := m.Force(v); err != nil {
				return err
			}
			cmd.Printf("Forced version %d\n", v)
			return nil
		}),
	})

	var format string
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return validateFormat(format)
		},
		RunE: withMigrator(func(cmd *cobra.Command, m migrator, _ []string) error {
			st, err := m.Status()
			if err != nil {
				return err
			}
			return writeMigrationStatus(cmd, format, st)
		}),
	}
	statusCmd.Flags().StringVar(&format, "format", formatTable, "output format (table, json, yaml)")
	cmd.AddCommand(statusCmd)

	return cmd
}

// withMigrator loads config, opens a migrator for the configured database
// and closes it after fn.
func withMigrator(fn func(*cobra.Command, migrator, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.RequireDatabase(); err != nil {
			return err
		}
		logger := setupLogging(cmd, cfg)

		m, err := newMigrator(cfg.Database.URL)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := m.Close(); closeErr != nil {
				logger.Warn("failed to close migrator", "error", closeErr)
			}
		}()
		return fn(cmd, m, args)
	}
}

func migrateUpCmd(cmd *cobra.Command, m migrator) error {
	cmd.Println("Running migrations...")
	if err := m.Up(); err != nil {
		return err
	}
	st, err := m.Status()
	if err != nil {
		return err
	}
	cmd.Printf("Migrations complete (version %d)\n", st.Version)
	return nil
}

func parseSteps(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, oops.Code("INVALID_STEPS").With("input", s).Wrap(err)
	}
	if n == 0 {
		return 0, oops.Code("INVALID_STEPS").With("input", s).Errorf("steps cannot be zero")
	}
	return n, nil
}

func parseForceVersion(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrap(err)
	}
	if v < 0 {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version cannot be negative")
	}
	return v, nil
}

func writeMigrationStatus(cmd *cobra.Command, format string, st store.MigrationStatus) error {
	return writeValue(cmd.OutOrStdout(), format, st, func(w *tabwriter.Writer) {
		row(w, "VERSION", "NAME", "DIRTY", "APPLIED", "PENDING")
		name := st.Name
		if name == "" {
			name = "-"
		}
		row(w, st.Version, name, st.Dirty, len(st.Applied), len(st.Pending))
	})
}
