// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/wanderdesk/wanderdesk/internal/config"
	"github.com/wanderdesk/wanderdesk/internal/logging"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the wanderdesk CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wanderdesk",
		Short: "wanderdesk - accounts and sessions for the travel desk",
		Long: `wanderdesk manages staff and tourist accounts: login with lockout,
sessions with inactivity timeout, password resets and role checks.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewUserAddCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewEventsCmd())

	return cmd
}

// loadConfig reads and validates settings for cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.Flags(), configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging installs the default logger described by cfg.
func setupLogging(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return logging.SetDefault(logging.Options{
		Service: "wanderdesk",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.LogLevel(),
		Output:  cmd.ErrOrStderr(),
	})
}
