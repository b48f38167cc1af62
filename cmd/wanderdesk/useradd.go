// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package main

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/wanderdesk/wanderdesk/internal/auth"
)

// userAddConfig holds flags for the useradd command.
type userAddConfig struct {
	email         string
	name          string
	phone         string
	role          string
	password      string
	passwordStdin bool
}

// NewUserAddCmd creates the useradd subcommand.
func NewUserAddCmd() *cobra.Command {
	cfg := &userAddConfig{}

	cmd := &cobra.Command{
		Use:   "useradd",
		Short: "Register an account",
		Long: `Register an active account with the given role. The password is read
from the first line of stdin with --password-stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := cfg.registration(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				return runUserAdd(ctx, cmd, a, reg)
			})
		},
	}

	cmd.Flags().StringVar(&cfg.email, "email", "", "account email (required)")
	cmd.Flags().StringVar(&cfg.name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&cfg.phone, "phone", "", "contact phone")
	cmd.Flags().StringVar(&cfg.role, "role", auth.RoleTourist.String(), "role (admin, agent, tourist)")
	cmd.Flags().StringVar(&cfg.password, "password", "", "password (visible to other local users; prefer --password-stdin)")
	cmd.Flags().BoolVar(&cfg.passwordStdin, "password-stdin", false, "read the password from stdin")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	cmd.MarkFlagsMutuallyExclusive("password", "password-stdin")

	return cmd
}

// registration resolves the flags into a Registration. Field validation is
// left to the service.
func (c *userAddConfig) registration(stdin io.Reader) (auth.Registration, error) {
	role, err := auth.ParseRole(c.role)
	if err != nil {
		return auth.Registration{}, err
	}

	password := c.password
	if c.passwordStdin {
		password, err = readPassword(stdin)
		if err != nil {
			return auth.Registration{}, err
		}
	}
	if password == "" {
		return auth.Registration{}, oops.Code("PASSWORD_REQUIRED").
			Errorf("a password is required (use --password-stdin)")
	}

	return auth.Registration{
		Email:    c.email,
		Name:     c.name,
		Phone:    c.phone,
		Password: password,
		Role:     role,
	}, nil
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runUserAdd(ctx context.Context, cmd *cobra.Command, a *app, reg auth.Registration) error {
	account, err := a.service.Register(ctx, reg)
	if err != nil {
		return err
	}
	cmd.Printf("Registered %s as %s (id %s)\n", account.Email, account.Role, account.ID)
	return nil
}
