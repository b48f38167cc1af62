// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Account is a principal that can log in.
type Account struct {
	ID           ulid.ULID
	Email        string
	Name         string
	Phone        string
	PasswordHash string
	Role         Role
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Key returns the account key used by the session, lockout and reset registries.
func (a *Account) Key() string {
	return NormalizeEmail(a.Email)
}

// NewAccount creates a validated, active Account.
func NewAccount(email, name, phone, passwordHash string, role Role, now time.Time) (*Account, error) {
	key := NormalizeEmail(email)
	if key == "" {
		return nil, oops.Code("ACCOUNT_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code("ACCOUNT_INVALID_PASSWORD").Errorf("password hash cannot be empty")
	}
	if !role.Valid() {
		return nil, oops.Code("ACCOUNT_INVALID_ROLE").With("role", int(role)).Errorf("role is not valid")
	}
	return &Account{
		ID:           ulid.Make(),
		Email:        key,
		Name:         strings.TrimSpace(name),
		Phone:        strings.TrimSpace(phone),
		PasswordHash: passwordHash,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NormalizeEmail returns the case-normalized account key for an email.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserStore persists account records. Implementations must treat email
// lookups case-insensitively.
type UserStore interface {
	// FindByEmail returns the account for email or ErrNotFound.
	FindByEmail(ctx context.Context, email string) (*Account, error)

	// EmailExists reports whether an account uses email.
	EmailExists(ctx context.Context, email string) (bool, error)

	// Add stores a new account. Returns ErrEmailExists on a duplicate email.
	Add(ctx context.Context, account *Account) error

	// Update replaces a stored account. Returns ErrNotFound if it is missing.
	Update(ctx context.Context, account *Account) error

	// CountTotal returns the number of accounts.
	CountTotal(ctx context.Context) (int, error)

	// CountActive returns the number of accounts that are not blocked.
	CountActive(ctx context.Context) (int, error)
}
