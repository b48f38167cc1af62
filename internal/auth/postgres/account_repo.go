// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

// Package postgres implements the auth storage ports on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/wanderdesk/wanderdesk/internal/auth"
)

// poolIface is the subset of *pgxpool.Pool the repositories use. pgxmock
// satisfies it in unit tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AccountRepository implements auth.UserStore.
type AccountRepository struct {
	pool poolIface
}

// NewAccountRepository creates an AccountRepository.
func NewAccountRepository(pool poolIface) *AccountRepository {
	return &AccountRepository{pool: pool}
}

const accountColumns = `id, email, name, phone, password_hash, role, active, created_at, updated_at`

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// FindByEmail looks an account up case-insensitively.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	key := auth.NormalizeEmail(email)
	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE lower(email) = $1
	`, key)

	acct, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("email", key).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").With("email", key).Wrap(err)
	}
	return acct, nil
}

// EmailExists reports whether an account uses email.
func (r *AccountRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	key := auth.NormalizeEmail(email)
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM accounts WHERE lower(email) = $1)
	`, key).Scan(&exists)
	if err != nil {
		return false, oops.Code("ACCOUNT_EXISTS_FAILED").With("email", key).Wrap(err)
	}
	return exists, nil
}

// Add inserts account. A duplicate email yields auth.ErrEmailExists.
func (r *AccountRepository) Add(ctx context.Context, account *auth.Account) error {
	if account == nil {
		return oops.Code("ACCOUNT_CREATE_FAILED").Errorf("account cannot be nil")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		account.ID.String(),
		account.Key(),
		account.Name,
		account.Phone,
		account.PasswordHash,
		account.Role.String(),
		account.Active,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return oops.Code("ACCOUNT_EMAIL_EXISTS").With("email", account.Key()).Wrap(auth.ErrEmailExists)
	}
	if err != nil {
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("email", account.Key()).
			Wrap(err)
	}
	return nil
}

// Update rewrites every mutable column of account, matched by ID.
func (r *AccountRepository) Update(ctx context.Context, account *auth.Account) error {
	if account == nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").Errorf("account cannot be nil")
	}
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET
			email = $2,
			name = $3,
			phone = $4,
			password_hash = $5,
			role = $6,
			active = $7,
			updated_at = $8
		WHERE id = $1
	`,
		account.ID.String(),
		account.Key(),
		account.Name,
		account.Phone,
		account.PasswordHash,
		account.Role.String(),
		account.Active,
		account.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return oops.Code("ACCOUNT_EMAIL_EXISTS").With("email", account.Key()).Wrap(auth.ErrEmailExists)
	}
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update account").
			With("id", account.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").With("id", account.ID.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// CountTotal returns the number of accounts.
func (r *AccountRepository) CountTotal(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT count(*) FROM accounts`, "count accounts")
}

// CountActive returns the number of accounts that are not blocked.
func (r *AccountRepository) CountActive(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT count(*) FROM accounts WHERE active`, "count active accounts")
}

func (r *AccountRepository) count(ctx context.Context, query, operation string) (int, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, oops.Code("ACCOUNT_COUNT_FAILED").With("operation", operation).Wrap(err)
	}
	return int(n), nil
}

// scanAccount reads one row in accountColumns order. pgx.ErrNoRows is
// returned unwrapped so callers can map it.
func scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		idStr     string
		email     string
		name      string
		phone     string
		hash      string
		roleName  string
		active    bool
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&idStr, &email, &name, &phone, &hash, &roleName, &active, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // mapped by the caller
		}
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").With("id", idStr).Wrap(err)
	}
	role, err := auth.ParseRole(roleName)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ROLE").With("id", idStr).Wrap(err)
	}

	return &auth.Account{
		ID:           id,
		Email:        email,
		Name:         name,
		Phone:        phone,
		PasswordHash: hash,
		Role:         role,
		Active:       active,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

var _ auth.UserStore = (*AccountRepository)(nil)
