// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"

	"github.com/wanderdesk/wanderdesk/pkg/errutil"
)

// Authorize reports whether email has a live session and holds required.
// A successful check refreshes the session. Denials are audited with the
// required role only.
func (s *Service) Authorize(ctx context.Context, email string, required Role) bool {
	key := NormalizeEmail(email)
	corr := s.tokens.CorrelationID()

	deny := func(reason string) bool {
		s.recorder.AuthorizationDenied(required.String())
		s.recordEvent(ctx, EventAuthorizationDenied, key, corr, map[string]string{
			"required_role": required.String(),
			"reason":        reason,
		})
		s.logger.WarnContext(ctx, "authorization denied",
			"account", key,
			"required_role", required.String(),
			"reason", reason,
			"correlation_id", corr,
		)
		return false
	}

	if !required.Valid() {
		return deny("invalid_role")
	}
	if !s.sessions.IsActive(key) {
		return deny("not_authenticated")
	}

	account, err := s.users.FindByEmail(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			errutil.LogError(s.logger, "account lookup failed during authorization", err)
		}
		return deny("account_unavailable")
	}
	if !account.Active {
		return deny("inactive_account")
	}
	if account.Role != required {
		return deny("role_mismatch")
	}

	s.sessions.Refresh(key)
	return true
}

// BlockAccount deactivates email and ends its session.
func (s *Service) BlockAccount(ctx context.Context, email, reason string) error {
	key := NormalizeEmail(email)
	corr := s.tokens.CorrelationID()

	if err := s.setActive(ctx, key, false); err != nil {
		return err
	}
	s.revokeFor(key, RevokeBlocked)
	s.recordEvent(ctx, EventAccountBlocked, key, corr, map[string]string{"reason": reason})
	s.logger.WarnContext(ctx, "account blocked", "account", key, "reason", reason, "correlation_id", corr)
	return nil
}

// UnblockAccount reactivates email.
func (s *Service) UnblockAccount(ctx context.Context, email string) error {
	key := NormalizeEmail(email)
	corr := s.tokens.CorrelationID()

	if err := s.setActive(ctx, key, true); err != nil {
		return err
	}
	s.recordEvent(ctx, EventAccountUnblocked, key, corr, map[string]string{"reason": "administrative unblock"})
	s.logger.WarnContext(ctx, "account unblocked", "account", key, "correlation_id", corr)
	return nil
}

func (s *Service) setActive(ctx context.Context, key string, active bool) error {
	account, err := s.users.FindByEmail(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return accountNotFound(key)
		}
		errutil.LogError(s.logger, "account lookup failed", err)
		return internalError("find account", err)
	}
	if account.Active == active {
		return nil
	}
	updated := *account
	updated.Active = active
	updated.UpdatedAt = s.clock.Now()
	if err := s.users.Update(ctx, &updated); err != nil {
		errutil.LogError(s.logger, "account status not persisted", err)
		return internalError("update account", err)
	}
	return nil
}

// UnlockAccount clears email's failed attempts and any lock.
func (s *Service) UnlockAccount(ctx context.Context, email string) {
	key := NormalizeEmail(email)
	s.attempts.ManualUnlock(key)
	s.recordEvent(ctx, EventAccountUnlocked, key, s.tokens.CorrelationID(), nil)
	s.logger.WarnContext(ctx, "account unlocked manually", "account", key)
}

// Registration is the input to Register.
type Registration struct {
	Email    string
	Name     string
	Phone    string
	Password string
	Role     Role
}

// Register creates an active account and sends a welcome notice.
func (s *Service) Register(ctx context.Context, reg Registration) (*Account, error) {
	corr := s.tokens.CorrelationID()
	logger := s.logger.With("correlation_id", corr)

	key := NormalizeEmail(reg.Email)
	checks := []struct {
		field string
		err   error
	}{
		{"email", s.validator.ValidateEmail(key)},
		{"name", s.validator.ValidateName(reg.Name)},
		{"phone", s.validator.ValidatePhone(reg.Phone)},
		{"password", s.validator.ValidatePassword(reg.Password)},
	}
	for _, c := range checks {
		if c.err != nil {
			return nil, invalidInput(c.field, c.err)
		}
	}
	if !reg.Role.Valid() {
		return nil, invalidInput("role", nil)
	}
	if err := s.policy.Check("", reg.Password); err != nil {
		return nil, err
	}

	exists, err := s.users.EmailExists(ctx, key)
	if err != nil {
		errutil.LogError(logger, "email lookup failed", err)
		return nil, internalError("email exists", err)
	}
	if exists {
		return nil, emailTaken(key)
	}

	hash, err := s.hasher.Hash(reg.Password)
	if err != nil {
		errutil.LogError(logger, "password hash failed", err)
		return nil, internalError("hash password", err)
	}
	account, err := NewAccount(key, reg.Name, reg.Phone, hash, reg.Role, s.clock.Now())
	if err != nil {
		return nil, internalError("new account", err)
	}
	if err := s.users.Add(ctx, account); err != nil {
		if errors.Is(err, ErrEmailExists) {
			return nil, emailTaken(key)
		}
		errutil.LogError(logger, "account not persisted", err)
		return nil, internalError("add account", err)
	}

	if err := s.notifier.SendWelcomeNotice(ctx, account.Email, account.Name); err != nil {
		errutil.LogError(logger, "welcome notice delivery failed", err)
	}
	s.recordEvent(ctx, EventAccountRegistered, key, corr, map[string]string{"role": account.Role.String()})
	logger.InfoContext(ctx, "account registered", "account", key, "role", account.Role.String())
	return account, nil
}

func emailTaken(key string) error {
	return oops.Code(CodeEmailTaken).With("account", key).Wrap(ErrEmailTaken)
}

// SecurityStatistics is a read-only snapshot for administrative callers.
type SecurityStatistics struct {
	ActiveSessions      int `json:"active_sessions" yaml:"active_sessions"`
	LockedAccounts      int `json:"locked_accounts" yaml:"locked_accounts"`
	TotalFailedAttempts int `json:"total_failed_attempts" yaml:"total_failed_attempts"`
	PendingResetTokens  int `json:"pending_reset_tokens" yaml:"pending_reset_tokens"`
	TotalUsers          int `json:"total_users" yaml:"total_users"`
	ActiveUsers         int `json:"active_users" yaml:"active_users"`
}

// SecurityStatistics aggregates the registries and the user store.
func (s *Service) SecurityStatistics(ctx context.Context) (SecurityStatistics, error) {
	stats := SecurityStatistics{
		ActiveSessions:      s.sessions.ActiveCount(),
		LockedAccounts:      s.attempts.LockedCount(),
		TotalFailedAttempts: s.attempts.TotalFailedAttempts(),
		PendingResetTokens:  s.resets.PendingCount(),
	}

	total, err := s.users.CountTotal(ctx)
	if err != nil {
		return stats, internalError("count users", err)
	}
	active, err := s.users.CountActive(ctx)
	if err != nil {
		return stats, internalError("count active users", err)
	}
	stats.TotalUsers = total
	stats.ActiveUsers = active
	return stats, nil
}

// LogValue implements slog.LogValuer.
func (st SecurityStatistics) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("active_sessions", st.ActiveSessions),
		slog.Int("locked_accounts", st.LockedAccounts),
		slog.Int("total_failed_attempts", st.TotalFailedAttempts),
		slog.Int("pending_reset_tokens", st.PendingResetTokens),
		slog.Int("total_users", st.TotalUsers),
		slog.Int("active_users", st.ActiveUsers),
	)
}
