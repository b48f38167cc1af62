// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/wanderdesk/wanderdesk/pkg/errutil"
)

// ResetRequestMessage is returned by RequestPasswordReset for every input.
const ResetRequestMessage = "If an account exists for that email, password reset instructions have been sent."

// ChangePassword replaces the password of email after checking the old one.
// The account's session is revoked so the holder must log in again. Wrong
// old passwords count toward lockout, and a locked account is refused even
// with the right one.
func (s *Service) ChangePassword(ctx context.Context, email, oldPassword, newPassword string) error {
	corr := s.tokens.CorrelationID()
	logger := s.logger.With("correlation_id", corr)

	key := NormalizeEmail(email)
	if err := s.validator.ValidateEmail(key); err != nil {
		return invalidInput("email", err)
	}
	if err := s.validator.ValidatePassword(oldPassword); err != nil {
		return invalidInput("old_password", err)
	}
	if err := s.policy.Check(oldPassword, newPassword); err != nil {
		return err
	}

	if s.attempts.IsLocked(key) {
		return s.changeLocked(ctx, logger, key, corr)
	}

	account, err := s.users.FindByEmail(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Burn the same hashing work as a real mismatch.
			_, _ = s.hasher.Verify(oldPassword, s.dummyHash) //nolint:errcheck // result is irrelevant
			return s.changeRejected(ctx, logger, key, corr, "unknown_account")
		}
		errutil.LogError(logger, "account lookup failed", err)
		return internalError("find account", err)
	}

	valid, err := s.hasher.Verify(oldPassword, account.PasswordHash)
	if err != nil {
		errutil.LogError(logger, "stored password hash is unreadable", err)
		valid = false
	}
	switch {
	case !valid:
		return s.changeRejected(ctx, logger, key, corr, "wrong_password")
	case !account.Active:
		return s.changeRejected(ctx, logger, key, corr, "inactive_account")
	}

	if !s.attempts.RecordSuccessUnlessLocked(key) {
		return s.changeLocked(ctx, logger, key, corr)
	}

	if err := s.storePassword(ctx, account, newPassword); err != nil {
		errutil.LogError(logger, "password change not persisted", err)
		return internalError("update password", err)
	}

	s.revokeFor(key, RevokePasswordChange)
	s.recordEvent(ctx, EventPasswordChanged, key, corr, nil)
	logger.InfoContext(ctx, "password changed", "account", key)
	return nil
}

func (s *Service) changeLocked(ctx context.Context, logger *slog.Logger, key, corr string) error {
	remaining := s.attempts.RemainingLockoutSeconds(key)
	s.recordEvent(ctx, EventPasswordChangeRejected, key, corr, map[string]string{
		"reason":              "account_locked",
		"retry_after_seconds": strconv.Itoa(remaining),
	})
	logger.WarnContext(ctx, "password change rejected for locked account", "account", key)
	return accountLocked(remaining)
}

// changeRejected counts a failed old-password check and returns the uniform
// credentials error.
func (s *Service) changeRejected(ctx context.Context, logger *slog.Logger, key, corr, reason string) error {
	outcome := s.countFailure(ctx, logger, key, corr)
	s.recordEvent(ctx, EventPasswordChangeRejected, key, corr, map[string]string{
		"reason":             reason,
		"attempts_remaining": strconv.Itoa(outcome.AttemptsRemaining),
	})
	logger.InfoContext(ctx, "password change rejected", "account", key, "reason", reason)
	return invalidCredentials()
}

// RequestPasswordReset issues a reset token for email and sends it through
// the notifier. The returned message is identical whether or not the
// account exists.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) string {
	corr := s.tokens.CorrelationID()
	logger := s.logger.With("correlation_id", corr)

	key := NormalizeEmail(email)
	if err := s.validator.ValidateEmail(key); err != nil {
		logger.DebugContext(ctx, "password reset requested with malformed email")
		return ResetRequestMessage
	}

	account, err := s.users.FindByEmail(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
		logger.InfoContext(ctx, "password reset requested for unknown email", "account", key)
		s.recordEvent(ctx, EventPasswordResetRequest, key, corr, map[string]string{"known": "false"})
		return ResetRequestMessage
	case err != nil:
		errutil.LogError(logger, "account lookup failed", err)
		return ResetRequestMessage
	case !account.Active:
		logger.InfoContext(ctx, "password reset requested for blocked account", "account", key)
		s.recordEvent(ctx, EventPasswordResetRequest, key, corr, map[string]string{"known": "true", "active": "false"})
		return ResetRequestMessage
	}

	token, err := s.resets.Issue(key)
	if err != nil {
		errutil.LogError(logger, "reset token issue failed", err)
		return ResetRequestMessage
	}

	if err := s.notifier.SendResetNotice(ctx, account.Email, token); err != nil {
		errutil.LogError(logger, "reset notice delivery failed", err)
	}
	s.recordEvent(ctx, EventPasswordResetRequest, key, corr, map[string]string{"known": "true"})
	logger.InfoContext(ctx, "password reset token issued", "account", key)
	return ResetRequestMessage
}

// ResetPassword sets a new password for email using a reset token. The
// token is consumed on success and the account's session and lockout are
// cleared. Every failure other than a weak password is ErrInvalidToken.
func (s *Service) ResetPassword(ctx context.Context, email, token, newPassword string) error {
	corr := s.tokens.CorrelationID()
	logger := s.logger.With("correlation_id", corr)

	if err := s.policy.Check("", newPassword); err != nil {
		return err
	}

	key := NormalizeEmail(email)
	reject := func(reason string) error {
		s.recorder.PasswordReset(ResultFailure)
		s.recordEvent(ctx, EventPasswordResetRejected, key, corr, map[string]string{"reason": reason})
		logger.InfoContext(ctx, "password reset rejected", "account", key, "reason", reason)
		return invalidToken()
	}

	if key == "" || token == "" {
		return reject("missing_input")
	}
	if !s.resets.Consume(key, token) {
		return reject("token_mismatch")
	}

	account, err := s.users.FindByEmail(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return reject("unknown_account")
		}
		errutil.LogError(logger, "account lookup failed", err)
		s.recorder.PasswordReset(ResultError)
		return internalError("find account", err)
	}
	if !account.Active {
		return reject("inactive_account")
	}

	if err := s.storePassword(ctx, account, newPassword); err != nil {
		errutil.LogError(logger, "password reset not persisted", err)
		s.recorder.PasswordReset(ResultError)
		return internalError("update password", err)
	}

	s.revokeFor(key, RevokePasswordReset)
	s.attempts.RecordSuccess(key)
	s.recorder.PasswordReset(ResultSuccess)
	s.recordEvent(ctx, EventPasswordReset, key, corr, nil)
	logger.InfoContext(ctx, "password reset completed", "account", key)
	return nil
}

// storePassword hashes password and persists it on a copy of account.
func (s *Service) storePassword(ctx context.Context, account *Account, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	updated := *account
	updated.PasswordHash = hash
	updated.UpdatedAt = s.clock.Now()
	return s.users.Update(ctx, &updated)
}
