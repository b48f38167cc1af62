// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package auth

import (
	"time"

	"github.com/samber/oops"
)

// DefaultResetTokenTTL bounds how long a password reset token stays usable.
const DefaultResetTokenTTL = time.Hour

// ResetConfig configures a PasswordResetTokenStore.
type ResetConfig struct {
	// TTL is the lifetime of an issued token. Zero or negative disables
	// time-based expiry, leaving use or invalidation as the only way out.
	TTL time.Duration
}

// DefaultResetConfig returns the reset policy used when none is given.
func DefaultResetConfig() ResetConfig {
	return ResetConfig{TTL: DefaultResetTokenTTL}
}

type resetEntry struct {
	tokenHash string
	issuedAt  time.Time
	expiresAt time.Time // zero when TTL is disabled
}

func (e resetEntry) expiredAt(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// PasswordResetTokenStore holds at most one reset token per account.
// Validation does not consume the token; callers invalidate it after use.
// It is safe for concurrent use.
type PasswordResetTokenStore struct {
	cfg    ResetConfig
	clock  Clock
	tokens TokenGenerator
	resets *keyedStore[resetEntry]
}

// NewPasswordResetTokenStore creates a store. Nil clock and token generator
// fall back to SystemClock and RandomTokenGenerator.
func NewPasswordResetTokenStore(cfg ResetConfig, clock Clock, tokens TokenGenerator) *PasswordResetTokenStore {
	if clock == nil {
		clock = SystemClock{}
	}
	if tokens == nil {
		tokens = NewRandomTokenGenerator()
	}
	return &PasswordResetTokenStore{
		cfg:    cfg,
		clock:  clock,
		tokens: tokens,
		resets: newKeyedStore[resetEntry](),
	}
}

// Issue generates a token for key, overwriting any previous one.
func (s *PasswordResetTokenStore) Issue(key string) (string, error) {
	if key == "" {
		return "", oops.Code("RESET_INVALID_ACCOUNT").Errorf("account key cannot be empty")
	}
	token, err := s.tokens.ResetToken()
	if err != nil {
		return "", oops.Code("RESET_ISSUE_FAILED").
			With("operation", "generate reset token").
			Wrap(err)
	}

	now := s.clock.Now()
	entry := resetEntry{tokenHash: HashToken(token), issuedAt: now}
	if s.cfg.TTL > 0 {
		entry.expiresAt = now.Add(s.cfg.TTL)
	}
	s.resets.update(key, func(resetEntry, bool) (resetEntry, bool) {
		return entry, true
	})
	return token, nil
}

// Validate reports whether token is the current, unexpired reset token for
// key. An expired token is evicted.
func (s *PasswordResetTokenStore) Validate(key, token string) bool {
	now := s.clock.Now()
	var valid bool
	s.resets.update(key, func(e resetEntry, ok bool) (resetEntry, bool) {
		if !ok || e.expiredAt(now) {
			return e, false
		}
		valid = tokenMatches(token, e.tokenHash)
		return e, true
	})
	return valid
}

// Consume validates token and removes it in the same atomic step, so two
// concurrent resets with one token cannot both succeed.
func (s *PasswordResetTokenStore) Consume(key, token string) bool {
	now := s.clock.Now()
	var valid bool
	s.resets.update(key, func(e resetEntry, ok bool) (resetEntry, bool) {
		if !ok || e.expiredAt(now) {
			return e, false
		}
		if !tokenMatches(token, e.tokenHash) {
			return e, true
		}
		valid = true
		return e, false
	})
	return valid
}

// Invalidate removes key's token.
func (s *PasswordResetTokenStore) Invalidate(key string) {
	s.resets.delete(key)
}

// PendingCount returns the number of unexpired tokens.
func (s *PasswordResetTokenStore) PendingCount() int {
	now := s.clock.Now()
	count := 0
	s.resets.scan(func(_ string, e resetEntry) (resetEntry, bool) {
		if e.expiredAt(now) {
			return e, false
		}
		count++
		return e, true
	})
	return count
}

// Sweep evicts expired tokens and returns how many were removed.
func (s *PasswordResetTokenStore) Sweep() int {
	now := s.clock.Now()
	removed := 0
	s.resets.scan(func(_ string, e resetEntry) (resetEntry, bool) {
		if e.expiredAt(now) {
			removed++
			return e, false
		}
		return e, true
	})
	return removed
}
