// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package auth

import (
	"time"
)

// Lockout defaults.
const (
	DefaultMaxAttempts     = 3
	DefaultLockoutDuration = 30 * time.Minute
)

// LockoutConfig configures a LoginAttemptTracker.
type LockoutConfig struct {
	// MaxAttempts is the number of consecutive failures that locks an account.
	// Defaults to DefaultMaxAttempts if zero or negative.
	MaxAttempts int

	// Duration is how long a lock lasts. Defaults to DefaultLockoutDuration
	// if zero or negative.
	Duration time.Duration

	// Enabled turns locking on. When false, failures are still counted but no
	// account is ever locked.
	Enabled bool
}

// DefaultLockoutConfig returns the lockout policy used when none is given.
func DefaultLockoutConfig() LockoutConfig {
	return LockoutConfig{
		MaxAttempts: DefaultMaxAttempts,
		Duration:    DefaultLockoutDuration,
		Enabled:     true,
	}
}

func (c LockoutConfig) withDefaults() LockoutConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Duration <= 0 {
		c.Duration = DefaultLockoutDuration
	}
	return c
}

// LockoutPhase names the state of an account in the lockout state machine.
type LockoutPhase int

// Lockout phases.
const (
	LockoutClear LockoutPhase = iota
	LockoutWarning
	LockoutLocked
)

// String returns the phase name.
func (p LockoutPhase) String() string {
	switch p {
	case LockoutClear:
		return "clear"
	case LockoutWarning:
		return "warning"
	case LockoutLocked:
		return "locked"
	}
	return "unknown"
}

// LockoutState is a snapshot of one account's failed-attempt bookkeeping.
type LockoutState struct {
	AccountKey     string
	FailedAttempts int
	LockedUntil    *time.Time
	Phase          LockoutPhase
}

// LockoutOutcome is the result of recording a failed login.
type LockoutOutcome struct {
	// Locked is true when the account is locked after this failure.
	Locked bool

	// Transitioned is true only for the failure that moved the account into
	// the locked phase.
	Transitioned bool

	// AttemptsRemaining is the number of failures left before a lock.
	// Zero when Locked.
	AttemptsRemaining int

	// LockedUntil is set when Locked.
	LockedUntil time.Time
}

type attemptEntry struct {
	failures    int
	lockedUntil time.Time // zero when not locked
}

// LoginAttemptTracker counts failed logins per account and locks accounts
// that reach the configured threshold. Lock expiry is evaluated lazily on
// every query. It is safe for concurrent use.
type LoginAttemptTracker struct {
	cfg     LockoutConfig
	clock   Clock
	entries *keyedStore[attemptEntry]
}

// NewLoginAttemptTracker creates a tracker. A nil clock uses SystemClock.
func NewLoginAttemptTracker(cfg LockoutConfig, clock Clock) *LoginAttemptTracker {
	if clock == nil {
		clock = SystemClock{}
	}
	return &LoginAttemptTracker{
		cfg:     cfg.withDefaults(),
		clock:   clock,
		entries: newKeyedStore[attemptEntry](),
	}
}

// Config returns the effective configuration.
func (t *LoginAttemptTracker) Config() LockoutConfig {
	return t.cfg
}

// expire clears a lock whose deadline has passed. It reports whether the
// entry is still worth keeping.
func (e *attemptEntry) expire(now time.Time) bool {
	if !e.lockedUntil.IsZero() && !now.Before(e.lockedUntil) {
		*e = attemptEntry{}
	}
	return e.failures > 0 || !e.lockedUntil.IsZero()
}

func (e *attemptEntry) locked(now time.Time) bool {
	return !e.lockedUntil.IsZero() && now.Before(e.lockedUntil)
}

// RecordFailure counts a failed login for key and locks the account when
// the threshold is reached. A failure on an already locked account is
// counted without extending the lock.
func (t *LoginAttemptTracker) RecordFailure(key string) LockoutOutcome {
	now := t.clock.Now()
	var out LockoutOutcome

	t.entries.update(key, func(e attemptEntry, _ bool) (attemptEntry, bool) {
		e.expire(now)
		e.failures++

		if e.locked(now) {
			out = LockoutOutcome{Locked: true, LockedUntil: e.lockedUntil}
			return e, true
		}

		if t.cfg.Enabled && e.failures >= t.cfg.MaxAttempts {
			e.lockedUntil = now.Add(t.cfg.Duration)
			out = LockoutOutcome{Locked: true, Transitioned: true, LockedUntil: e.lockedUntil}
			return e, true
		}

		remaining := t.cfg.MaxAttempts - e.failures
		if remaining < 0 {
			remaining = 0
		}
		out = LockoutOutcome{AttemptsRemaining: remaining}
		return e, true
	})

	return out
}

// RecordSuccess resets key to the clear phase.
func (t *LoginAttemptTracker) RecordSuccess(key string) {
	t.entries.delete(key)
}

// RecordSuccessUnlessLocked clears key like RecordSuccess, but only when key
// is not locked at that moment. It returns false and leaves the entry intact
// when a lock is in force.
func (t *LoginAttemptTracker) RecordSuccessUnlessLocked(key string) bool {
	if !t.cfg.Enabled {
		t.entries.delete(key)
		return true
	}
	now := t.clock.Now()
	cleared := true
	t.entries.update(key, func(e attemptEntry, ok bool) (attemptEntry, bool) {
		if !ok {
			return e, false
		}
		e.expire(now)
		if e.locked(now) {
			cleared = false
			return e, true
		}
		return e, false
	})
	return cleared
}

// ManualUnlock clears the counter and any lock for key regardless of expiry.
func (t *LoginAttemptTracker) ManualUnlock(key string) {
	t.entries.delete(key)
}

// IsLocked reports whether key is locked now. An expired lock is cleared as
// a side effect.
func (t *LoginAttemptTracker) IsLocked(key string) bool {
	if !t.cfg.Enabled {
		return false
	}
	now := t.clock.Now()
	var locked bool
	t.entries.update(key, func(e attemptEntry, ok bool) (attemptEntry, bool) {
		if !ok {
			return e, false
		}
		keep := e.expire(now)
		locked = e.locked(now)
		return e, keep
	})
	return locked
}

// RemainingLockoutSeconds returns the whole seconds, rounded up, until the
// lock on key expires, or 0 when key is not locked.
func (t *LoginAttemptTracker) RemainingLockoutSeconds(key string) int {
	if !t.cfg.Enabled {
		return 0
	}
	now := t.clock.Now()
	var remaining time.Duration
	t.entries.update(key, func(e attemptEntry, ok bool) (attemptEntry, bool) {
		if !ok {
			return e, false
		}
		keep := e.expire(now)
		if e.locked(now) {
			remaining = e.lockedUntil.Sub(now)
		}
		return e, keep
	})
	if remaining <= 0 {
		return 0
	}
	return int((remaining + time.Second - 1) / time.Second)
}

// State returns a snapshot of key's lockout bookkeeping after lazy expiry.
func (t *LoginAttemptTracker) State(key string) LockoutState {
	now := t.clock.Now()
	st := LockoutState{AccountKey: key}
	t.entries.update(key, func(e attemptEntry, ok bool) (attemptEntry, bool) {
		if !ok {
			return e, false
		}
		keep := e.expire(now)
		st.FailedAttempts = e.failures
		if e.locked(now) {
			until := e.lockedUntil
			st.LockedUntil = &until
		}
		return e, keep
	})

	switch {
	case st.LockedUntil != nil:
		st.Phase = LockoutLocked
	case st.FailedAttempts > 0:
		st.Phase = LockoutWarning
	default:
		st.Phase = LockoutClear
	}
	return st
}

// LockedCount returns the number of currently locked accounts.
func (t *LoginAttemptTracker) LockedCount() int {
	now := t.clock.Now()
	count := 0
	t.entries.scan(func(_ string, e attemptEntry) (attemptEntry, bool) {
		keep := e.expire(now)
		if e.locked(now) {
			count++
		}
		return e, keep
	})
	return count
}

// TotalFailedAttempts returns the sum of pending failure counters.
func (t *LoginAttemptTracker) TotalFailedAttempts() int {
	now := t.clock.Now()
	total := 0
	t.entries.scan(func(_ string, e attemptEntry) (attemptEntry, bool) {
		keep := e.expire(now)
		total += e.failures
		return e, keep
	})
	return total
}

// Sweep drops entries whose lock has expired and returns how many were removed.
// Counters of unlocked accounts in the warning phase are kept.
func (t *LoginAttemptTracker) Sweep() int {
	now := t.clock.Now()
	removed := 0
	t.entries.scan(func(_ string, e attemptEntry) (attemptEntry, bool) {
		keep := e.expire(now)
		if !keep {
			removed++
		}
		return e, keep
	})
	return removed
}
