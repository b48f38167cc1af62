// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package auth

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultSessionTimeout is the inactivity window after which a session dies.
const DefaultSessionTimeout = 120 * time.Minute

// SessionConfig configures a SessionRegistry.
type SessionConfig struct {
	// Timeout is the inactivity window. Defaults to DefaultSessionTimeout if
	// zero or negative.
	Timeout time.Duration

	// TimeoutEnabled turns inactivity expiry on.
	TimeoutEnabled bool
}

// DefaultSessionConfig returns the session policy used when none is given.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Timeout:        DefaultSessionTimeout,
		TimeoutEnabled: true,
	}
}

// Session is proof of a completed authentication for one account.
type Session struct {
	ID         ulid.ULID
	AccountKey string

	// Token is the plaintext credential. It is only populated on the value
	// returned by Issue; the registry keeps a digest.
	Token string

	IssuedAt       time.Time
	LastActivityAt time.Time
}

type sessionEntry struct {
	id           ulid.ULID
	tokenHash    string
	issuedAt     time.Time
	lastActivity time.Time
}

// SessionRegistry maps each account to at most one live session. Issuing a
// new session for an account replaces the previous one. It is safe for
// concurrent use.
type SessionRegistry struct {
	cfg      SessionConfig
	clock    Clock
	tokens   TokenGenerator
	sessions *keyedStore[sessionEntry]
}

// NewSessionRegistry creates a registry. Nil clock and token generator fall
// back to SystemClock and RandomTokenGenerator.
func NewSessionRegistry(cfg SessionConfig, clock Clock, tokens TokenGenerator) *SessionRegistry {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSessionTimeout
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if tokens == nil {
		tokens = NewRandomTokenGenerator()
	}
	return &SessionRegistry{
		cfg:      cfg,
		clock:    clock,
		tokens:   tokens,
		sessions: newKeyedStore[sessionEntry](),
	}
}

// Config returns the effective configuration.
func (r *SessionRegistry) Config() SessionConfig {
	return r.cfg
}

func (r *SessionRegistry) expired(e sessionEntry, now time.Time) bool {
	return r.cfg.TimeoutEnabled && now.Sub(e.lastActivity) > r.cfg.Timeout
}

// Issue creates a session for key, replacing any prior one.
func (r *SessionRegistry) Issue(key string) (*Session, error) {
	if key == "" {
		return nil, oops.Code("SESSION_INVALID_ACCOUNT").Errorf("account key cannot be empty")
	}
	token, err := r.tokens.SessionToken()
	if err != nil {
		return nil, oops.Code("SESSION_ISSUE_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	now := r.clock.Now()
	entry := sessionEntry{
		id:           ulid.Make(),
		tokenHash:    HashToken(token),
		issuedAt:     now,
		lastActivity: now,
	}
	r.sessions.update(key, func(sessionEntry, bool) (sessionEntry, bool) {
		return entry, true
	})

	return &Session{
		ID:             entry.id,
		AccountKey:     key,
		Token:          token,
		IssuedAt:       now,
		LastActivityAt: now,
	}, nil
}

// Validate reports whether token is the live session token for key. A
// session idle past the timeout is evicted and fails. Success refreshes the
// activity time.
func (r *SessionRegistry) Validate(key, token string) bool {
	now := r.clock.Now()
	var valid bool
	r.sessions.update(key, func(e sessionEntry, ok bool) (sessionEntry, bool) {
		if !ok {
			return e, false
		}
		if r.expired(e, now) {
			return e, false
		}
		if !tokenMatches(token, e.tokenHash) {
			return e, true
		}
		e.lastActivity = now
		valid = true
		return e, true
	})
	return valid
}

// Refresh bumps the activity time of key's session if one exists.
// An already expired session is evicted instead.
func (r *SessionRegistry) Refresh(key string) {
	now := r.clock.Now()
	r.sessions.update(key, func(e sessionEntry, ok bool) (sessionEntry, bool) {
		if !ok || r.expired(e, now) {
			return e, false
		}
		e.lastActivity = now
		return e, true
	})
}

// Revoke removes key's session and reports whether one existed.
func (r *SessionRegistry) Revoke(key string) bool {
	return r.sessions.delete(key)
}

// IsActive reports whether key has a live session, applying the same
// eviction rule as Validate. It does not refresh activity.
func (r *SessionRegistry) IsActive(key string) bool {
	now := r.clock.Now()
	var active bool
	r.sessions.update(key, func(e sessionEntry, ok bool) (sessionEntry, bool) {
		if !ok || r.expired(e, now) {
			return e, false
		}
		active = true
		return e, true
	})
	return active
}

// Lookup returns the session metadata for key without the token.
func (r *SessionRegistry) Lookup(key string) (*Session, bool) {
	now := r.clock.Now()
	var found *Session
	r.sessions.update(key, func(e sessionEntry, ok bool) (sessionEntry, bool) {
		if !ok || r.expired(e, now) {
			return e, false
		}
		found = &Session{
			ID:             e.id,
			AccountKey:     key,
			IssuedAt:       e.issuedAt,
			LastActivityAt: e.lastActivity,
		}
		return e, true
	})
	return found, found != nil
}

// ActiveCount returns the number of sessions that have not timed out.
func (r *SessionRegistry) ActiveCount() int {
	now := r.clock.Now()
	count := 0
	r.sessions.scan(func(_ string, e sessionEntry) (sessionEntry, bool) {
		if r.expired(e, now) {
			return e, false
		}
		count++
		return e, true
	})
	return count
}

// Sweep evicts timed-out sessions and returns how many were removed.
func (r *SessionRegistry) Sweep() int {
	now := r.clock.Now()
	removed := 0
	r.sessions.scan(func(_ string, e sessionEntry) (sessionEntry, bool) {
		if r.expired(e, now) {
			removed++
			return e, false
		}
		return e, true
	})
	return removed
}
