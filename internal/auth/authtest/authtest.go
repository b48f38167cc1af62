// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

// Package authtest provides deterministic collaborators for auth tests.
package authtest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wanderdesk/wanderdesk/internal/auth"
)

// FakeClock is a manually advanced clock.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a clock frozen at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the frozen time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// SequenceTokens returns predictable, unique tokens.
type SequenceTokens struct {
	n atomic.Uint64
}

// SessionToken returns "session-<n>".
func (g *SequenceTokens) SessionToken() (string, error) {
	return fmt.Sprintf("session-%d", g.n.Add(1)), nil
}

// ResetToken returns "reset-<n>".
func (g *SequenceTokens) ResetToken() (string, error) {
	return fmt.Sprintf("reset-%d", g.n.Add(1)), nil
}

// CorrelationID returns "corr-<n>".
func (g *SequenceTokens) CorrelationID() string {
	return fmt.Sprintf("corr-%d", g.n.Add(1))
}

// RecordingAudit keeps every event it receives.
type RecordingAudit struct {
	mu     sync.Mutex
	events []auth.AuditEvent
	Err    error
}

// RecordEvent stores event and returns r.Err.
func (r *RecordingAudit) RecordEvent(_ context.Context, event auth.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.Err
}

// Events returns a copy of the recorded events.
func (r *RecordingAudit) Events() []auth.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.AuditEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Named returns the recorded events called name.
func (r *RecordingAudit) Named(name string) []auth.AuditEvent {
	var out []auth.AuditEvent
	for _, e := range r.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Notice is one message captured by RecordingNotifier.
type Notice struct {
	Kind        string
	Destination string
	Payload     string
}

// RecordingNotifier captures notices instead of sending them.
type RecordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
	Err     error
}

// SendResetNotice records a reset notice carrying token.
func (n *RecordingNotifier) SendResetNotice(_ context.Context, destination, token string) error {
	return n.add(Notice{Kind: "reset", Destination: destination, Payload: token})
}

// SendWelcomeNotice records a welcome notice carrying name.
func (n *RecordingNotifier) SendWelcomeNotice(_ context.Context, destination, name string) error {
	return n.add(Notice{Kind: "welcome", Destination: destination, Payload: name})
}

func (n *RecordingNotifier) add(notice Notice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return n.Err
}

// Notices returns a copy of the captured notices.
func (n *RecordingNotifier) Notices() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notice, len(n.notices))
	copy(out, n.notices)
	return out
}

// LastResetToken returns the token of the most recent reset notice to destination.
func (n *RecordingNotifier) LastResetToken(destination string) (string, bool) {
	notices := n.Notices()
	for i := len(notices) - 1; i >= 0; i-- {
		if notices[i].Kind == "reset" && notices[i].Destination == destination {
			return notices[i].Payload, true
		}
	}
	return "", false
}

// PlainHasher is a PasswordHasher that stores "plain:<password>". It keeps
// unit tests fast; it must never be used outside tests.
type PlainHasher struct{}

// Hash returns "plain:" + password.
func (PlainHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", auth.ErrEmptyPassword
	}
	return "plain:" + password, nil
}

// Verify compares against "plain:" + password.
func (PlainHasher) Verify(password, hash string) (bool, error) {
	return hash == "plain:"+password, nil
}

// NeedsUpgrade always returns false.
func (PlainHasher) NeedsUpgrade(string) bool { return false }
