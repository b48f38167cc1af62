// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package auth

import (
	"context"
	"time"
)

// Notifier delivers messages to account holders. Calls are fire-and-forget
// from the service's point of view: errors are logged, never surfaced.
type Notifier interface {
	SendResetNotice(ctx context.Context, destination, token string) error
	SendWelcomeNotice(ctx context.Context, destination, name string) error
}

// Security event names recorded through AuditSink.
const (
	EventLoginSucceeded         = "login_succeeded"
	EventLoginFailed            = "login_failed"
	EventLoginRejectedLocked    = "login_rejected_locked"
	EventAccountLocked          = "account_locked"
	EventAccountUnlocked        = "account_unlocked"
	EventLogout                 = "logout"
	EventPasswordChanged        = "password_changed"
	EventPasswordChangeRejected = "password_change_rejected"
	EventPasswordResetRequest   = "password_reset_requested"
	EventPasswordReset          = "password_reset"
	EventPasswordResetRejected  = "password_reset_rejected"
	EventAuthorizationDenied    = "authorization_denied"
	EventAccountBlocked         = "account_blocked"
	EventAccountUnblocked       = "account_unblocked"
	EventAccountRegistered      = "account_registered"
)

// AuditEvent is one security-relevant occurrence. Details never carry
// passwords or tokens.
type AuditEvent struct {
	Name          string            `json:"name" yaml:"name"`
	AccountKey    string            `json:"account_key,omitempty" yaml:"account_key,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty" yaml:"correlation_id,omitempty"`
	Details       map[string]string `json:"details,omitempty" yaml:"details,omitempty"`
	At            time.Time         `json:"at" yaml:"at"`
}

// AuditSink records security events.
type AuditSink interface {
	RecordEvent(ctx context.Context, event AuditEvent) error
}

// Recorder receives counters about authentication outcomes.
type Recorder interface {
	LoginAttempt(result string)
	AccountLocked()
	SessionRevoked(reason string)
	PasswordReset(result string)
	AuthorizationDenied(role string)
}

// Login attempt results reported to Recorder.
const (
	ResultSuccess      = "success"
	ResultFailure      = "failure"
	ResultLocked       = "locked"
	ResultInvalidInput = "invalid_input"
	ResultError        = "error"
)

// Session revocation reasons reported to Recorder.
const (
	RevokeLogout         = "logout"
	RevokePasswordChange = "password_change"
	RevokePasswordReset  = "password_reset"
	RevokeBlocked        = "blocked"
)

type nopNotifier struct{}

func (nopNotifier) SendResetNotice(context.Context, string, string) error   { return nil }
func (nopNotifier) SendWelcomeNotice(context.Context, string, string) error { return nil }

type nopAudit struct{}

func (nopAudit) RecordEvent(context.Context, AuditEvent) error { return nil }

type nopRecorder struct{}

func (nopRecorder) LoginAttempt(string)        {}
func (nopRecorder) AccountLocked()             {}
func (nopRecorder) SessionRevoked(string)      {}
func (nopRecorder) PasswordReset(string)       {}
func (nopRecorder) AuthorizationDenied(string) {}
