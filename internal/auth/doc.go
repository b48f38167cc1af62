// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

// Package auth provides authentication and session primitives for Wanderdesk.
//
// # Registries
//
// Three in-memory registries hold per-account state, all keyed by the
// normalized email (see NormalizeEmail):
//   - LoginAttemptTracker - failed-login counter and temporary lockout
//   - SessionRegistry - at most one live session per account, inactivity timeout
//   - PasswordResetTokenStore - at most one reset token per account
//
// Each registry applies time-based expiry lazily when queried. Every
// operation on a key is a single atomic step, so concurrent requests for
// one account observe a linearizable history.
//
// # Service
//
// Service orchestrates the registries with the external collaborators
// (UserStore, Notifier, AuditSink, Recorder) and is the public API. Errors
// it returns carry an oops code and wrap exactly one category sentinel;
// use ErrorCategory and PublicMessage to present them to callers.
//
// Services are created with NewService and configured with Option values.
package auth
