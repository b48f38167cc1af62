// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

// Package audit routes auth security events to durable sinks.
//
// Logger sits between auth.Service and a backing auth.AuditSink such as
// the PostgreSQL repository:
//
//   - Security events (failed logins, lockouts, resets, denials, blocks) are
//     written synchronously. If the sink fails they are appended to a JSONL
//     write-ahead log and replayed later with ReplayWAL.
//   - Routine events (successful logins, logouts, registrations) are only
//     kept in ModeAll and are written asynchronously from a bounded buffer.
//     A full buffer drops the event and counts the drop.
//
// RetentionWorker purges stored events older than the retention window.
package audit
