// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/wanderdesk/wanderdesk/internal/auth"
)

// DefaultEventLimit caps Recent when the caller passes a non-positive limit.
const DefaultEventLimit = 50

// AuditRepository persists security events. It implements auth.AuditSink.
type AuditRepository struct {
	pool poolIface
}

// NewAuditRepository creates an AuditRepository.
func NewAuditRepository(pool poolIface) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// RecordEvent inserts event.
func (r *AuditRepository) RecordEvent(ctx context.Context, event auth.AuditEvent) error {
	details := event.Details
	if details == nil {
		details = map[string]string{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return oops.Code("AUDIT_WRITE_FAILED").With("operation", "marshal details").Wrap(err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO security_events (id, name, account_key, correlation_id, details, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		ulid.Make().String(),
		event.Name,
		event.AccountKey,
		event.CorrelationID,
		payload,
		event.At,
	)
	if err != nil {
		return oops.Code("AUDIT_WRITE_FAILED").
			With("operation", "insert event").
			With("event", event.Name).
			Wrap(err)
	}
	return nil
}

// Recent returns the newest events, optionally filtered to one account.
// An empty accountKey returns events for every account.
func (r *AuditRepository) Recent(ctx context.Context, accountKey string, limit int) ([]auth.AuditEvent, error) {
	if limit <= 0 {
		limit = DefaultEventLimit
	}
	rows, err := r.pool.Query(ctx, `
		SELECT name, account_key, correlation_id, details, occurred_at
		FROM security_events
		WHERE $1 = '' OR account_key = $1
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2
	`, accountKey, limit)
	if err != nil {
		return nil, oops.Code("AUDIT_READ_FAILED").With("operation", "query events").Wrap(err)
	}
	defer rows.Close()

	var events []auth.AuditEvent
	for rows.Next() {
		var (
			ev      auth.AuditEvent
			payload []byte
			at      time.Time
		)
		if err := rows.Scan(&ev.Name, &ev.AccountKey, &ev.CorrelationID, &payload, &at); err != nil {
			return nil, oops.Code("AUDIT_READ_FAILED").With("operation", "scan event").Wrap(err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &ev.Details); err != nil {
				return nil, oops.Code("AUDIT_READ_FAILED").With("operation", "decode details").Wrap(err)
			}
		}
		ev.At = at
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("AUDIT_READ_FAILED").With("operation", "iterate events").Wrap(err)
	}
	return events, nil
}

// PurgeBefore deletes events that occurred before cutoff and returns how
// many were removed.
func (r *AuditRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM security_events WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, oops.Code("AUDIT_PURGE_FAILED").With("cutoff", cutoff).Wrap(err)
	}
	return tag.RowsAffected(), nil
}

var _ auth.AuditSink = (*AuditRepository)(nil)
