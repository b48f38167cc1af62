// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderdesk/wanderdesk/internal/auth"
	"github.com/wanderdesk/wanderdesk/internal/auth/postgres"
	"github.com/wanderdesk/wanderdesk/pkg/errutil"
)

func TestAuditRepository_RecordEvent(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		event     auth.AuditEvent
		payload   []byte
		setupErr  error
		expectErr bool
	}{
		{
			name: "details are stored as json",
			event: auth.AuditEvent{
				Name: auth.EventLoginFailed, AccountKey: "ana@example.com", CorrelationID: "corr-1",
				Details: map[string]string{"reason": "invalid_credentials"}, At: at,
			},
			payload: []byte(`{"reason":"invalid_credentials"}`),
		},
		{
			name:    "nil details become an empty object",
			event:   auth.AuditEvent{Name: auth.EventLoginSucceeded, AccountKey: "ana@example.com", At: at},
			payload: []byte(`{}`),
		},
		{
			name:      "insert failure",
			event:     auth.AuditEvent{Name: auth.EventLoginSucceeded, At: at},
			payload:   []byte(`{}`),
			setupErr:  errors.New("connection reset"),
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			exp := mock.ExpectExec(`INSERT INTO security_events`).
				WithArgs(pgxmock.AnyArg(), tt.event.Name, tt.event.AccountKey, tt.event.CorrelationID, tt.payload, at)
			if tt.setupErr != nil {
				exp.WillReturnError(tt.setupErr)
			} else {
				exp.WillReturnResult(pgxmock.NewResult("INSERT", 1))
			}

			err := postgres.NewAuditRepository(mock).RecordEvent(ctx, tt.event)
			if tt.expectErr {
				errutil.AssertErrorCode(t, err, "AUDIT_WRITE_FAILED")
				errutil.AssertErrorContext(t, err, "event", tt.event.Name)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestAuditRepository_Recent(t *testing.T) {
	ctx := context.Background()
	cols := []string{"name", "account_key", "correlation_id", "details", "occurred_at"}
	t1 := time.Date(2026, 5, 1, 12, 5, 0, 0, time.UTC)
	t0 := t1.Add(-time.Minute)

	t.Run("decodes rows newest first", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`FROM security_events`).
			WithArgs("ana@example.com", 10).
			WillReturnRows(pgxmock.NewRows(cols).
				AddRow(auth.EventAccountLocked, "ana@example.com", "corr-2", []byte(`{"failures":"5"}`), t1).
				AddRow(auth.EventLoginFailed, "ana@example.com", "corr-1", []byte(nil), t0))

		events, err := postgres.NewAuditRepository(mock).Recent(ctx, "ana@example.com", 10)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, auth.EventAccountLocked, events[0].Name)
		assert.Equal(t, map[string]string{"failures": "5"}, events[0].Details)
		assert.Equal(t, t1, events[0].At)
		assert.Nil(t, events[1].Details)
	})

	t.Run("non-positive limit uses the default", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`FROM security_events`).
			WithArgs("", postgres.DefaultEventLimit).
			WillReturnRows(pgxmock.NewRows(cols))

		events, err := postgres.NewAuditRepository(mock).Recent(ctx, "", 0)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("corrupt details", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`FROM security_events`).
			WithArgs("", 5).
			WillReturnRows(pgxmock.NewRows(cols).
				AddRow(auth.EventLoginFailed, "ana@example.com", "corr-1", []byte(`{`), t0))

		_, err := postgres.NewAuditRepository(mock).Recent(ctx, "", 5)
		errutil.AssertErrorCode(t, err, "AUDIT_READ_FAILED")
		errutil.AssertErrorContext(t, err, "operation", "decode details")
	})

	t.Run("query failure", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`FROM security_events`).
			WithArgs("", 5).
			WillReturnError(errors.New("timeout"))

		_, err := postgres.NewAuditRepository(mock).Recent(ctx, "", 5)
		errutil.AssertErrorCode(t, err, "AUDIT_READ_FAILED")
	})
}

func TestAuditRepository_PurgeBefore(t *testing.T) {
	ctx := context.Background()
	cutoff := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	t.Run("returns deleted count", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`DELETE FROM security_events WHERE occurred_at < \$1`).
			WithArgs(cutoff).
			WillReturnResult(pgxmock.NewResult("DELETE", 12))

		n, err := postgres.NewAuditRepository(mock).PurgeBefore(ctx, cutoff)
		require.NoError(t, err)
		assert.Equal(t, int64(12), n)
	})

	t.Run("error", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`DELETE FROM security_events`).
			WithArgs(cutoff).
			WillReturnError(errors.New("lock timeout"))

		_, err := postgres.NewAuditRepository(mock).PurgeBefore(ctx, cutoff)
		errutil.AssertErrorCode(t, err, "AUDIT_PURGE_FAILED")
	})
}
