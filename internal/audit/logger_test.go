// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package audit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderdesk/wanderdesk/internal/auth"
	"github.com/wanderdesk/wanderdesk/pkg/errutil"
)

// memorySink records events and can be told to fail.
type memorySink struct {
	mu     sync.Mutex
	events []auth.AuditEvent
	fail   bool
	block  chan struct{}
}

func (m *memorySink) RecordEvent(_ context.Context, event auth.AuditEvent) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("sink unavailable")
	}
	m.events = append(m.events, event)
	return nil
}

func (m *memorySink) setFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

func (m *memorySink) names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Name)
	}
	return out
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func newTestLogger(t *testing.T, sink auth.AuditSink, mode Mode) *Logger {
	t.Helper()
	l, err := NewLogger(sink, Options{
		Mode:       mode,
		WALPath:    filepath.Join(t.TempDir(), "wal.jsonl"),
		Registerer: prometheus.NewRegistry(),
		Logger:     quiet(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func event(name string) auth.AuditEvent {
	return auth.AuditEvent{
		Name:       name,
		AccountKey: "ana@example.com",
		Details:    map[string]string{"reason": "wrong_password"},
		At:         time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC),
	}
}

func TestIsSecurityEvent(t *testing.T) {
	for _, name := range []string{
		auth.EventLoginFailed, auth.EventAccountLocked, auth.EventPasswordReset,
		auth.EventAuthorizationDenied, auth.EventAccountBlocked,
	} {
		assert.True(t, IsSecurityEvent(name), name)
	}
	for _, name := range []string{auth.EventLoginSucceeded, auth.EventLogout, auth.EventAccountRegistered} {
		assert.False(t, IsSecurityEvent(name), name)
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeSecurity, m)

	m, err = ParseMode("all")
	require.NoError(t, err)
	assert.Equal(t, ModeAll, m)

	_, err = ParseMode("verbose")
	errutil.AssertErrorCode(t, err, "AUDIT_INVALID_MODE")
}

func TestNewLogger_RequiresSink(t *testing.T) {
	_, err := NewLogger(nil, Options{})
	errutil.AssertErrorCode(t, err, "AUDIT_INVALID_SINK")
}

func TestNewLogger_DefaultWALPath(t *testing.T) {
	state := t.TempDir()
	t.Setenv("XDG_STATE_HOME", state)

	l, err := NewLogger(&memorySink{}, Options{Logger: quiet()})
	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, filepath.Join(state, "wanderdesk", "audit-wal.jsonl"), l.WALPath())
}

func TestLogger_SecurityModeSkipsRoutineEvents(t *testing.T) {
	sink := &memorySink{}
	l := newTestLogger(t, sink, ModeSecurity)
	ctx := context.Background()

	require.NoError(t, l.RecordEvent(ctx, event(auth.EventLoginSucceeded)))
	require.NoError(t, l.RecordEvent(ctx, event(auth.EventLoginFailed)))
	require.NoError(t, l.Close())

	assert.Equal(t, []string{auth.EventLoginFailed}, sink.names())
}

func TestLogger_AllModeWritesRoutineEventsAsync(t *testing.T) {
	sink := &memorySink{}
	l := newTestLogger(t, sink, ModeAll)
	ctx := context.Background()

	for range 10 {
		require.NoError(t, l.RecordEvent(ctx, event(auth.EventLogout)))
	}
	require.NoError(t, l.Close())

	assert.Len(t, sink.names(), 10, "Close drains the queue")
}

func TestLogger_FullBufferDropsRoutineEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := &memorySink{block: make(chan struct{})}
	l, err := NewLogger(sink, Options{
		Mode:       ModeAll,
		WALPath:    filepath.Join(t.TempDir(), "wal.jsonl"),
		Buffer:     1,
		Registerer: reg,
		Logger:     quiet(),
	})
	require.NoError(t, err)

	ctx := context.Background()
	// The consumer holds at most one event in the blocked sink and one in
	// the buffer; the rest are dropped.
	for range 5 {
		require.NoError(t, l.RecordEvent(ctx, event(auth.EventLogout)))
	}
	close(sink.block)
	require.NoError(t, l.Close())

	delivered := len(sink.names())
	assert.GreaterOrEqual(t, delivered, 1)
	assert.InDelta(t, 5-delivered, testutil.ToFloat64(l.metrics.dropped), 0)
}

func TestLogger_RecordAfterCloseIsSynchronous(t *testing.T) {
	sink := &memorySink{}
	l := newTestLogger(t, sink, ModeAll)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close(), "Close is idempotent")

	require.NoError(t, l.RecordEvent(context.Background(), event(auth.EventLogout)))
	assert.Equal(t, []string{auth.EventLogout}, sink.names())
}

func TestLogger_SinkFailureDivertsToWAL(t *testing.T) {
	sink := &memorySink{fail: true}
	l := newTestLogger(t, sink, ModeSecurity)
	ctx := context.Background()

	require.NoError(t, l.RecordEvent(ctx, event(auth.EventAccountLocked)))
	require.NoError(t, l.RecordEvent(ctx, event(auth.EventLoginFailed)))
	assert.Empty(t, sink.names())
	assert.InDelta(t, 2, testutil.ToFloat64(l.metrics.walEntries), 0)

	data, err := os.ReadFile(l.WALPath())
	require.NoError(t, err)
	assert.Equal(t, 2, bytes.Count(data, []byte("\n")))
	assert.Contains(t, string(data), `"name":"account_locked"`)
	assert.Contains(t, string(data), `"account_key":"ana@example.com"`)

	t.Run("replay keeps what the sink still rejects", func(t *testing.T) {
		n, err := l.ReplayWAL(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		data, err := os.ReadFile(l.WALPath())
		require.NoError(t, err)
		assert.Equal(t, 2, bytes.Count(data, []byte("\n")))
	})

	t.Run("replay drains once the sink recovers", func(t *testing.T) {
		sink.setFail(false)
		n, err := l.ReplayWAL(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, []string{auth.EventAccountLocked, auth.EventLoginFailed}, sink.names())

		data, err := os.ReadFile(l.WALPath())
		require.NoError(t, err)
		assert.Empty(t, data)
		assert.Zero(t, testutil.ToFloat64(l.metrics.walEntries))
	})

	t.Run("new failures append after a replay", func(t *testing.T) {
		sink.setFail(true)
		require.NoError(t, l.RecordEvent(ctx, event(auth.EventAccountBlocked)))
		data, err := os.ReadFile(l.WALPath())
		require.NoError(t, err)
		assert.Contains(t, string(data), "account_blocked")
	})
}

func TestLogger_ReplaySkipsCorruptLines(t *testing.T) {
	sink := &memorySink{}
	l := newTestLogger(t, sink, ModeSecurity)
	require.NoError(t, os.WriteFile(l.WALPath(),
		[]byte("{not json\n\n{\"name\":\"login_failed\",\"at\":\"2026-04-02T10:00:00Z\"}\n"), 0o600))

	n, err := l.ReplayWAL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{auth.EventLoginFailed}, sink.names())
}

func TestLogger_ReplayWithoutWAL(t *testing.T) {
	l := newTestLogger(t, &memorySink{}, ModeSecurity)
	n, err := l.ReplayWAL(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLogger_LostWhenWALUnwritable(t *testing.T) {
	sink := &memorySink{fail: true}
	l, err := NewLogger(sink, Options{
		WALPath: filepath.Join(t.TempDir(), "missing-dir", "wal.jsonl"),
		Logger:  quiet(),
	})
	require.NoError(t, err)
	defer l.Close()

	err = l.RecordEvent(context.Background(), event(auth.EventLoginFailed))
	errutil.AssertErrorCode(t, err, "AUDIT_LOST")
	errutil.AssertErrorContext(t, err, "event", auth.EventLoginFailed)
}
