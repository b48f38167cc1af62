// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wanderdesk/wanderdesk/internal/auth"
	"github.com/wanderdesk/wanderdesk/internal/auth/memory"
	"github.com/wanderdesk/wanderdesk/internal/config"
	"github.com/wanderdesk/wanderdesk/internal/store"
)

// isolateEnv points XDG dirs at a temp dir and clears DATABASE_URL.
func isolateEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("XDG_STATE_HOME", dir)
	t.Setenv(config.DatabaseURLEnv, "")
	configFile = ""
}

// fakeHistory is an in-memory event store.
type fakeHistory struct {
	mu      sync.Mutex
	events  []auth.AuditEvent
	lastKey string
	lastLim int
	err     error
}

func (h *fakeHistory) RecordEvent(_ context.Context, event auth.AuditEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append([]auth.AuditEvent{event}, h.events...)
	return nil
}

func (h *fakeHistory) Recent(_ context.Context, key string, limit int) ([]auth.AuditEvent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastKey, h.lastLim = key, limit
	if h.err != nil {
		return nil, h.err
	}
	var out []auth.AuditEvent
	for _, e := range h.events {
		if key != "" && e.AccountKey != key {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// memoryBackend is a backend with no database behind it.
func memoryBackend() (backend, *fakeHistory) {
	h := &fakeHistory{}
	return backend{users: memory.NewUserStore(), events: h, history: h}, h
}

// useMemoryApp makes commands open an in-memory app for the rest of the
// test.
func useMemoryApp(t *testing.T) *fakeHistory {
	t.Helper()
	be, h := memoryBackend()
	orig := openApp
	openApp = func(_ context.Context, cfg *config.Config, notices io.Writer, logger *slog.Logger) (*app, error) {
		return newApp(cfg, be, notices, logger)
	}
	t.Cleanup(func() { openApp = orig })
	return h
}

// fakeMigrator records the calls the migrate commands make.
type fakeMigrator struct {
	calls  []string
	steps  int
	forced int
	status store.MigrationStatus
	err    error
	closed bool
}

func (f *fakeMigrator) Up() error                              { f.calls = append(f.calls, "up"); return f.err }
func (f *fakeMigrator) Down() error                            { f.calls = append(f.calls, "down"); return f.err }
func (f *fakeMigrator) Steps(n int) error                      { f.calls = append(f.calls, "steps"); f.steps = n; return f.err }
func (f *fakeMigrator) Force(v int) error                      { f.calls = append(f.calls, "force"); f.forced = v; return f.err }
func (f *fakeMigrator) Close() error                           { f.closed = true; return nil }
func (f *fakeMigrator) Status() (store.MigrationStatus, error) { return f.status, f.err }

// useFakeMigrator swaps newMigrator and captures the URL it was given.
func useFakeMigrator(t *testing.T, fake *fakeMigrator) *string {
	t.Helper()
	var url string
	orig := newMigrator
	newMigrator = func(databaseURL string) (migrator, error) {
		url = databaseURL
		return fake, nil
	}
	t.Cleanup(func() { newMigrator = orig })
	return &url
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(bytes.NewBufferString(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func mustExecute(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	out, err := execute(t, stdin, args...)
	require.NoError(t, err)
	return out
}
