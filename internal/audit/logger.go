// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package audit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/wanderdesk/wanderdesk/internal/auth"
	"github.com/wanderdesk/wanderdesk/internal/xdg"
)

// Mode controls which events are kept.
type Mode string

// Audit modes.
const (
	ModeSecurity Mode = "security" // security events only
	ModeAll      Mode = "all"      // security events plus routine ones
)

// ParseMode validates s. Empty means ModeSecurity.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeSecurity:
		return ModeSecurity, nil
	case ModeAll:
		return ModeAll, nil
	}
	return "", oops.Code("AUDIT_INVALID_MODE").With("mode", s).Errorf("unknown audit mode %q", s)
}

var routineEvents = map[string]struct{}{
	auth.EventLoginSucceeded:    {},
	auth.EventLogout:            {},
	auth.EventAccountRegistered: {},
}

// IsSecurityEvent reports whether name must be written synchronously.
func IsSecurityEvent(name string) bool {
	_, routine := routineEvents[name]
	return !routine
}

// DefaultBufferSize is the async queue length used when Options.Buffer is zero.
const DefaultBufferSize = 1000

// Options configures NewLogger.
type Options struct {
	Mode Mode
	// WALPath defaults to <xdg state dir>/audit-wal.jsonl.
	WALPath string
	Buffer  int
	// Registerer receives the logger's counters. Nil skips registration.
	Registerer prometheus.Registerer
	Logger     *slog.Logger
}

type loggerMetrics struct {
	dropped    prometheus.Counter
	failures   *prometheus.CounterVec
	walEntries prometheus.Gauge
}

func newLoggerMetrics(reg prometheus.Registerer) loggerMetrics {
	m := loggerMetrics{
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wanderdesk",
			Name:      "audit_dropped_total",
			Help:      "Routine audit events dropped because the async buffer was full",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wanderdesk",
			Name:      "audit_failures_total",
			Help:      "Audit write failures by reason",
		}, []string{"reason"}),
		walEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wanderdesk",
			Name:      "audit_wal_entries",
			Help:      "Events waiting in the audit write-ahead log",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.dropped, m.failures, m.walEntries)
	}
	return m
}

// Logger routes events to a sink by mode and event class. It implements
// auth.AuditSink.
type Logger struct {
	mode    Mode
	sink    auth.AuditSink
	logger  *slog.Logger
	metrics loggerMetrics

	walPath string
	walMu   sync.Mutex
	walFile *os.File

	// mu orders queue sends against Close.
	mu        sync.RWMutex
	closed    bool
	queue     chan auth.AuditEvent
	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewLogger starts a Logger in front of sink.
func NewLogger(sink auth.AuditSink, opts Options) (*Logger, error) {
	if sink == nil {
		return nil, oops.Code("AUDIT_INVALID_SINK").Errorf("audit sink cannot be nil")
	}
	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}

	walPath := opts.WALPath
	if walPath == "" {
		stateDir, err := xdg.StateDir()
		if err != nil {
			return nil, oops.Code("AUDIT_WAL_PATH").Wrap(err)
		}
		if err := xdg.EnsureDir(stateDir); err != nil {
			return nil, oops.Code("AUDIT_WAL_PATH").Wrap(err)
		}
		walPath = filepath.Join(stateDir, "audit-wal.jsonl")
	}

	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	l := &Logger{
		mode:    mode,
		sink:    sink,
		logger:  logger.With("component", "audit"),
		metrics: newLoggerMetrics(opts.Registerer),
		walPath: walPath,
		queue:   make(chan auth.AuditEvent, buffer),
		stop:    make(chan struct{}),
	}

	l.wg.Add(1)
	go l.consume()
	return l, nil
}

// WALPath returns the write-ahead log location.
func (l *Logger) WALPath() string { return l.walPath }

// RecordEvent implements auth.AuditSink. It fails only when a security event
// could be written neither to the sink nor to the write-ahead log.
func (l *Logger) RecordEvent(ctx context.Context, event auth.AuditEvent) error {
	if !IsSecurityEvent(event.Name) {
		if l.mode != ModeAll {
			return nil
		}
		l.mu.RLock()
		if l.closed {
			l.mu.RUnlock()
			return l.write(ctx, event)
		}
		select {
		case l.queue <- event:
		default:
			l.metrics.dropped.Inc()
		}
		l.mu.RUnlock()
		return nil
	}

	sinkErr := l.sink.RecordEvent(ctx, event)
	if sinkErr == nil {
		return nil
	}
	walErr := l.appendWAL(event)
	if walErr == nil {
		l.logger.WarnContext(ctx, "audit event diverted to write-ahead log", "event", event.Name, "error", sinkErr)
		return nil
	}
	l.metrics.failures.WithLabelValues("wal_failed").Inc()
	return oops.Code("AUDIT_LOST").
		With("event", event.Name).
		Wrap(errors.Join(sinkErr, walErr))
}

// write is the async path once the queue is closed.
func (l *Logger) write(ctx context.Context, event auth.AuditEvent) error {
	if err := l.sink.RecordEvent(ctx, event); err != nil {
		l.metrics.failures.WithLabelValues("async_write_failed").Inc()
		return oops.Code("AUDIT_WRITE_FAILED").With("event", event.Name).Wrap(err)
	}
	return nil
}

func (l *Logger) consume() {
	defer l.wg.Done()
	for {
		select {
		case event := <-l.queue:
			l.writeQueued(event)
		case <-l.stop:
			for {
				select {
				case event := <-l.queue:
					l.writeQueued(event)
				default:
					return
				}
			}
		}
	}
}

func (l *Logger) writeQueued(event auth.AuditEvent) {
	if err := l.write(context.Background(), event); err != nil {
		l.logger.Error("async audit write failed", "event", event.Name, "error", err)
	}
}

func (l *Logger) appendWAL(event auth.AuditEvent) error {
	l.walMu.Lock()
	defer l.walMu.Unlock()

	if l.walFile == nil {
		file, err := os.OpenFile(l.walPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY|os.O_SYNC, 0o600)
		if err != nil {
			return oops.With("path", l.walPath).Wrap(err)
		}
		l.walFile = file
	}

	data, err := json.Marshal(event)
	if err != nil {
		return oops.Wrap(err)
	}
	if _, err := l.walFile.Write(append(data, '\n')); err != nil {
		return oops.With("path", l.walPath).Wrap(err)
	}
	l.metrics.walEntries.Inc()
	return nil
}

// ReplayWAL writes every logged event to the sink. Events the sink still
// rejects stay in the log; the rest are removed. It returns the number of
// events replayed.
func (l *Logger) ReplayWAL(ctx context.Context) (int, error) {
	l.walMu.Lock()
	defer l.walMu.Unlock()

	data, err := os.ReadFile(l.walPath)
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(data) == 0) {
		return 0, nil
	}
	if err != nil {
		return 0, oops.Code("AUDIT_WAL_READ").With("path", l.walPath).Wrap(err)
	}

	var (
		replayed int
		kept     bytes.Buffer
	)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var event auth.AuditEvent
		if err := json.Unmarshal(line, &event); err != nil {
			l.logger.ErrorContext(ctx, "discarding unreadable write-ahead log entry", "error", err)
			l.metrics.failures.WithLabelValues("wal_unmarshal_failed").Inc()
			continue
		}
		if err := l.sink.RecordEvent(ctx, event); err != nil {
			l.metrics.failures.WithLabelValues("wal_replay_failed").Inc()
			kept.Write(line)
			kept.WriteByte('\n')
			continue
		}
		replayed++
	}
	if err := scanner.Err(); err != nil {
		return replayed, oops.Code("AUDIT_WAL_READ").With("path", l.walPath).Wrap(err)
	}

	if l.walFile != nil {
		_ = l.walFile.Close()
		l.walFile = nil
	}
	if err := os.WriteFile(l.walPath, kept.Bytes(), 0o600); err != nil {
		return replayed, oops.Code("AUDIT_WAL_WRITE").With("path", l.walPath).Wrap(err)
	}

	l.metrics.walEntries.Set(float64(bytes.Count(kept.Bytes(), []byte{'\n'})))
	if replayed > 0 {
		l.logger.InfoContext(ctx, "replayed audit write-ahead log", "count", replayed)
	}
	return replayed, nil
}

// Close drains queued events and closes the write-ahead log. Events
// recorded after Close are written synchronously.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()
		close(l.stop)
		l.wg.Wait()

		l.walMu.Lock()
		defer l.walMu.Unlock()
		if l.walFile != nil {
			if cerr := l.walFile.Close(); cerr != nil {
				err = oops.Code("AUDIT_WAL_CLOSE").Wrap(cerr)
			}
			l.walFile = nil
		}
	})
	return err
}

var _ auth.AuditSink = (*Logger)(nil)
