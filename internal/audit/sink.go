// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package audit

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/wanderdesk/wanderdesk/internal/auth"
)

// SlogSink writes events to a structured logger: security events at Warn,
// routine ones at Info.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a SlogSink. A nil logger uses slog.Default.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) RecordEvent(ctx context.Context, event auth.AuditEvent) error {
	level := slog.LevelInfo
	if IsSecurityEvent(event.Name) {
		level = slog.LevelWarn
	}

	keys := make([]string, 0, len(event.Details))
	for k := range event.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	details := make([]any, 0, len(keys))
	for _, k := range keys {
		details = append(details, slog.String(k, event.Details[k]))
	}

	s.logger.Log(ctx, level, "security event",
		"event", event.Name,
		"account", event.AccountKey,
		"correlation_id", event.CorrelationID,
		"at", event.At,
		slog.Group("details", details...),
	)
	return nil
}

// tee fans one event out to several sinks.
type tee []auth.AuditSink

// Tee returns a sink that records to every non-nil sink in order. All sinks
// are attempted; their errors are joined.
func Tee(sinks ...auth.AuditSink) auth.AuditSink {
	out := make(tee, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (t tee) RecordEvent(ctx context.Context, event auth.AuditEvent) error {
	var errs []error
	for _, s := range t {
		if err := s.RecordEvent(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ auth.AuditSink = (*SlogSink)(nil)
