// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
)

// RetentionConfig defines how long stored events are kept.
type RetentionConfig struct {
	RetainFor     time.Duration
	PurgeInterval time.Duration
}

// DefaultRetentionConfig keeps events for 90 days and purges daily.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		RetainFor:     90 * 24 * time.Hour,
		PurgeInterval: 24 * time.Hour,
	}
}

// Purger deletes stored events older than a cutoff.
type Purger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionWorker runs periodic purges.
type RetentionWorker struct {
	cfg    RetentionConfig
	purger Purger
	logger *slog.Logger
	clock  func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRetentionWorker creates a worker. A nil logger uses slog.Default.
func NewRetentionWorker(cfg RetentionConfig, purger Purger, logger *slog.Logger) *RetentionWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetentionWorker{
		cfg:    cfg,
		purger: purger,
		logger: logger.With("component", "audit_retention"),
		clock:  time.Now,
	}
}

// RunOnce purges everything older than RetainFor. A non-positive RetainFor
// keeps events forever.
func (w *RetentionWorker) RunOnce(ctx context.Context) (int64, error) {
	if w.cfg.RetainFor <= 0 {
		return 0, nil
	}
	cutoff := w.clock().Add(-w.cfg.RetainFor)
	purged, err := w.purger.PurgeBefore(ctx, cutoff)
	if err != nil {
		return 0, oops.Code("AUDIT_PURGE_FAILED").With("cutoff", cutoff).Wrap(err)
	}
	if purged > 0 {
		w.logger.InfoContext(ctx, "purged expired audit events", "count", purged, "cutoff", cutoff)
	}
	return purged, nil
}

// Start begins periodic purging until ctx ends or Stop is called.
func (w *RetentionWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop cancels the worker and waits for it to exit.
func (w *RetentionWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func (w *RetentionWorker) run(ctx context.Context) {
	defer w.wg.Done()

	interval := w.cfg.PurgeInterval
	if interval <= 0 {
		interval = DefaultRetentionConfig().PurgeInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.ErrorContext(ctx, "audit retention cycle failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
