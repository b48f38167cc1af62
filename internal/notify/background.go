// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/samber/oops"

	"github.com/wanderdesk/wanderdesk/internal/auth"
	"github.com/wanderdesk/wanderdesk/pkg/errutil"
)

// Background hands reset notices to next on their own goroutine so the
// caller returns without waiting for delivery or its retries. Welcome notices
// are delivered inline. Close waits for deliveries in flight.
type Background struct {
	next   auth.Notifier
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewBackground wraps next. A nil logger uses slog.Default.
func NewBackground(next auth.Notifier, logger *slog.Logger) *Background {
	if logger == nil {
		logger = slog.Default()
	}
	return &Background{next: next, logger: logger.With("component", "notify")}
}

// SendResetNotice queues the notice and returns immediately. The delivery
// runs detached from ctx's cancellation. It fails only after Close.
func (b *Background) SendResetNotice(ctx context.Context, destination, token string) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return oops.Code("NOTICE_CLOSED").With("kind", "reset").Errorf("notifier is closed")
	}
	b.wg.Add(1)
	b.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	go func() {
		defer b.wg.Done()
		if err := b.next.SendResetNotice(detached, destination, token); err != nil {
			errutil.LogErrorContext(detached, b.logger, "background notice delivery failed", err)
		}
	}()
	return nil
}

// SendWelcomeNotice delivers through next on the caller's goroutine.
func (b *Background) SendWelcomeNotice(ctx context.Context, destination, name string) error {
	return b.next.SendWelcomeNotice(ctx, destination, name) //nolint:wrapcheck // next wraps its own errors
}

// Close refuses new reset notices and waits for queued ones to finish. It is
// safe to call more than once.
func (b *Background) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.wg.Wait()
	return nil
}

var _ auth.Notifier = (*Background)(nil)
