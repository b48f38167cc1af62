// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/wanderdesk/wanderdesk/internal/auth"
)

// RetryConfig bounds redelivery of a failed notice.
type RetryConfig struct {
	// Retries is the number of attempts after the first.
	Retries    uint64
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns the policy used by the serve command.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Retries:    3,
		Backoff:    100 * time.Millisecond,
		MaxBackoff: 2 * time.Second,
	}
}

// errPermanent marks an error that redelivery cannot fix.
var errPermanent = errors.New("permanent notice failure")

// Permanent wraps err so Retrying gives up immediately.
func Permanent(err error) error {
	return errors.Join(errPermanent, err)
}

// Retrying redelivers notices through next with exponential backoff.
type Retrying struct {
	next   auth.Notifier
	cfg    RetryConfig
	logger *slog.Logger
}

// NewRetrying wraps next. A nil logger uses slog.Default.
func NewRetrying(next auth.Notifier, cfg RetryConfig, logger *slog.Logger) *Retrying {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultRetryConfig().Backoff
	}
	return &Retrying{next: next, cfg: cfg, logger: logger}
}

// SendResetNotice delivers a reset notice, retrying transient failures.
func (r *Retrying) SendResetNotice(ctx context.Context, destination, token string) error {
	return r.do(ctx, "reset", destination, func(ctx context.Context) error {
		return r.next.SendResetNotice(ctx, destination, token)
	})
}

// SendWelcomeNotice delivers a welcome notice, retrying transient failures.
func (r *Retrying) SendWelcomeNotice(ctx context.Context, destination, name string) error {
	return r.do(ctx, "welcome", destination, func(ctx context.Context) error {
		return r.next.SendWelcomeNotice(ctx, destination, name)
	})
}

func (r *Retrying) do(ctx context.Context, kind, destination string, send func(context.Context) error) error {
	backoff := retry.NewExponential(r.cfg.Backoff)
	if r.cfg.MaxBackoff > 0 {
		backoff = retry.WithCappedDuration(r.cfg.MaxBackoff, backoff)
	}
	backoff = retry.WithMaxRetries(r.cfg.Retries, backoff)

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := send(ctx)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, errPermanent):
			return err
		default:
			r.logger.WarnContext(ctx, "notice delivery failed",
				"kind", kind,
				"destination", destination,
				"attempt", attempt,
				"error", err,
			)
			return retry.RetryableError(err)
		}
	})
	if err != nil {
		return oops.Code("NOTICE_DELIVERY_FAILED").
			With("kind", kind).
			With("destination", destination).
			With("attempts", attempt).
			Wrap(err)
	}
	return nil
}

var _ auth.Notifier = (*Retrying)(nil)
