// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

// Package notify delivers account notices for the auth service.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/samber/oops"

	"github.com/wanderdesk/wanderdesk/internal/auth"
)

// Outbox renders notices as plain-text messages on an io.Writer. It stands
// in for a mail gateway in development and single-host deployments. Tokens
// go to the writer only; the logger sees the destination and notice kind.
type Outbox struct {
	mu     sync.Mutex
	w      io.Writer
	logger *slog.Logger
}

// NewOutbox creates an Outbox writing to w. A nil logger uses slog.Default.
func NewOutbox(w io.Writer, logger *slog.Logger) *Outbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Outbox{w: w, logger: logger.With("component", "outbox")}
}

const resetTemplate = `To: %s
Subject: Password reset

Use this code to choose a new password. It can be used once.

    %s

If you did not ask for a reset, ignore this message.
---
`

const welcomeTemplate = `To: %s
Subject: Welcome to wanderdesk

Hello %s, your account is ready.
---
`

// SendResetNotice writes the reset code for destination.
func (o *Outbox) SendResetNotice(ctx context.Context, destination, token string) error {
	return o.send(ctx, "reset", destination, fmt.Sprintf(resetTemplate, destination, token))
}

// SendWelcomeNotice writes a greeting for a newly registered account.
func (o *Outbox) SendWelcomeNotice(ctx context.Context, destination, name string) error {
	return o.send(ctx, "welcome", destination, fmt.Sprintf(welcomeTemplate, destination, name))
}

func (o *Outbox) send(ctx context.Context, kind, destination, message string) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("NOTICE_CANCELLED").With("kind", kind).Wrap(err)
	}

	o.mu.Lock()
	_, err := io.WriteString(o.w, message)
	o.mu.Unlock()
	if err != nil {
		return oops.Code("NOTICE_WRITE_FAILED").
			With("kind", kind).
			With("destination", destination).
			Wrap(err)
	}

	o.logger.InfoContext(ctx, "notice sent", "kind", kind, "destination", destination)
	return nil
}

var _ auth.Notifier = (*Outbox)(nil)
