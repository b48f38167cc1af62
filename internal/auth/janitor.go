// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package auth

import (
	"context"
	"time"
)

// SweepResult counts entries evicted by one sweep.
type SweepResult struct {
	Sessions    int
	Lockouts    int
	ResetTokens int
}

// Total returns the number of evicted entries.
func (r SweepResult) Total() int {
	return r.Sessions + r.Lockouts + r.ResetTokens
}

// Sweep evicts timed-out sessions, expired locks and expired reset tokens.
// Queries already apply expiry lazily; sweeping only bounds memory.
func (s *Service) Sweep() SweepResult {
	return SweepResult{
		Sessions:    s.sessions.Sweep(),
		Lockouts:    s.attempts.Sweep(),
		ResetTokens: s.resets.Sweep(),
	}
}

// RunJanitor sweeps every interval until ctx is cancelled. It returns
// immediately when interval is not positive.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r := s.Sweep(); r.Total() > 0 {
				s.logger.DebugContext(ctx, "expired auth state swept",
					"sessions", r.Sessions,
					"lockouts", r.Lockouts,
					"reset_tokens", r.ResetTokens,
				)
			}
		}
	}
}
