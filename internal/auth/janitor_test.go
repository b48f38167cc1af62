// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/wanderdesk/wanderdesk/internal/auth"
)

func TestService_Sweep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t,
		auth.WithSessionConfig(auth.SessionConfig{Timeout: time.Minute, TimeoutEnabled: true}),
		auth.WithResetConfig(auth.ResetConfig{TTL: time.Minute}),
		auth.WithLockoutConfig(auth.LockoutConfig{MaxAttempts: 1, Duration: time.Minute, Enabled: true}),
	)
	f.seed(t, "a@example.com", "password-a", auth.RoleTourist)
	f.seed(t, "b@example.com", "password-b", auth.RoleTourist)

	f.login(t, "a@example.com", "password-a")
	_, _ = f.svc.Authenticate(ctx, "b@example.com", "wrong-pass")
	f.svc.RequestPasswordReset(ctx, "a@example.com")

	assert.Zero(t, f.svc.Sweep().Total(), "nothing has expired yet")

	f.clock.Advance(2 * time.Minute)
	assert.Equal(t, auth.SweepResult{Sessions: 1, Lockouts: 1, ResetTokens: 1}, f.svc.Sweep())
	assert.Zero(t, f.svc.Sweep().Total())
}

func TestService_RunJanitor(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)

	t.Run("stops on cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			f.svc.RunJanitor(ctx, 5*time.Millisecond)
			close(done)
		}()

		time.Sleep(20 * time.Millisecond)
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			require.FailNow(t, "janitor did not stop")
		}
	})

	t.Run("non-positive interval returns immediately", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		f.svc.RunJanitor(ctx, 0)
	})
}
