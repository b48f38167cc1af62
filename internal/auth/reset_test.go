// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package auth_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderdesk/wanderdesk/internal/auth"
	"github.com/wanderdesk/wanderdesk/internal/auth/authtest"
)

func newResetStore(t *testing.T, cfg auth.ResetConfig) (*auth.PasswordResetTokenStore, *authtest.FakeClock) {
	t.Helper()
	clock := authtest.NewFakeClock(epoch)
	return auth.NewPasswordResetTokenStore(cfg, clock, &authtest.SequenceTokens{}), clock
}

func TestPasswordResetTokenStore_Issue(t *testing.T) {
	const key = "ana@example.com"

	t.Run("issued token validates without being consumed", func(t *testing.T) {
		store, _ := newResetStore(t, auth.DefaultResetConfig())
		token, err := store.Issue(key)
		require.NoError(t, err)

		assert.True(t, store.Validate(key, token))
		assert.True(t, store.Validate(key, token))
		assert.Equal(t, 1, store.PendingCount())
	})

	t.Run("reissue overwrites the previous token", func(t *testing.T) {
		store, _ := newResetStore(t, auth.DefaultResetConfig())
		first, err := store.Issue(key)
		require.NoError(t, err)
		second, err := store.Issue(key)
		require.NoError(t, err)

		assert.False(t, store.Validate(key, first))
		assert.True(t, store.Validate(key, second))
		assert.Equal(t, 1, store.PendingCount())
	})

	t.Run("empty key is rejected", func(t *testing.T) {
		store, _ := newResetStore(t, auth.DefaultResetConfig())
		_, err := store.Issue("")
		require.Error(t, err)
	})

	t.Run("wrong account or empty token fails", func(t *testing.T) {
		store, _ := newResetStore(t, auth.DefaultResetConfig())
		token, err := store.Issue(key)
		require.NoError(t, err)

		assert.False(t, store.Validate("bo@example.com", token))
		assert.False(t, store.Validate(key, ""))
	})
}

func TestPasswordResetTokenStore_Consume(t *testing.T) {
	const key = "ana@example.com"

	t.Run("succeeds once", func(t *testing.T) {
		store, _ := newResetStore(t, auth.DefaultResetConfig())
		token, err := store.Issue(key)
		require.NoError(t, err)

		assert.True(t, store.Consume(key, token))
		assert.False(t, store.Consume(key, token))
		assert.False(t, store.Validate(key, token))
	})

	t.Run("wrong token leaves the real one in place", func(t *testing.T) {
		store, _ := newResetStore(t, auth.DefaultResetConfig())
		token, err := store.Issue(key)
		require.NoError(t, err)

		assert.False(t, store.Consume(key, "guess"))
		assert.True(t, store.Validate(key, token))
	})

	t.Run("concurrent consumers have one winner", func(t *testing.T) {
		store, _ := newResetStore(t, auth.DefaultResetConfig())
		token, err := store.Issue(key)
		require.NoError(t, err)

		var wins atomic.Int32
		var wg sync.WaitGroup
		for range 32 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if store.Consume(key, token) {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})
}

func TestPasswordResetTokenStore_Expiry(t *testing.T) {
	const key = "ana@example.com"

	t.Run("token expires at its ttl", func(t *testing.T) {
		store, clock := newResetStore(t, auth.ResetConfig{TTL: time.Hour})
		token, err := store.Issue(key)
		require.NoError(t, err)

		clock.Advance(time.Hour - time.Second)
		assert.True(t, store.Validate(key, token))

		clock.Advance(time.Second)
		assert.False(t, store.Validate(key, token))
		assert.False(t, store.Consume(key, token))
		assert.Zero(t, store.PendingCount())
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		store, clock := newResetStore(t, auth.ResetConfig{})
		token, err := store.Issue(key)
		require.NoError(t, err)

		clock.Advance(24 * 365 * time.Hour)
		assert.True(t, store.Validate(key, token))
	})

	t.Run("sweep drops expired tokens", func(t *testing.T) {
		store, clock := newResetStore(t, auth.ResetConfig{TTL: time.Hour})
		_, err := store.Issue("a@example.com")
		require.NoError(t, err)
		clock.Advance(30 * time.Minute)
		_, err = store.Issue("b@example.com")
		require.NoError(t, err)
		clock.Advance(45 * time.Minute)

		assert.Equal(t, 1, store.Sweep())
		assert.Equal(t, 1, store.PendingCount())
	})
}

func TestPasswordResetTokenStore_Invalidate(t *testing.T) {
	const key = "ana@example.com"
	store, _ := newResetStore(t, auth.DefaultResetConfig())
	token, err := store.Issue(key)
	require.NoError(t, err)

	store.Invalidate(key)
	assert.False(t, store.Validate(key, token))
	store.Invalidate(key)
}

func TestRandomTokenGenerator(t *testing.T) {
	gen := auth.NewRandomTokenGenerator()

	session, err := gen.SessionToken()
	require.NoError(t, err)
	assert.Len(t, session, 2*auth.SessionTokenBytes)

	reset, err := gen.ResetToken()
	require.NoError(t, err)
	assert.Len(t, reset, 2*auth.ResetTokenBytes)
	assert.NotEqual(t, session, reset)

	assert.NotEqual(t, gen.CorrelationID(), gen.CorrelationID())
}

func TestHashToken(t *testing.T) {
	assert.Len(t, auth.HashToken("abc"), 64)
	assert.Equal(t, auth.HashToken("abc"), auth.HashToken("abc"))
	assert.NotEqual(t, auth.HashToken("abc"), auth.HashToken("abd"))
}
