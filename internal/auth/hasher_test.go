// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderdesk/wanderdesk/internal/auth"
)

// cheapParams keeps argon2 fast enough for unit tests.
var cheapParams = auth.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, SaltLen: 16, KeyLen: 32}

func TestArgon2idHasher_Hash(t *testing.T) {
	hasher := auth.NewArgon2idHasherWithParams(cheapParams)

	t.Run("encodes parameters in the hash", func(t *testing.T) {
		hash, err := hasher.Hash("Tr4vel-Pass")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$"))
	})

	t.Run("salts every hash", func(t *testing.T) {
		first, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		second, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("rejects empty password", func(t *testing.T) {
		_, err := hasher.Hash("")
		assert.ErrorIs(t, err, auth.ErrEmptyPassword)
	})
}

func TestArgon2idHasher_Verify(t *testing.T) {
	hasher := auth.NewArgon2idHasherWithParams(cheapParams)
	hash, err := hasher.Hash("correct horse")
	require.NoError(t, err)

	t.Run("accepts the original password", func(t *testing.T) {
		ok, err := hasher.Verify("correct horse", hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("rejects a different password", func(t *testing.T) {
		ok, err := hasher.Verify("correct h0rse", hash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("verifies hashes made with other parameters", func(t *testing.T) {
		other := auth.NewArgon2idHasherWithParams(auth.Argon2Params{Time: 2, Memory: 4 * 1024, Threads: 2, SaltLen: 8, KeyLen: 16})
		legacy, err := other.Hash("correct horse")
		require.NoError(t, err)

		ok, err := hasher.Verify("correct horse", legacy)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	malformed := []struct {
		name    string
		hash    string
		message string
	}{
		{"not a hash", "not-a-valid-hash", "invalid hash format"},
		{"wrong algorithm", "$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA", "unsupported hash algorithm"},
		{"bad version", "$argon2id$vXX$m=65536,t=1,p=4$c2FsdA$aGFzaA", ""},
		{"old version", "$argon2id$v=16$m=65536,t=1,p=4$c2FsdA$aGFzaA", "unsupported argon2 version"},
		{"bad parameters", "$argon2id$v=19$invalid$c2FsdA$aGFzaA", ""},
		{"bad salt", "$argon2id$v=19$m=65536,t=1,p=4$!!!invalid!!!$aGFzaA", ""},
		{"bad key", "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$!!!invalid!!!", ""},
		{"too many threads", "$argon2id$v=19$m=65536,t=1,p=256$c2FsdA$aGFzaA", "threads value"},
		{"zero threads", "$argon2id$v=19$m=65536,t=1,p=0$c2FsdA$aGFzaA", "threads value"},
	}
	for _, tt := range malformed {
		t.Run("errors on "+tt.name, func(t *testing.T) {
			ok, err := hasher.Verify("password", tt.hash)
			require.Error(t, err)
			assert.False(t, ok)
			if tt.message != "" {
				assert.Contains(t, err.Error(), tt.message)
			}
		})
	}
}

func TestArgon2idHasher_NeedsUpgrade(t *testing.T) {
	hasher := auth.NewArgon2idHasherWithParams(cheapParams)

	t.Run("current parameters are up to date", func(t *testing.T) {
		hash, err := hasher.Hash("password")
		require.NoError(t, err)
		assert.False(t, hasher.NeedsUpgrade(hash))
	})

	t.Run("weaker parameters need upgrade", func(t *testing.T) {
		weaker := auth.NewArgon2idHasherWithParams(auth.Argon2Params{Time: 1, Memory: 4 * 1024, Threads: 1, SaltLen: 16, KeyLen: 32})
		hash, err := weaker.Hash("password")
		require.NoError(t, err)
		assert.True(t, hasher.NeedsUpgrade(hash))
	})

	t.Run("foreign hash needs upgrade", func(t *testing.T) {
		assert.True(t, hasher.NeedsUpgrade("$2a$10$N9qo8uLOickgx2ZMRZoMyeIvNq.Uf3hE9tQALNP1Qn9sNp5x5x5x5"))
	})
}

func TestDefaultArgon2Params(t *testing.T) {
	assert.Equal(t, uint32(64*1024), auth.DefaultArgon2Params.Memory)
	assert.Equal(t, uint8(4), auth.DefaultArgon2Params.Threads)
}
