// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Token sizes in bytes before hex encoding.
const (
	SessionTokenBytes = 32 // 64 hex chars
	ResetTokenBytes   = 32 // 64 hex chars
)

// TokenGenerator produces opaque credentials and correlation identifiers.
type TokenGenerator interface {
	// SessionToken returns a fresh unguessable session token.
	SessionToken() (string, error)

	// ResetToken returns a fresh unguessable password reset token.
	ResetToken() (string, error)

	// CorrelationID returns an identifier used to tie log lines and audit
	// events of one request together.
	CorrelationID() string
}

// RandomTokenGenerator draws tokens from crypto/rand and correlation ids from ULIDs.
type RandomTokenGenerator struct{}

// NewRandomTokenGenerator creates a RandomTokenGenerator.
func NewRandomTokenGenerator() *RandomTokenGenerator {
	return &RandomTokenGenerator{}
}

// SessionToken returns 32 random bytes hex-encoded.
func (g *RandomTokenGenerator) SessionToken() (string, error) {
	return randomHex(SessionTokenBytes, "SESSION_TOKEN_GENERATE_FAILED")
}

// ResetToken returns 32 random bytes hex-encoded.
func (g *RandomTokenGenerator) ResetToken() (string, error) {
	return randomHex(ResetTokenBytes, "RESET_TOKEN_GENERATE_FAILED")
}

// CorrelationID returns a new ULID string.
func (g *RandomTokenGenerator) CorrelationID() string {
	return ulid.Make().String()
}

func randomHex(n int, code string) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", oops.Code(code).
			With("operation", "crypto/rand.Read").
			With("requested_bytes", n).
			Wrap(err)
	}
	return hex.EncodeToString(buf), nil
}

// HashToken computes the hex-encoded SHA-256 of a token. Registries keep
// only this digest so a memory dump does not expose live credentials.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// tokenMatches reports whether token hashes to the stored digest.
// Empty inputs never match.
func tokenMatches(token, storedHash string) bool {
	if token == "" || storedHash == "" {
		return false
	}
	computed := HashToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}
