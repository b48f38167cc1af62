// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// Storage sentinels returned (wrapped) by UserStore implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrEmailExists is returned when an email is already registered.
	ErrEmailExists = errors.New("email already registered")
)

// Error codes for the categories surfaced to callers.
const (
	CodeInvalidInput       = "AUTH_INVALID_INPUT"
	CodeAccountLocked      = "AUTH_ACCOUNT_LOCKED"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeInvalidToken       = "AUTH_INVALID_TOKEN"
	CodePolicyViolation    = "AUTH_POLICY_VIOLATION"
	CodeEmailTaken         = "AUTH_EMAIL_TAKEN"
	CodeAccountNotFound    = "AUTH_ACCOUNT_NOT_FOUND"
	CodeInternal           = "AUTH_INTERNAL"
)

// Category sentinels. Every error returned by Service wraps exactly one of
// these; their messages are the only text a remote caller should see.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrAccountLocked      = errors.New("account is temporarily locked")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrPolicyViolation    = errors.New("password does not meet policy")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInternal           = errors.New("internal error")
)

var categories = []struct {
	code string
	err  error
}{
	{CodeInvalidInput, ErrInvalidInput},
	{CodeAccountLocked, ErrAccountLocked},
	{CodeInvalidCredentials, ErrInvalidCredentials},
	{CodeInvalidToken, ErrInvalidToken},
	{CodePolicyViolation, ErrPolicyViolation},
	{CodeEmailTaken, ErrEmailTaken},
	{CodeAccountNotFound, ErrNotFound},
	{CodeInternal, ErrInternal},
}

// ErrorCategory returns the category code of err, or "" for nil.
// Errors outside the taxonomy are reported as CodeInternal.
func ErrorCategory(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range categories {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// PublicMessage returns the caller-safe message for err's category.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range categories {
		if errors.Is(err, c.err) {
			return c.err.Error()
		}
	}
	return ErrInternal.Error()
}

func categoryError(code string, sentinel error) oops.OopsErrorBuilder {
	return oops.Code(code).With("category", sentinel.Error())
}

func invalidInput(field string, cause error) error {
	b := categoryError(CodeInvalidInput, ErrInvalidInput).With("field", field)
	if cause != nil {
		b = b.With("reason", cause.Error())
	}
	return b.Wrap(ErrInvalidInput)
}

func accountLocked(remainingSeconds int) error {
	return categoryError(CodeAccountLocked, ErrAccountLocked).
		With("retry_after_seconds", remainingSeconds).
		Wrap(ErrAccountLocked)
}

func invalidCredentials() error {
	return categoryError(CodeInvalidCredentials, ErrInvalidCredentials).Wrap(ErrInvalidCredentials)
}

func invalidToken() error {
	return categoryError(CodeInvalidToken, ErrInvalidToken).Wrap(ErrInvalidToken)
}

func policyViolation(reason string) error {
	return categoryError(CodePolicyViolation, ErrPolicyViolation).
		With("reason", reason).
		Wrap(ErrPolicyViolation)
}

// accountNotFound is only returned by administrative operations, whose
// callers are allowed to learn whether an account exists.
func accountNotFound(key string) error {
	return oops.Code(CodeAccountNotFound).With("account", key).Wrap(ErrNotFound)
}

func internalError(operation string, cause error) error {
	return categoryError(CodeInternal, ErrInternal).
		With("operation", operation).
		With("cause", cause.Error()).
		Wrap(ErrInternal)
}
