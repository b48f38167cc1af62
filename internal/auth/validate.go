// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package auth

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Input length limits.
const (
	MaxEmailLength    = 254
	MaxPasswordLength = 128
	MaxNameLength     = 200
)

// DefaultMinPasswordLength is the minimum password length when no policy is set.
const DefaultMinPasswordLength = 8

var phoneRegex = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// InputValidator checks the syntax of caller-supplied fields before any
// state is consulted.
type InputValidator interface {
	ValidateEmail(email string) error
	ValidatePassword(password string) error
	ValidateName(name string) error
	ValidatePhone(phone string) error
}

// OzzoValidator implements InputValidator with ozzo-validation rules.
type OzzoValidator struct{}

// NewOzzoValidator creates an OzzoValidator.
func NewOzzoValidator() *OzzoValidator {
	return &OzzoValidator{}
}

// ValidateEmail requires a syntactically valid address. No DNS lookup is made.
func (OzzoValidator) ValidateEmail(email string) error {
	return validation.Validate(email,
		validation.Required,
		validation.Length(3, MaxEmailLength),
		is.Email,
	)
}

// ValidatePassword requires a non-empty password of bounded length. Strength
// is a policy concern, not a syntax one.
func (OzzoValidator) ValidatePassword(password string) error {
	return validation.Validate(password,
		validation.Required,
		validation.Length(1, MaxPasswordLength),
	)
}

// ValidateName requires a display name.
func (OzzoValidator) ValidateName(name string) error {
	return validation.Validate(name,
		validation.Required,
		validation.Length(1, MaxNameLength),
	)
}

// ValidatePhone accepts an empty phone or 7-15 digits with optional leading +.
func (OzzoValidator) ValidatePhone(phone string) error {
	return validation.Validate(phone,
		validation.Match(phoneRegex),
	)
}

// PasswordPolicy holds the rules a new password must satisfy.
type PasswordPolicy struct {
	MinLength int
}

// DefaultPasswordPolicy returns the policy used when none is given.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{MinLength: DefaultMinPasswordLength}
}

// Check returns a policy violation when candidate is too short or, when
// previous is non-empty, identical to previous.
func (p PasswordPolicy) Check(previous, candidate string) error {
	minLen := p.MinLength
	if minLen <= 0 {
		minLen = DefaultMinPasswordLength
	}
	if len([]rune(candidate)) < minLen {
		return policyViolation("too_short")
	}
	if len(candidate) > MaxPasswordLength {
		return policyViolation("too_long")
	}
	if previous != "" && previous == candidate {
		return policyViolation("unchanged")
	}
	return nil
}
