// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package auth

import (
	"strings"

	"github.com/samber/oops"
)

// Role is the closed set of principals that can hold an account.
type Role int

// Roles. The zero value is not a valid role.
const (
	RoleAdmin Role = iota + 1
	RoleAgent
	RoleTourist
)

// Roles lists every valid role.
var Roles = []Role{RoleAdmin, RoleAgent, RoleTourist}

// String returns the canonical lower-case role name.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleAgent:
		return "agent"
	case RoleTourist:
		return "tourist"
	}
	return ""
}

// Valid reports whether r is one of Roles.
func (r Role) Valid() bool {
	return r.String() != ""
}

// ParseRole parses a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, nil
	case "agent":
		return RoleAgent, nil
	case "tourist":
		return RoleTourist, nil
	}
	return 0, oops.Code("AUTH_UNKNOWN_ROLE").With("role", s).Errorf("unknown role %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, oops.Code("AUTH_UNKNOWN_ROLE").With("role", int(r)).Errorf("invalid role %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
