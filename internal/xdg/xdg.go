// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

// Package xdg resolves XDG Base Directory paths for wanderdesk.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const (
	appName        = "wanderdesk"
	configFileName = "config.yaml"
)

func base(envVar string, fallback ...string) (string, error) {
	if dir := os.Getenv(envVar); dir != "" {
		return filepath.Join(dir, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", oops.Code("XDG_NO_HOME").With("env", envVar).Wrap(err)
	}
	parts := append([]string{home}, fallback...)
	return filepath.Join(append(parts, appName)...), nil
}

// ConfigDir returns $XDG_CONFIG_HOME/wanderdesk, or ~/.config/wanderdesk.
func ConfigDir() (string, error) {
	return base("XDG_CONFIG_HOME", ".config")
}

// ConfigFile returns the default config file path inside ConfigDir.
func ConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// StateDir returns $XDG_STATE_HOME/wanderdesk, or ~/.local/state/wanderdesk.
func StateDir() (string, error) {
	return base("XDG_STATE_HOME", ".local", "state")
}

// EnsureDir creates path and its parents with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.Code("XDG_MKDIR_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
