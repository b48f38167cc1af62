// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

// Package main is the wanderdesk command.
package main

import (
	"fmt"
	"os"
)

// Build information, set by ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd := NewRootCmd()
	cmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
