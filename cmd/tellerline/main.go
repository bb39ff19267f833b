// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tellerline Contributors

// Package main is the entry point for the tellerline CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tellerline/tellerline/internal/task"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	// Until the login stack installs its own hook, a signal cancels the root context.
	hook := task.NewShutdownHook(cancel)
	defer hook.Fire()

	cmd := NewRootCmd()
	cmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := cmd.ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}
