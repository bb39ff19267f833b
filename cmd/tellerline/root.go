// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tellerline Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tellerline/tellerline/internal/config"
	"github.com/tellerline/tellerline/internal/logging"
	"github.com/tellerline/tellerline/internal/xdg"
)

const serviceName = "tellerline"

// Global flags available to all subcommands.
var configFile string

// flagKeys maps persistent flags to the config keys they override.
var flagKeys = map[string]string{
	"log-level":      "log.level",
	"log-format":     "log.format",
	"workers":        "executor.workers",
	"metrics-addr":   "metrics.addr",
	"hash-algorithm": "security.hash_algorithm",
}

// NewRootCmd creates the root command for the tellerline CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tellerline",
		Short: "Tellerline - banking app login client",
		Long: `Tellerline signs users in to the banking app. Credentials are checked
asynchronously, repeated failures lock the account for a while, and a
successful login opens a session.`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file path (default: $XDG_CONFIG_HOME/tellerline/config.yaml)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (json or text)")
	pf.Int("workers", 0, "executor worker count (default: 2 x CPUs)")
	pf.String("metrics-addr", "", "metrics/health HTTP address (empty = disabled)")
	pf.String("hash-algorithm", "sha256", "password hash algorithm (sha256 or argon2id)")

	cmd.AddCommand(NewLoginCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}

// configPath returns the --config value, or the XDG default when it exists.
func configPath() string {
	if configFile != "" {
		return configFile
	}
	return xdg.DefaultConfigFile()
}

// loadConfig resolves the layered configuration for cmd and sets up the
// default logger from it. Recovered config problems are logged once the
// configured logger is in place.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger) {
	cfg, warnings := config.Load(config.LoadOptions{
		Path:     configPath(),
		Flags:    cmd.Flags(),
		FlagKeys: flagKeys,
		Logger:   slog.New(slog.DiscardHandler),
	})

	level, _ := logging.ParseLevel(cfg.Log.Level)
	logger := logging.SetDefault(serviceName, version, logging.Options{
		Format: cfg.Log.Format,
		Level:  level,
		Writer: cmd.ErrOrStderr(),
	})

	for _, w := range warnings {
		logger.Warn("invalid configuration, using default",
			"key", w.Key,
			"value", w.Value,
			"source", w.Source,
			"reason", w.Reason,
		)
	}
	return cfg, logger
}
