// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tellerline Contributors

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tellerline/tellerline/internal/config"
)

// NewConfigCmd creates the config subcommand.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigValidateCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Long: `Print the configuration after applying defaults, the config file,
TELLERLINE_* environment variables and flags.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _ := loadConfig(cmd)
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			cmd.Print(string(data))
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a config file against the schema",
		Long: `Validate a config file against the config schema. Unlike loading,
validation reports problems instead of falling back to defaults.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			if len(args) > 0 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no config file given and none found in the default location")
			}

			data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
			if err != nil {
				return fmt.Errorf("failed to read config: %w", err)
			}
			if err := config.ValidateYAML(data); err != nil {
				cmd.PrintErrln(config.FormatSchemaError(err))
				return fmt.Errorf("%s is invalid", path)
			}

			cmd.Printf("%s is valid\n", path)
			return nil
		},
	}
}
