// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tellerline Contributors

package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tellerline/tellerline/internal/auth"
	"github.com/tellerline/tellerline/internal/config"
)

// AccountReport is the status of one account under the effective policy.
type AccountReport struct {
	Identity              string `json:"identity"`
	FailureCount          int    `json:"failure_count"`
	MaxAttempts           int    `json:"max_attempts"`
	LockedOut             bool   `json:"locked_out"`
	RemainingLockoutSecs  int64  `json:"remaining_lockout_seconds"`
	HasSalt               bool   `json:"has_salt"`
	LockoutDurationMillis int64  `json:"lockout_duration_millis"`
	SessionTimeoutMillis  int64  `json:"session_timeout_millis"`
	HashAlgorithm         string `json:"hash_algorithm"`
	Workers               int    `json:"workers"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status [email]",
		Short: "Show account status and the effective login policy",
		Long: `Show the lockout state of an account and the login policy in effect.
Without an email, the configured fixture account is shown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, cfg, args)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

// runStatus executes the status command.
func runStatus(cmd *cobra.Command, sc *statusConfig, args []string) error {
	cfg, logger := loadConfig(cmd)

	email := cfg.Fixture.Email
	if len(args) > 0 {
		email = args[0]
	}

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	report := buildReport(cfg, a.service.Status(email))

	var output string
	if sc.jsonOutput {
		output, err = formatReportJSON(report)
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
	} else {
		output = formatReportTable(report)
	}

	cmd.Println(output)
	return nil
}

func buildReport(cfg *config.Config, st auth.AccountStatus) AccountReport {
	return AccountReport{
		Identity:              st.Identity.String(),
		FailureCount:          st.FailureCount,
		MaxAttempts:           st.MaxAttempts,
		LockedOut:             st.LockedOut,
		RemainingLockoutSecs:  int64(st.RemainingLockout.Seconds()),
		HasSalt:               st.HasSalt,
		LockoutDurationMillis: cfg.Security.LockoutDurationMillis,
		SessionTimeoutMillis:  cfg.Security.SessionTimeoutMillis,
		HashAlgorithm:         cfg.Security.HashAlgorithm,
		Workers:               cfg.Executor.Workers,
	}
}

// formatReportTable formats the report as a human-readable table.
func formatReportTable(r AccountReport) string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)

	locked := "no"
	if r.LockedOut {
		locked = fmt.Sprintf("yes (%ds remaining)", r.RemainingLockoutSecs)
	}

	_, _ = fmt.Fprintf(w, "ACCOUNT\t%s\n", r.Identity)
	_, _ = fmt.Fprintf(w, "FAILURES\t%d/%d\n", r.FailureCount, r.MaxAttempts)
	_, _ = fmt.Fprintf(w, "LOCKED\t%s\n", locked)
	_, _ = fmt.Fprintf(w, "LOCKOUT\t%s\n", formatMillis(r.LockoutDurationMillis))
	_, _ = fmt.Fprintf(w, "SESSION\t%s\n", formatMillis(r.SessionTimeoutMillis))
	_, _ = fmt.Fprintf(w, "HASH\t%s\n", r.HashAlgorithm)
	_, _ = fmt.Fprintf(w, "WORKERS\t%d\n", r.Workers)

	_ = w.Flush()
	return sb.String()
}

// formatReportJSON formats the report as JSON.
func formatReportJSON(r AccountReport) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal status: %w", err)
	}
	return string(data), nil
}

// formatMillis formats milliseconds into a human-readable duration.
func formatMillis(ms int64) string {
	seconds := ms / 1000
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds < 3600 {
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
