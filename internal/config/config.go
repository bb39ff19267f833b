// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tellerline Contributors

// Package config loads tellerline settings from defaults, a YAML file, the
// environment and command-line flags, in increasing order of precedence.
//
// A missing or invalid value never fails loading: the key keeps its default
// and a Warning is reported.
package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/tellerline/tellerline/internal/auth"
	"github.com/tellerline/tellerline/internal/task"
)

// EnvPrefix prefixes environment overrides. Sections and keys are separated
// by a double underscore: TELLERLINE_SECURITY__MAX_LOGIN_ATTEMPTS.
const EnvPrefix = "TELLERLINE_"

const delim = "."

// Config is the complete tellerline configuration.
type Config struct {
	Security SecurityConfig `json:"security" yaml:"security" jsonschema:"description=Login and lockout policy"`
	Executor ExecutorConfig `json:"executor" yaml:"executor" jsonschema:"description=Background worker pool"`
	Fixture  FixtureConfig  `json:"fixture" yaml:"fixture" jsonschema:"description=Seeded user account"`
	Log      LogConfig      `json:"log" yaml:"log" jsonschema:"description=Logging output"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics" jsonschema:"description=Prometheus endpoint"`
}

// SecurityConfig holds the login policy.
type SecurityConfig struct {
	MaxLoginAttempts          int    `json:"max_login_attempts" yaml:"max_login_attempts" jsonschema:"minimum=1,default=3"`
	LockoutDurationMillis     int64  `json:"lockout_duration_millis" yaml:"lockout_duration_millis" jsonschema:"minimum=1,default=300000"`
	SessionTimeoutMillis      int64  `json:"session_timeout_millis" yaml:"session_timeout_millis" jsonschema:"minimum=1,default=1800000"`
	MinPasswordLength         int    `json:"min_password_length" yaml:"min_password_length" jsonschema:"minimum=1,default=6"`
	HashAlgorithm             string `json:"hash_algorithm" yaml:"hash_algorithm" jsonschema:"enum=sha256,enum=argon2id,default=sha256"`
	VerificationLatencyMillis int64  `json:"verification_latency_millis" yaml:"verification_latency_millis" jsonschema:"minimum=0,default=1500"`
}

// ExecutorConfig sizes the worker pool and its shutdown windows.
type ExecutorConfig struct {
	Workers             int   `json:"workers" yaml:"workers" jsonschema:"minimum=1"`
	ShutdownGraceMillis int64 `json:"shutdown_grace_millis" yaml:"shutdown_grace_millis" jsonschema:"minimum=1,default=10000"`
	ForceGraceMillis    int64 `json:"force_grace_millis" yaml:"force_grace_millis" jsonschema:"minimum=1,default=5000"`
}

// FixtureConfig describes the user the credential store is seeded with.
type FixtureConfig struct {
	Email    string `json:"email" yaml:"email" jsonschema:"minLength=1,default=user@bank.example"`
	Password string `json:"password" yaml:"password" jsonschema:"minLength=1,default=123456"`
	Name     string `json:"name" yaml:"name" jsonschema:"default=Test User"`
}

// LogConfig selects the log level and handler format.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,default=info"`
	Format string `json:"format" yaml:"format" jsonschema:"enum=text,enum=json,default=text"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `json:"addr" yaml:"addr" jsonschema:"description=Listen address for /metrics; empty disables"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Security: SecurityConfig{
			MaxLoginAttempts:          auth.DefaultMaxAttempts,
			LockoutDurationMillis:     auth.DefaultLockoutDuration.Milliseconds(),
			SessionTimeoutMillis:      auth.DefaultSessionTimeout.Milliseconds(),
			MinPasswordLength:         auth.DefaultMinPasswordLength,
			HashAlgorithm:             auth.AlgorithmSHA256,
			VerificationLatencyMillis: auth.DefaultVerificationLatency.Milliseconds(),
		},
		Executor: ExecutorConfig{
			Workers:             task.DefaultWorkers(),
			ShutdownGraceMillis: task.DefaultGracePeriod.Milliseconds(),
			ForceGraceMillis:    task.DefaultForcePeriod.Milliseconds(),
		},
		Fixture: FixtureConfig{
			Email:    auth.DefaultFixtureEmail,
			Password: auth.DefaultFixturePassword,
			Name:     auth.DefaultFixtureName,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LockoutDuration returns the lockout window.
func (c *Config) LockoutDuration() time.Duration {
	return time.Duration(c.Security.LockoutDurationMillis) * time.Millisecond
}

// SessionTimeout returns the session lifetime.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.Security.SessionTimeoutMillis) * time.Millisecond
}

// VerificationLatency returns the simulated verification delay.
func (c *Config) VerificationLatency() time.Duration {
	return time.Duration(c.Security.VerificationLatencyMillis) * time.Millisecond
}

// ShutdownGrace returns the executor's graceful shutdown window.
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.Executor.ShutdownGraceMillis) * time.Millisecond
}

// ForceGrace returns the executor's forced shutdown window.
func (c *Config) ForceGrace() time.Duration {
	return time.Duration(c.Executor.ForceGraceMillis) * time.Millisecond
}

// FixtureUser returns the configured seed user.
func (c *Config) FixtureUser() auth.Fixture {
	return auth.Fixture{
		Email:    c.Fixture.Email,
		Password: c.Fixture.Password,
		Name:     c.Fixture.Name,
	}
}

// Warning describes a configuration problem that was recovered from.
type Warning struct {
	// Key is the offending key, or empty for source-level problems.
	Key    string
	Value  any
	Source string
	Reason string
}

func (w Warning) String() string {
	if w.Key == "" {
		return fmt.Sprintf("%s: %s", w.Source, w.Reason)
	}
	return fmt.Sprintf("%s: %s=%v: %s", w.Source, w.Key, w.Value, w.Reason)
}

// LoadOptions selects the configuration sources.
type LoadOptions struct {
	// Path is a YAML config file. Empty skips the file layer.
	Path string

	// Flags holds command-line overrides. Only flags whose names appear in
	// FlagKeys and that were set explicitly are applied.
	Flags *pflag.FlagSet

	// FlagKeys maps flag names to config keys.
	FlagKeys map[string]string

	// Logger receives one warning per recovered problem. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Load builds a Config from defaults and the sources in opts. Problems are
// logged and returned as warnings; Load itself never fails.
func Load(opts LoadOptions) (*Config, []Warning) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var warnings []Warning
	warn := func(w Warning) {
		warnings = append(warnings, w)
		logger.Warn("invalid configuration, using default",
			"source", w.Source,
			"key", w.Key,
			"value", w.Value,
			"reason", w.Reason,
		)
	}

	cfg := Default()
	k := koanf.New(delim)
	for _, f := range fields {
		_ = k.Set(f.key, f.get(cfg)) //nolint:errcheck // Set only fails for empty keys
	}

	if opts.Path != "" {
		if err := k.Load(file.Provider(opts.Path), yaml.Parser()); err != nil {
			warn(Warning{Source: opts.Path, Reason: err.Error()})
		}
	}

	if err := k.Load(envProvider(), nil); err != nil {
		warn(Warning{Source: "environment", Reason: err.Error()})
	}

	if opts.Flags != nil && len(opts.FlagKeys) > 0 {
		provider := posflag.ProviderWithFlag(opts.Flags, delim, k, func(f *pflag.Flag) (string, any) {
			key, ok := opts.FlagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			warn(Warning{Source: "flags", Reason: err.Error()})
		}
	}

	for _, f := range fields {
		raw := k.Get(f.key)
		if err := f.set(cfg, raw); err != nil {
			warn(Warning{Key: f.key, Value: raw, Source: "config", Reason: err.Error()})
		}
	}

	return cfg, warnings
}

// Keys returns every supported configuration key.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, f.key)
	}
	return keys
}

// envProvider maps TELLERLINE_SECTION__KEY to section.key.
func envProvider() *env.Env {
	return env.Provider(EnvPrefix, delim, func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", delim)
	})
}

// field binds a config key to its Config slot. set leaves the default in
// place and returns an error when raw is unusable.
type field struct {
	key string
	get func(c *Config) any
	set func(c *Config, raw any) error
}

var fields = []field{
	intField("security.max_login_attempts", 1, func(c *Config) *int { return &c.Security.MaxLoginAttempts }),
	millisField("security.lockout_duration_millis", 1, func(c *Config) *int64 { return &c.Security.LockoutDurationMillis }),
	millisField("security.session_timeout_millis", 1, func(c *Config) *int64 { return &c.Security.SessionTimeoutMillis }),
	intField("security.min_password_length", 1, func(c *Config) *int { return &c.Security.MinPasswordLength }),
	enumField("security.hash_algorithm", []string{auth.AlgorithmSHA256, auth.AlgorithmArgon2id}, func(c *Config) *string { return &c.Security.HashAlgorithm }),
	millisField("security.verification_latency_millis", 0, func(c *Config) *int64 { return &c.Security.VerificationLatencyMillis }),
	intField("executor.workers", 1, func(c *Config) *int { return &c.Executor.Workers }),
	millisField("executor.shutdown_grace_millis", 1, func(c *Config) *int64 { return &c.Executor.ShutdownGraceMillis }),
	millisField("executor.force_grace_millis", 1, func(c *Config) *int64 { return &c.Executor.ForceGraceMillis }),
	stringField("fixture.email", true, func(c *Config) *string { return &c.Fixture.Email }),
	stringField("fixture.password", true, func(c *Config) *string { return &c.Fixture.Password }),
	stringField("fixture.name", false, func(c *Config) *string { return &c.Fixture.Name }),
	enumField("log.level", []string{"debug", "info", "warn", "error"}, func(c *Config) *string { return &c.Log.Level }),
	enumField("log.format", []string{"text", "json"}, func(c *Config) *string { return &c.Log.Format }),
	stringField("metrics.addr", false, func(c *Config) *string { return &c.Metrics.Addr }),
}

func intField(key string, minimum int64, slot func(*Config) *int) field {
	return field{
		key: key,
		get: func(c *Config) any { return *slot(c) },
		set: func(c *Config, raw any) error {
			n, err := parseInt(raw, minimum)
			if err != nil {
				return err
			}
			*slot(c) = int(n)
			return nil
		},
	}
}

func millisField(key string, minimum int64, slot func(*Config) *int64) field {
	return field{
		key: key,
		get: func(c *Config) any { return *slot(c) },
		set: func(c *Config, raw any) error {
			n, err := parseInt(raw, minimum)
			if err != nil {
				return err
			}
			*slot(c) = n
			return nil
		},
	}
}

func stringField(key string, required bool, slot func(*Config) *string) field {
	return field{
		key: key,
		get: func(c *Config) any { return *slot(c) },
		set: func(c *Config, raw any) error {
			s, ok := raw.(string)
			if !ok {
				return fmt.Errorf("expected a string, got %T", raw)
			}
			s = strings.TrimSpace(s)
			if required && s == "" {
				return fmt.Errorf("value is required")
			}
			*slot(c) = s
			return nil
		},
	}
}

func enumField(key string, allowed []string, slot func(*Config) *string) field {
	return field{
		key: key,
		get: func(c *Config) any { return *slot(c) },
		set: func(c *Config, raw any) error {
			s, ok := raw.(string)
			if !ok {
				return fmt.Errorf("expected a string, got %T", raw)
			}
			s = strings.ToLower(strings.TrimSpace(s))
			for _, a := range allowed {
				if s == a {
					*slot(c) = s
					return nil
				}
			}
			return fmt.Errorf("must be one of %s", strings.Join(allowed, ", "))
		},
	}
}

// parseInt accepts the integer forms produced by the YAML, env and flag
// providers and enforces a lower bound.
func parseInt(raw any, minimum int64) (int64, error) {
	var n int64
	switch v := raw.(type) {
	case int:
		n = int64(v)
	case int64:
		n = v
	case uint64:
		if v > 1<<63-1 {
			return 0, fmt.Errorf("value out of range")
		}
		n = int64(v)
	case float64:
		if v != float64(int64(v)) {
			return 0, fmt.Errorf("expected an integer, got %v", v)
		}
		n = int64(v)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("expected an integer, got %q", v)
		}
		n = parsed
	default:
		return 0, fmt.Errorf("expected an integer, got %T", raw)
	}
	if n < minimum {
		return 0, fmt.Errorf("must be at least %d", minimum)
	}
	return n, nil
}
