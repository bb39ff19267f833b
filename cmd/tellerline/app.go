// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tellerline Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tellerline/tellerline/internal/auth"
	"github.com/tellerline/tellerline/internal/config"
	"github.com/tellerline/tellerline/internal/observability"
	"github.com/tellerline/tellerline/internal/task"
)

// app is the wired login stack for one CLI invocation.
type app struct {
	// ctx is cancelled when the shutdown hook fires.
	ctx    context.Context
	cancel context.CancelFunc
	hook   *task.ShutdownHook

	service  *auth.Service
	tracker  *auth.LockoutTracker
	executor *task.Executor
	obs      *observability.Server
	logger   *slog.Logger
}

// newApp builds the login stack from cfg. When a metrics address is
// configured, the observability server is started and every component
// registers its metrics with it.
//
// SIGINT or SIGTERM fires the app's shutdown hook: it cancels the app
// context, shuts the executor down and stops the observability server.
// Close fires the same hook.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, signals ...os.Signal) (*app, error) {
	hasher, err := auth.NewPasswordHasher(cfg.Security.HashAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("failed to create password hasher: %w", err)
	}

	store, err := auth.NewCredentialStore(hasher, cfg.FixtureUser())
	if err != nil {
		return nil, fmt.Errorf("failed to create credential store: %w", err)
	}

	a := &app{logger: logger}

	var (
		registry *prometheus.Registry
		reg      prometheus.Registerer
	)
	if cfg.Metrics.Addr != "" {
		registry = prometheus.NewRegistry()
		reg = registry
	}

	a.tracker = auth.NewLockoutTracker(auth.LockoutConfig{
		MaxAttempts: cfg.Security.MaxLoginAttempts,
		Duration:    cfg.LockoutDuration(),
		Registerer:  reg,
	})

	a.executor = task.NewExecutor(task.Config{
		Workers:     cfg.Executor.Workers,
		GracePeriod: cfg.ShutdownGrace(),
		ForcePeriod: cfg.ForceGrace(),
		Logger:      logger,
		Registerer:  reg,
	})

	// A configured latency of zero means no simulated delay.
	latency := cfg.VerificationLatency()
	if latency == 0 {
		latency = -1
	}

	a.ctx, a.cancel = context.WithCancel(ctx)
	a.hook = task.NewShutdownHook(a.shutdown, signals...)

	a.service, err = auth.NewService(auth.Config{
		Store:               store,
		Tracker:             a.tracker,
		Executor:            a.executor,
		Logger:              logger,
		Registerer:          reg,
		VerificationLatency: latency,
		MinPasswordLength:   cfg.Security.MinPasswordLength,
		SessionTimeout:      cfg.SessionTimeout(),
	})
	if err != nil {
		a.hook.Fire()
		return nil, fmt.Errorf("failed to create auth service: %w", err)
	}

	if registry != nil {
		a.obs = observability.NewServer(observability.Config{
			Addr:     cfg.Metrics.Addr,
			Build:    observability.BuildInfo{Version: version, Service: serviceName},
			Pool:     a.executor,
			Registry: registry,
			Logger:   logger,
		})
		errCh, err := a.obs.Start()
		if err != nil {
			a.hook.Fire()
			return nil, fmt.Errorf("failed to start observability server: %w", err)
		}
		go monitorServerErrors(a.ctx, errCh, logger)
	}

	return a, nil
}

// Context returns the app context. It is done once the shutdown hook fired.
func (a *app) Context() context.Context {
	return a.ctx
}

// Close drops the session and fires the shutdown hook.
func (a *app) Close() {
	if a.service != nil {
		a.service.Close()
	}
	a.hook.Fire()
}

// shutdown runs once, from the hook. Cancelling first unblocks prompts and
// interrupts verifications before the executor waits for its workers.
func (a *app) shutdown() {
	a.cancel()
	a.executor.Shutdown()

	if a.obs != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.obs.Stop(ctx); err != nil {
			a.logger.Warn("error stopping observability server", "error", err)
		}
	}
}

// monitorServerErrors logs errors reported by a background server.
func monitorServerErrors(ctx context.Context, errCh <-chan error, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			logger.Error("observability server error", "error", err)
		}
	case <-ctx.Done():
	}
}
