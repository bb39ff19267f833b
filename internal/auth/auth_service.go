// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tellerline Contributors

package auth

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tellerline/tellerline/internal/task"
	"github.com/tellerline/tellerline/pkg/errutil"
)

// DefaultVerificationLatency is the simulated round trip of a remote
// credential check.
const DefaultVerificationLatency = 1500 * time.Millisecond

var tracer = otel.Tracer("tellerline/auth")

// Config holds the dependencies and policy of a Service.
type Config struct {
	Store    *CredentialStore
	Tracker  *LockoutTracker
	Executor *task.Executor

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Registerer receives login metrics when non-nil.
	Registerer prometheus.Registerer

	// Tracer defaults to the global otel tracer.
	Tracer trace.Tracer

	// VerificationLatency defaults to DefaultVerificationLatency if zero.
	// Negative disables the delay.
	VerificationLatency time.Duration

	// MinPasswordLength defaults to DefaultMinPasswordLength if zero or negative.
	MinPasswordLength int

	// SessionTimeout defaults to DefaultSessionTimeout if zero or negative.
	SessionTimeout time.Duration

	// Now overrides the clock used for sessions. Defaults to time.Now.
	Now func() time.Time
}

// AccountStatus is a snapshot of the login state of an identity.
type AccountStatus struct {
	Identity         Identity
	FailureCount     int
	MaxAttempts      int
	LockedOut        bool
	RemainingLockout time.Duration
	HasSalt          bool
}

// Service logs the process user in and out. Verification runs on the
// executor; everything before it is synchronous and never blocks.
type Service struct {
	store    *CredentialStore
	tracker  *LockoutTracker
	executor *task.Executor
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *metrics

	latency           time.Duration
	minPasswordLength int
	sessionTimeout    time.Duration
	now               func() time.Time

	session atomic.Pointer[Session]
}

// NewService creates a Service. Store, Tracker and Executor are required.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("credential store is required")
	}
	if cfg.Tracker == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("lockout tracker is required")
	}
	if cfg.Executor == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("executor is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tr := cfg.Tracer
	if tr == nil {
		tr = tracer
	}
	latency := cfg.VerificationLatency
	switch {
	case latency == 0:
		latency = DefaultVerificationLatency
	case latency < 0:
		latency = 0
	}
	minLen := cfg.MinPasswordLength
	if minLen <= 0 {
		minLen = DefaultMinPasswordLength
	}
	timeout := cfg.SessionTimeout
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		store:             cfg.Store,
		tracker:           cfg.Tracker,
		executor:          cfg.Executor,
		logger:            logger,
		tracer:            tr,
		metrics:           newMetrics(cfg.Registerer),
		latency:           latency,
		minPasswordLength: minLen,
		sessionTimeout:    timeout,
		now:               now,
	}, nil
}

// LoginAsync starts a login and returns its handle. Lockout and input
// checks run before LoginAsync returns and resolve the handle immediately on
// refusal. Otherwise a single verification is submitted to the executor.
//
// The handle resolves to the new Session or to an error carrying one of
// *ValidationError, *AuthenticationError, *LockoutError or
// *InfrastructureError. Cancelling ctx or the handle before verification
// commits resolves it with an interrupted *InfrastructureError.
func (s *Service) LoginAsync(ctx context.Context, email, password string) *task.Future[*Session] {
	id := NormalizeIdentity(email)

	if remaining := s.tracker.RemainingLockout(id); remaining > 0 {
		seconds := ceilSeconds(remaining)
		s.logger.WarnContext(ctx, "login refused, account locked",
			"identity", id.String(),
			"remaining_seconds", seconds,
		)
		s.metrics.recordLogin(OutcomeLocked)
		return task.Failed[*Session](fail(&LockoutError{RemainingSeconds: seconds}, id))
	}

	if invalid := validateCredentials(email, password, s.minPasswordLength); invalid != nil {
		s.logger.DebugContext(ctx, "login rejected by validation",
			"field", invalid.Field,
			"reason", invalid.Message,
		)
		s.metrics.recordLogin(OutcomeValidation)
		return task.Failed[*Session](fail(invalid, id))
	}

	f := task.Submit(ctx, s.executor, func(ctx context.Context) (*Session, error) {
		return s.verify(ctx, id, password)
	})
	return task.MapErr(f, func(err error) error {
		mapped := toInfrastructure(id)(err)
		if _, passthrough := AsFailure(err); !passthrough {
			errutil.LogErrorContext(ctx, s.logger, "login verification did not complete", mapped,
				"identity", id.String(),
				"task_id", f.ID().String(),
			)
			s.metrics.recordLogin(OutcomeInfrastructure)
		}
		return mapped
	})
}

// verify runs on a worker. It returns the context error, untouched, when
// cancelled before the credential check commits.
func (s *Service) verify(ctx context.Context, id Identity, password string) (session *Session, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.verify",
		trace.WithAttributes(attribute.String("auth.identity", id.String())),
	)
	start := time.Now()
	defer func() {
		s.metrics.recordVerification(time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !s.store.Verify(id, password) {
		return nil, s.rejected(ctx, id)
	}

	s.tracker.RecordSuccess(id)
	profile, _ := s.store.Profile(id)
	session, err = NewSession(id, profile, s.now(), s.sessionTimeout)
	if err != nil {
		return nil, err
	}
	s.session.Store(session)

	span.SetAttributes(attribute.String("auth.session_id", session.ID.String()))
	s.logger.InfoContext(ctx, "login succeeded",
		"identity", id.String(),
		"session_id", session.ID.String(),
		"expires_at", session.ExpiresAt,
	)
	s.metrics.recordLogin(OutcomeSuccess)
	return session, nil
}

// rejected records a failed attempt and builds the matching failure.
func (s *Service) rejected(ctx context.Context, id Identity) error {
	state := s.tracker.RecordFailure(id)
	remaining := s.tracker.MaxAttempts() - state.FailureCount
	s.metrics.recordLogin(OutcomeInvalidCredentials)

	if remaining > 0 {
		s.logger.WarnContext(ctx, "login failed",
			"identity", id.String(),
			"failures", state.FailureCount,
			"remaining_attempts", remaining,
		)
		return fail(&AuthenticationError{RemainingAttempts: remaining}, id)
	}

	lockout := ceilSeconds(s.tracker.Duration())
	if state.FailureCount == s.tracker.MaxAttempts() {
		s.metrics.recordLockout()
	}
	s.logger.WarnContext(ctx, "login failed, account locked",
		"identity", id.String(),
		"failures", state.FailureCount,
		"lockout_seconds", lockout,
	)
	return fail(&AuthenticationError{LockoutSeconds: lockout}, id)
}

// Logout clears the current session. Calling it without a session is a no-op.
func (s *Service) Logout() {
	if prev := s.session.Swap(nil); prev != nil {
		s.logger.Info("logged out",
			"identity", prev.Identity.String(),
			"session_id", prev.ID.String(),
		)
	}
}

// CurrentSession returns the current session, if any.
func (s *Service) CurrentSession() (*Session, bool) {
	session := s.session.Load()
	return session, session != nil
}

// IsAuthenticated reports whether a session is present.
func (s *Service) IsAuthenticated() bool {
	return s.session.Load() != nil
}

// Unlock discards the failed attempts recorded for email. Returns true if the
// identity had any.
func (s *Service) Unlock(email string) bool {
	id := NormalizeIdentity(email)
	cleared := s.tracker.Reset(id)
	if cleared {
		s.logger.Info("account unlocked", "identity", id.String())
	}
	return cleared
}

// Status returns the login state of email.
func (s *Service) Status(email string) AccountStatus {
	id := NormalizeIdentity(email)
	remaining := s.tracker.RemainingLockout(id)
	return AccountStatus{
		Identity:         id,
		FailureCount:     s.tracker.Failures(id),
		MaxAttempts:      s.tracker.MaxAttempts(),
		LockedOut:        remaining > 0,
		RemainingLockout: remaining,
		HasSalt:          s.store.HasSalt(id),
	}
}

// Close drops the current session.
func (s *Service) Close() {
	s.Logout()
}

// ceilSeconds rounds d up to whole seconds.
func ceilSeconds(d time.Duration) int64 {
	return int64((d + time.Second - 1) / time.Second)
}
