// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tellerline Contributors

package auth

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Default lockout policy values.
const (
	// DefaultMaxAttempts is the number of consecutive failures that locks an
	// identity.
	DefaultMaxAttempts = 3

	// DefaultLockoutDuration is how long a locked identity is refused.
	DefaultLockoutDuration = 5 * time.Minute
)

// LockoutConfig configures a LockoutTracker.
type LockoutConfig struct {
	// MaxAttempts defaults to DefaultMaxAttempts if zero or negative.
	MaxAttempts int

	// Duration defaults to DefaultLockoutDuration if zero or negative.
	Duration time.Duration

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time

	// Registerer receives the tracked-identities gauge when non-nil.
	Registerer prometheus.Registerer
}

// AttemptState is a snapshot of the failed attempts recorded for an identity.
// LastFailure is zero when no failure has been recorded.
type AttemptState struct {
	Identity     Identity
	FailureCount int
	LastFailure  time.Time
}

// LockoutTracker counts failed login attempts per identity and refuses an
// identity for a fixed window once the threshold is reached. Lock state is
// evaluated on read; nothing expires in the background.
// It is safe for concurrent use.
type LockoutTracker struct {
	mu          sync.Mutex
	attempts    map[Identity]*AttemptState
	maxAttempts int
	duration    time.Duration
	now         func() time.Time

	// nil if no registry provided
	trackedGauge prometheus.Gauge
}

// NewLockoutTracker creates a LockoutTracker with the given configuration.
func NewLockoutTracker(cfg LockoutConfig) *LockoutTracker {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	duration := cfg.Duration
	if duration <= 0 {
		duration = DefaultLockoutDuration
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	t := &LockoutTracker{
		attempts:    make(map[Identity]*AttemptState),
		maxAttempts: maxAttempts,
		duration:    duration,
		now:         now,
	}

	if cfg.Registerer != nil {
		t.trackedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tellerline_lockout_tracked_identities",
			Help: "Current number of identities with recorded failed attempts",
		})
		cfg.Registerer.MustRegister(t.trackedGauge)
	}

	return t
}

// MaxAttempts returns the failure threshold.
func (t *LockoutTracker) MaxAttempts() int {
	return t.maxAttempts
}

// Duration returns the lockout window.
func (t *LockoutTracker) Duration() time.Duration {
	return t.duration
}

// IsLockedOut reports whether the identity has reached the failure threshold
// and its last failure is still inside the lockout window.
func (t *LockoutTracker) IsLockedOut(id Identity) bool {
	return t.RemainingLockout(id) > 0
}

// RemainingLockout returns the time left in the identity's lockout window,
// or 0 when the identity is not locked.
func (t *LockoutTracker) RemainingLockout(id Identity) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remainingLocked(id, t.now())
}

// remainingLocked must be called with t.mu held.
func (t *LockoutTracker) remainingLocked(id Identity, now time.Time) time.Duration {
	state, ok := t.attempts[id]
	if !ok || state.FailureCount < t.maxAttempts {
		return 0
	}
	remaining := t.duration - now.Sub(state.LastFailure)
	if remaining <= 0 {
		return 0
	}
	return remaining
}

// RecordFailure increments the identity's failure count and refreshes its
// last-failure time. Returns the state after the update.
func (t *LockoutTracker) RecordFailure(id Identity) AttemptState {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.attempts[id]
	if !ok {
		state = &AttemptState{Identity: id}
		t.attempts[id] = state
		t.updateGauge()
	}
	state.FailureCount++
	state.LastFailure = t.now()
	return *state
}

// RecordSuccess clears any failures recorded for the identity.
func (t *LockoutTracker) RecordSuccess(id Identity) {
	t.Reset(id)
}

// Reset discards the identity's attempt state. Returns true if there was
// anything to discard.
func (t *LockoutTracker) Reset(id Identity) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.attempts[id]; !ok {
		return false
	}
	delete(t.attempts, id)
	t.updateGauge()
	return true
}

// State returns a snapshot of the identity's attempt state. The zero-count
// state is returned for identities with no recorded failures.
func (t *LockoutTracker) State(id Identity) AttemptState {
	t.mu.Lock()
	defer t.mu.Unlock()

	if state, ok := t.attempts[id]; ok {
		return *state
	}
	return AttemptState{Identity: id}
}

// Failures returns the identity's current failure count.
func (t *LockoutTracker) Failures(id Identity) int {
	return t.State(id).FailureCount
}

// RemainingAttempts returns how many failures the identity may still record
// before it is locked, never negative.
func (t *LockoutTracker) RemainingAttempts(id Identity) int {
	return max(0, t.maxAttempts-t.Failures(id))
}

// TrackedCount returns the number of identities with recorded failures.
func (t *LockoutTracker) TrackedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.attempts)
}

// updateGauge must be called with t.mu held.
func (t *LockoutTracker) updateGauge() {
	if t.trackedGauge != nil {
		t.trackedGauge.Set(float64(len(t.attempts)))
	}
}
