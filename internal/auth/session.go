// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tellerline Contributors

package auth

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultSessionTimeout is the lifetime of a session before it is
// considered expired.
const DefaultSessionTimeout = 30 * time.Minute

// Session is the authenticated user of the process.
type Session struct {
	ID        ulid.ULID
	Identity  Identity
	UserID    ulid.ULID
	Name      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewSession creates a validated Session starting at createdAt and expiring
// timeout later.
func NewSession(identity Identity, profile Profile, createdAt time.Time, timeout time.Duration) (*Session, error) {
	if identity == "" {
		return nil, oops.Code("SESSION_INVALID_IDENTITY").Errorf("identity cannot be empty")
	}
	if createdAt.IsZero() {
		return nil, oops.Code("SESSION_INVALID_CREATED").Errorf("creation time cannot be zero")
	}
	if timeout <= 0 {
		return nil, oops.Code("SESSION_INVALID_TIMEOUT").
			With("timeout", timeout).
			Errorf("session timeout must be positive")
	}

	return &Session{
		ID:        ulid.Make(),
		Identity:  identity,
		UserID:    profile.UserID,
		Name:      profile.Name,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(timeout),
	}, nil
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return s.IsExpiredAt(time.Now())
}

// IsExpiredAt returns true if the session would be expired at the given time.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}
