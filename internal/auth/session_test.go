// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tellerline Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellerline/tellerline/internal/auth"
	"github.com/tellerline/tellerline/pkg/errutil"
)

func TestNewSession(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	profile := auth.Profile{UserID: ulid.Make(), Name: "Test User"}

	t.Run("valid session", func(t *testing.T) {
		s, err := auth.NewSession("user@bank.example", profile, created, 30*time.Minute)
		require.NoError(t, err)
		assert.NotEqual(t, ulid.ULID{}, s.ID)
		assert.Equal(t, auth.Identity("user@bank.example"), s.Identity)
		assert.Equal(t, profile.UserID, s.UserID)
		assert.Equal(t, "Test User", s.Name)
		assert.Equal(t, created, s.CreatedAt)
		assert.Equal(t, created.Add(30*time.Minute), s.ExpiresAt)
	})

	tests := []struct {
		name     string
		identity auth.Identity
		created  time.Time
		timeout  time.Duration
		code     string
	}{
		{"empty identity", "", created, time.Minute, "SESSION_INVALID_IDENTITY"},
		{"zero creation time", "user@bank.example", time.Time{}, time.Minute, "SESSION_INVALID_CREATED"},
		{"zero timeout", "user@bank.example", created, 0, "SESSION_INVALID_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := auth.NewSession(tt.identity, profile, tt.created, tt.timeout)
			require.Error(t, err)
			assert.Nil(t, s)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestSession_IsExpiredAt(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, err := auth.NewSession("user@bank.example", auth.Profile{}, created, time.Minute)
	require.NoError(t, err)

	assert.False(t, s.IsExpiredAt(created))
	assert.False(t, s.IsExpiredAt(created.Add(59*time.Second)))
	assert.True(t, s.IsExpiredAt(created.Add(time.Minute)))
	assert.True(t, s.IsExpired(), "created in the past")
}
