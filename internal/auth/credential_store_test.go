// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tellerline Contributors

package auth_test

import (
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellerline/tellerline/internal/auth"
	"github.com/tellerline/tellerline/pkg/errutil"
)

func newTestStore(t *testing.T, fixtures ...auth.Fixture) *auth.CredentialStore {
	t.Helper()
	hasher, err := auth.NewSHA256Hasher()
	require.NoError(t, err)
	if len(fixtures) == 0 {
		fixtures = []auth.Fixture{auth.DefaultFixture()}
	}
	store, err := auth.NewCredentialStore(hasher, fixtures...)
	require.NoError(t, err)
	return store
}

func TestNewCredentialStore_Invalid(t *testing.T) {
	hasher, err := auth.NewSHA256Hasher()
	require.NoError(t, err)

	tests := []struct {
		name     string
		hasher   auth.PasswordHasher
		fixtures []auth.Fixture
		message  string
	}{
		{"nil hasher", nil, nil, "password hasher is required"},
		{"empty email", hasher, []auth.Fixture{{Email: "  ", Password: "123456"}}, "fixture email cannot be empty"},
		{"empty password", hasher, []auth.Fixture{{Email: "a@b.example"}}, "fixture password cannot be empty"},
		{
			"duplicate identity", hasher,
			[]auth.Fixture{
				{Email: "a@b.example", Password: "123456"},
				{Email: " A@B.example", Password: "654321"},
			},
			"duplicate fixture identity",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := auth.NewCredentialStore(tt.hasher, tt.fixtures...)
			require.Error(t, err)
			assert.Nil(t, store)
			assert.Contains(t, err.Error(), tt.message)
			errutil.AssertErrorCode(t, err, "AUTH_INVALID_STORE")
		})
	}
}

func TestCredentialStore_Verify(t *testing.T) {
	store := newTestStore(t)
	id := auth.NormalizeIdentity(auth.DefaultFixtureEmail)

	t.Run("correct password", func(t *testing.T) {
		assert.True(t, store.Verify(id, auth.DefaultFixturePassword))
	})

	t.Run("wrong password", func(t *testing.T) {
		assert.False(t, store.Verify(id, "654321"))
	})

	t.Run("identity is looked up normalized", func(t *testing.T) {
		assert.True(t, store.Verify(auth.NormalizeIdentity("  USER@Bank.Example "), auth.DefaultFixturePassword))
	})

	t.Run("unknown identity is indistinguishable from wrong password", func(t *testing.T) {
		unknown := auth.Identity("nobody@bank.example")
		assert.False(t, store.HasSalt(unknown))
		assert.False(t, store.Verify(unknown, auth.DefaultFixturePassword))
		assert.True(t, store.HasSalt(unknown), "lookup of an unknown identity issues a salt")
		_, ok := store.Profile(unknown)
		assert.False(t, ok)
	})
}

func TestCredentialStore_Salt(t *testing.T) {
	store := newTestStore(t)
	id := auth.Identity("someone@bank.example")

	first, err := store.Salt(id)
	require.NoError(t, err)
	second, err := store.Salt(id)
	require.NoError(t, err)
	assert.Equal(t, first, second, "salt is remembered")

	other, err := store.Salt("other@bank.example")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestCredentialStore_ConcurrentSalt(t *testing.T) {
	store := newTestStore(t)
	id := auth.Identity("racer@bank.example")

	const n = 50
	salts := make([]string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			salt, err := store.Salt(id)
			assert.NoError(t, err)
			salts[i] = salt
		}()
	}
	wg.Wait()

	for _, s := range salts {
		assert.Equal(t, salts[0], s)
	}
}

func TestCredentialStore_Profile(t *testing.T) {
	userID := ulid.Make()
	store := newTestStore(t, auth.Fixture{
		Email:    "teller@bank.example",
		Password: "secret-pass",
		Name:     "Teller",
		UserID:   userID,
	}, auth.DefaultFixture())

	profile, ok := store.Profile("teller@bank.example")
	require.True(t, ok)
	assert.Equal(t, userID, profile.UserID)
	assert.Equal(t, "Teller", profile.Name)

	generated, ok := store.Profile(auth.DefaultFixtureEmail)
	require.True(t, ok)
	assert.NotEqual(t, ulid.ULID{}, generated.UserID)
	assert.Equal(t, auth.DefaultFixtureName, generated.Name)
}

func TestCredentialStore_Argon2id(t *testing.T) {
	store, err := auth.NewCredentialStore(auth.NewArgon2idHasher(), auth.DefaultFixture())
	require.NoError(t, err)
	assert.Equal(t, auth.AlgorithmArgon2id, store.Hasher().Algorithm())

	id := auth.NormalizeIdentity(auth.DefaultFixtureEmail)
	assert.True(t, store.Verify(id, auth.DefaultFixturePassword))
	assert.False(t, store.Verify(id, "wrong-password"))
}
