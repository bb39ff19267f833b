// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tellerline Contributors

package auth

import (
	"crypto/subtle"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Default fixture identity seeded into the credential store.
const (
	DefaultFixtureEmail    = "user@bank.example"
	DefaultFixturePassword = "123456"
	DefaultFixtureName     = "Test User"
)

// Fixture describes a user the credential store is seeded with.
type Fixture struct {
	Email    string
	Password string
	Name     string

	// UserID is generated when zero.
	UserID ulid.ULID
}

// DefaultFixture returns the built-in fixture user.
func DefaultFixture() Fixture {
	return Fixture{
		Email:    DefaultFixtureEmail,
		Password: DefaultFixturePassword,
		Name:     DefaultFixtureName,
	}
}

// Profile is the public data attached to a known identity.
type Profile struct {
	UserID ulid.ULID
	Name   string
}

// credentialRecord is immutable after construction.
type credentialRecord struct {
	identity       Identity
	salt           string
	expectedDigest string
	profile        Profile
}

// CredentialStore maps identities to salted digests. Records are created at
// construction and never change. Salts for unknown identities are created on
// first lookup and remembered, so lookups behave the same whether or not the
// identity exists.
type CredentialStore struct {
	hasher  PasswordHasher
	records map[Identity]*credentialRecord

	// decoy is compared against when the identity is unknown.
	decoy string

	mu    sync.Mutex
	salts map[Identity]string
}

// NewCredentialStore creates a store seeded with the given fixtures.
func NewCredentialStore(hasher PasswordHasher, fixtures ...Fixture) (*CredentialStore, error) {
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_STORE").Errorf("password hasher is required")
	}

	decoySalt, err := GenerateSalt()
	if err != nil {
		return nil, err
	}

	s := &CredentialStore{
		hasher:  hasher,
		records: make(map[Identity]*credentialRecord, len(fixtures)),
		decoy:   hasher.Hash(decoySalt, decoySalt),
		salts:   make(map[Identity]string, len(fixtures)),
	}

	for _, f := range fixtures {
		id := NormalizeIdentity(f.Email)
		if id == "" {
			return nil, oops.Code("AUTH_INVALID_STORE").Errorf("fixture email cannot be empty")
		}
		if f.Password == "" {
			return nil, oops.Code("AUTH_INVALID_STORE").
				With("identity", id.String()).
				Errorf("fixture password cannot be empty")
		}
		if _, dup := s.records[id]; dup {
			return nil, oops.Code("AUTH_INVALID_STORE").
				With("identity", id.String()).
				Errorf("duplicate fixture identity")
		}

		salt, err := GenerateSalt()
		if err != nil {
			return nil, err
		}
		userID := f.UserID
		if userID.Compare(ulid.ULID{}) == 0 {
			userID = ulid.Make()
		}

		s.salts[id] = salt
		s.records[id] = &credentialRecord{
			identity:       id,
			salt:           salt,
			expectedDigest: hasher.Hash(f.Password, salt),
			profile:        Profile{UserID: userID, Name: f.Name},
		}
	}

	return s, nil
}

// Hasher returns the store's password hasher.
func (s *CredentialStore) Hasher() PasswordHasher {
	return s.hasher
}

// Salt returns the salt for id, creating and remembering a new one if the
// identity has none.
func (s *CredentialStore) Salt(id Identity) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if salt, ok := s.salts[id]; ok {
		return salt, nil
	}
	salt, err := GenerateSalt()
	if err != nil {
		return "", err
	}
	s.salts[id] = salt
	return salt, nil
}

// HasSalt reports whether a salt has been issued for id.
func (s *CredentialStore) HasSalt(id Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.salts[id]
	return ok
}

// Verify reports whether candidate is the secret for id. Unknown identities
// return false exactly like a wrong secret; the candidate is hashed and
// compared in both cases.
func (s *CredentialStore) Verify(id Identity, candidate string) bool {
	salt, err := s.Salt(id)
	if err != nil {
		return false
	}
	digest := s.hasher.Hash(candidate, salt)

	expected := s.decoy
	record, known := s.records[id]
	if known {
		expected = record.expectedDigest
	}
	match := subtle.ConstantTimeCompare([]byte(digest), []byte(expected)) == 1
	return known && match
}

// Profile returns the profile for a known identity.
func (s *CredentialStore) Profile(id Identity) (Profile, bool) {
	record, ok := s.records[id]
	if !ok {
		return Profile{}, false
	}
	return record.profile, true
}
