// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tellerline Contributors

package auth

import (
	"crypto"
	"crypto/rand"
	_ "crypto/sha256" // registers crypto.SHA256
	"encoding/base64"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// Supported digest algorithms.
const (
	AlgorithmSHA256   = "sha256"
	AlgorithmArgon2id = "argon2id"
)

// SaltLength is the number of random bytes in a generated salt.
const SaltLength = 16

// OWASP-recommended argon2id parameters.
const (
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2KeyLen  = 32        // output length in bytes
)

// PasswordHasher produces a deterministic salted digest of a secret.
type PasswordHasher interface {
	// Hash returns the encoded digest of secret seeded with salt.
	// The same (secret, salt) pair always yields the same digest.
	Hash(secret, salt string) string

	// Algorithm names the digest function.
	Algorithm() string
}

// NewPasswordHasher returns the hasher for algorithm. An unknown or
// unavailable algorithm is an error; callers must not continue without a
// hasher.
func NewPasswordHasher(algorithm string) (PasswordHasher, error) {
	switch algorithm {
	case AlgorithmSHA256, "":
		return NewSHA256Hasher()
	case AlgorithmArgon2id:
		return NewArgon2idHasher(), nil
	default:
		return nil, oops.Code("AUTH_HASH_UNAVAILABLE").
			With("algorithm", algorithm).
			Errorf("unsupported digest algorithm: %s", algorithm)
	}
}

// SHA256Hasher digests salt || secret with SHA-256 and encodes the result as
// standard base64.
type SHA256Hasher struct{}

// NewSHA256Hasher creates a SHA256Hasher, failing if SHA-256 is not linked
// into the binary.
func NewSHA256Hasher() (*SHA256Hasher, error) {
	if !crypto.SHA256.Available() {
		return nil, oops.Code("AUTH_HASH_UNAVAILABLE").
			With("algorithm", AlgorithmSHA256).
			Errorf("SHA-256 is not available")
	}
	return &SHA256Hasher{}, nil
}

// Hash implements PasswordHasher.
func (h *SHA256Hasher) Hash(secret, salt string) string {
	d := crypto.SHA256.New()
	d.Write([]byte(salt))
	d.Write([]byte(secret))
	return base64.StdEncoding.EncodeToString(d.Sum(nil))
}

// Algorithm implements PasswordHasher.
func (h *SHA256Hasher) Algorithm() string {
	return AlgorithmSHA256
}

// Argon2idHasher derives the digest with argon2id keyed by the salt.
type Argon2idHasher struct{}

// NewArgon2idHasher creates a new Argon2idHasher.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{}
}

// Hash implements PasswordHasher.
func (h *Argon2idHasher) Hash(secret, salt string) string {
	key := argon2.IDKey([]byte(secret), []byte(salt), argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	return base64.RawStdEncoding.EncodeToString(key)
}

// Algorithm implements PasswordHasher.
func (h *Argon2idHasher) Algorithm() string {
	return AlgorithmArgon2id
}

// GenerateSalt returns SaltLength bytes from crypto/rand, base64 encoded.
func GenerateSalt() (string, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}
	return base64.StdEncoding.EncodeToString(salt), nil
}
