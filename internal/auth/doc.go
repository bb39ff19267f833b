// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tellerline Contributors

// Package auth provides credential verification and lockout for the
// process user.
//
// # Components
//
//   - PasswordHasher - deterministic salted digest (SHA-256 or argon2id)
//   - CredentialStore - immutable fixture records and lazily issued salts
//   - LockoutTracker - per-identity failure counts with a time-boxed lockout
//   - Service - LoginAsync, Logout and CurrentSession over the above
//
// All of them are created with New* constructors; Service validates that its
// dependencies are present.
//
// # Login Outcomes
//
// LoginAsync returns a *task.Future that resolves exactly once. Failures carry
// one of the Failure types, each with a code and a ready-to-display message:
//
//   - *ValidationError (AUTH_VALIDATION_FAILED) - malformed input, not counted
//   - *LockoutError (AUTH_ACCOUNT_LOCKED) - refused before verification
//   - *AuthenticationError (AUTH_INVALID_CREDENTIALS) - counted failure
//   - *InfrastructureError (AUTH_INFRASTRUCTURE) - interrupted or faulted
//     verification, not counted
//
// Unknown identities fail exactly like a wrong password.
package auth
