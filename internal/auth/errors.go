// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tellerline Contributors

package auth

import (
	"errors"
	"fmt"

	"github.com/samber/oops"

	"github.com/tellerline/tellerline/internal/task"
)

// Error codes carried by login failures.
const (
	CodeValidation         = "AUTH_VALIDATION_FAILED"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeAccountLocked      = "AUTH_ACCOUNT_LOCKED"
	CodeInfrastructure     = "AUTH_INFRASTRUCTURE"
)

// Failure is implemented by every terminal login failure. UserMessage is
// ready to display as-is.
type Failure interface {
	error
	Code() string
	UserMessage() string
}

// ValidationError reports malformed input. It is never counted as a login
// attempt.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on field %q: %s", e.Field, e.Message)
}

// Code implements Failure.
func (e *ValidationError) Code() string { return CodeValidation }

// UserMessage implements Failure.
func (e *ValidationError) UserMessage() string { return e.Message }

// AuthenticationError reports wrong credentials. Exactly one of
// RemainingAttempts (> 0) or LockoutSeconds (> 0) is set.
type AuthenticationError struct {
	RemainingAttempts int
	LockoutSeconds    int64
}

func (e *AuthenticationError) Error() string {
	return "invalid credentials"
}

// Code implements Failure.
func (e *AuthenticationError) Code() string { return CodeInvalidCredentials }

// UserMessage implements Failure.
func (e *AuthenticationError) UserMessage() string {
	if e.RemainingAttempts <= 0 {
		return fmt.Sprintf("Invalid credentials. Account locked for %d seconds.", e.LockoutSeconds)
	}
	return fmt.Sprintf("Invalid credentials. %d attempt(s) remaining.", e.RemainingAttempts)
}

// LockoutError reports that a login was refused before verification because
// the identity is locked out.
type LockoutError struct {
	RemainingSeconds int64
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("account locked, %d seconds remaining", e.RemainingSeconds)
}

// Code implements Failure.
func (e *LockoutError) Code() string { return CodeAccountLocked }

// UserMessage implements Failure.
func (e *LockoutError) UserMessage() string {
	return fmt.Sprintf("Account locked due to too many failed attempts. Try again in %d seconds.", e.RemainingSeconds)
}

// InfrastructureError reports an interruption or unexpected fault while
// verifying credentials. It counts as neither success nor failure.
type InfrastructureError struct {
	// Interrupted is true when verification was cancelled.
	Interrupted bool
	Cause       error
}

func (e *InfrastructureError) Error() string {
	if e.Interrupted {
		return fmt.Sprintf("login interrupted: %v", e.Cause)
	}
	return fmt.Sprintf("internal error during login: %v", e.Cause)
}

func (e *InfrastructureError) Unwrap() error { return e.Cause }

// Code implements Failure.
func (e *InfrastructureError) Code() string { return CodeInfrastructure }

// UserMessage implements Failure.
func (e *InfrastructureError) UserMessage() string {
	if e.Interrupted {
		return "Connection error. Check your connection and try again."
	}
	return "Internal server error. Try again in a few moments."
}

// AsFailure extracts the login Failure from err, if any.
func AsFailure(err error) (Failure, bool) {
	var f Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// UserMessage returns the display message for a login error.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if f, ok := AsFailure(err); ok {
		return f.UserMessage()
	}
	return (&InfrastructureError{Cause: err}).UserMessage()
}

// fail wraps a Failure in an oops error carrying its code.
func fail(f Failure, identity Identity) error {
	return oops.Code(f.Code()).
		With("identity", identity.String()).
		Wrap(f)
}

// toInfrastructure maps any error that is not already a login Failure to an
// InfrastructureError. Cancellation is marked as an interruption.
func toInfrastructure(identity Identity) func(error) error {
	return func(err error) error {
		if _, ok := AsFailure(err); ok {
			return err
		}
		return fail(&InfrastructureError{
			Interrupted: task.IsCancelled(err),
			Cause:       err,
		}, identity)
	}
}
