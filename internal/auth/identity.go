// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tellerline Contributors

package auth

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMinPasswordLength is the shortest password accepted for login.
const DefaultMinPasswordLength = 6

// emailRegex matches a conventional address: dotted local part, one or more
// domain labels and a 2-7 letter top-level domain.
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9_+&*-]+(?:\.[a-zA-Z0-9_+&*-]+)*@(?:[a-zA-Z0-9-]+\.)+[a-zA-Z]{2,7}$`)

// Identity is a normalized login key: a trimmed, lower-cased email address.
type Identity string

// NormalizeIdentity returns the Identity for a raw email address.
func NormalizeIdentity(email string) Identity {
	return Identity(strings.ToLower(strings.TrimSpace(email)))
}

func (i Identity) String() string {
	return string(i)
}

// ValidateCredentials checks the shape of a login request.
// Returns a *ValidationError naming the offending field, or nil.
func ValidateCredentials(email, password string, minPasswordLength int) error {
	if v := validateCredentials(email, password, minPasswordLength); v != nil {
		return v
	}
	return nil
}

func validateCredentials(email, password string, minPasswordLength int) *ValidationError {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return &ValidationError{Field: "email", Message: "Email is required."}
	}
	if !emailRegex.MatchString(trimmed) {
		return &ValidationError{Field: "email", Message: "Invalid email format."}
	}
	if password == "" {
		return &ValidationError{Field: "password", Message: "Password is required."}
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return &ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("Password must be at least %d characters.", minPasswordLength),
		}
	}
	return nil
}
