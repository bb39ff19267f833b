// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tellerline Contributors

// Package errutil holds helpers for logging and asserting oops errors.
package errutil

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
)

// userMessager is implemented by errors that carry a display message.
type userMessager interface {
	UserMessage() string
}

// LogError logs an error with structured context if it's an oops error.
// For oops errors, it extracts and logs the message, code and context.
// For standard errors, it logs the error string.
func LogError(logger *slog.Logger, msg string, err error, attrs ...any) {
	LogErrorContext(context.Background(), logger, msg, err, attrs...)
}

// LogErrorContext is LogError with a context, so trace correlation applies.
// Errors anywhere in the chain that carry a user message have it logged as
// user_message.
func LogErrorContext(ctx context.Context, logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "error", err.Error())
	if oopsErr, ok := oops.AsOops(err); ok {
		if code := oopsErr.Code(); code != nil {
			attrs = append(attrs, "code", code)
		}
		if c := oopsErr.Context(); len(c) > 0 {
			attrs = append(attrs, "context", c)
		}
	}
	var um userMessager
	if errors.As(err, &um) {
		attrs = append(attrs, "user_message", um.UserMessage())
	}
	logger.ErrorContext(ctx, msg, attrs...)
}
