// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tellerline Contributors

package task

import (
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

var (
	// ErrCancelled is wrapped by every error that reports a cancelled work item.
	ErrCancelled = errors.New("task cancelled")

	// ErrExecutorClosed is returned for work submitted after Shutdown.
	ErrExecutorClosed = errors.New("executor is shut down")
)

// RetryError reports that a work item failed on every attempt.
type RetryError struct {
	// Attempts is the total number of invocations, including the first.
	Attempts int

	// Cause is the error returned by the last attempt.
	Cause error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("operation failed after %d attempts: %v", e.Attempts, e.Cause)
}

func (e *RetryError) Unwrap() error {
	return e.Cause
}

// IsCancelled reports whether err describes a cancelled work item.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

func cancelledError(id ulid.ULID, attempts int) error {
	return oops.Code("TASK_CANCELLED").
		With("task_id", id.String()).
		With("attempts", attempts).
		Wrap(ErrCancelled)
}

func closedError(id ulid.ULID) error {
	return oops.Code("TASK_REJECTED").
		With("task_id", id.String()).
		Wrap(ErrExecutorClosed)
}

func failedError(id ulid.ULID, err error) error {
	return oops.Code("TASK_FAILED").
		With("task_id", id.String()).
		Wrap(err)
}

func exhaustedError(id ulid.ULID, attempts int, cause error) error {
	return oops.Code("TASK_RETRIES_EXHAUSTED").
		With("task_id", id.String()).
		With("attempts", attempts).
		Wrap(&RetryError{Attempts: attempts, Cause: cause})
}
