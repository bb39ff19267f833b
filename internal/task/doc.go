// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tellerline Contributors

// Package task runs units of work on a bounded pool of background workers.
//
// # Submission
//
// Work is submitted with Submit or SubmitWithRetry (or the Execute methods
// for work without a value) and observed through a Future, which resolves
// exactly once to a value or an error. Submission never blocks the caller.
//
// # Errors
//
// Failed work resolves with an oops error coded TASK_FAILED, TASK_PANIC,
// TASK_RETRIES_EXHAUSTED (wrapping *RetryError), TASK_CANCELLED (wrapping
// ErrCancelled) or TASK_REJECTED (wrapping ErrExecutorClosed).
//
// # Lifecycle
//
// Executor.Shutdown drains the pool in two bounded phases. ShutdownHook ties
// Shutdown to process signals so it runs once even when no caller invokes it.
package task
