// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tellerline Contributors

package task

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Lifecycle states of a Future.
const (
	statePending int32 = iota
	stateRunning
	stateDone
)

// Future is the handle for a submitted work item. It resolves exactly once,
// either to a value or to an error.
type Future[T any] struct {
	id       ulid.ULID
	done     chan struct{}
	once     sync.Once
	state    atomic.Int32
	attempts atomic.Int32
	cancel   context.CancelFunc

	value T
	err   error
}

func newFuture[T any](cancel context.CancelFunc) *Future[T] {
	if cancel == nil {
		cancel = func() {}
	}
	return &Future[T]{
		id:     ulid.Make(),
		done:   make(chan struct{}),
		cancel: cancel,
	}
}

// Completed returns a Future already resolved with value.
func Completed[T any](value T) *Future[T] {
	f := newFuture[T](nil)
	f.resolve(value, nil)
	return f
}

// Failed returns a Future already resolved with err.
func Failed[T any](err error) *Future[T] {
	f := newFuture[T](nil)
	var zero T
	f.resolve(zero, err)
	return f
}

// ID returns the identifier assigned to the work item at submission.
func (f *Future[T]) ID() ulid.ULID {
	return f.id
}

// Done returns a channel closed once the Future has resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Resolved reports whether the Future has resolved.
func (f *Future[T]) Resolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Await blocks until the Future resolves or ctx is done. A ctx that ends
// first only stops the wait; use Cancel to stop the work itself.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, oops.Code("TASK_AWAIT_ABORTED").
			With("task_id", f.id.String()).
			Wrap(ctx.Err())
	}
}

// Result returns the resolved value and error. ok is false while the Future
// is still pending.
func (f *Future[T]) Result() (value T, err error, ok bool) {
	if !f.Resolved() {
		var zero T
		return zero, nil, false
	}
	return f.value, f.err, true
}

// Attempts returns the number of times the work function has been invoked.
func (f *Future[T]) Attempts() int {
	return int(f.attempts.Load())
}

// Cancel requests cancellation. A queued item resolves as cancelled at once;
// a running item resolves as cancelled when its work observes the context.
// Cancel on a resolved Future has no effect.
func (f *Future[T]) Cancel() {
	f.cancel()
	if f.state.CompareAndSwap(statePending, stateDone) {
		var zero T
		f.resolve(zero, cancelledError(f.id, 0))
	}
}

// start moves the Future from pending to running. It returns false if the
// Future was cancelled while queued.
func (f *Future[T]) start() bool {
	return f.state.CompareAndSwap(statePending, stateRunning)
}

// resolve records the outcome. Only the first call has any effect.
func (f *Future[T]) resolve(value T, err error) bool {
	resolved := false
	f.once.Do(func() {
		f.value = value
		f.err = err
		f.state.Store(stateDone)
		close(f.done)
		resolved = true
	})
	return resolved
}

// MapErr returns a Future that resolves with f's value, or with fn(err) when
// f fails. Cancelling the returned Future cancels f.
func MapErr[T any](f *Future[T], fn func(error) error) *Future[T] {
	out := newFuture[T](f.Cancel)
	out.id = f.id
	out.state.Store(stateRunning)

	select {
	case <-f.done:
		out.forward(f, fn)
		return out
	default:
	}

	go func() {
		<-f.done
		out.forward(f, fn)
	}()
	return out
}

func (f *Future[T]) forward(src *Future[T], fn func(error) error) {
	f.attempts.Store(src.attempts.Load())
	if src.err != nil {
		f.resolve(src.value, fn(src.err))
		return
	}
	f.resolve(src.value, nil)
}
