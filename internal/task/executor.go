// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tellerline Contributors

package task

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/tellerline/tellerline/pkg/errutil"
)

// Default shutdown windows.
const (
	// DefaultGracePeriod is how long Shutdown waits for queued and running
	// work to finish before cancelling it.
	DefaultGracePeriod = 10 * time.Second

	// DefaultForcePeriod is how long Shutdown waits for cancelled work to
	// return after the grace period has elapsed.
	DefaultForcePeriod = 5 * time.Second
)

// DefaultWorkers returns the default pool size: two workers per CPU.
func DefaultWorkers() int {
	return 2 * runtime.NumCPU()
}

// Config configures an Executor.
type Config struct {
	// Workers is the fixed number of worker goroutines.
	// Defaults to DefaultWorkers() if zero or negative.
	Workers int

	// GracePeriod defaults to DefaultGracePeriod if zero or negative.
	GracePeriod time.Duration

	// ForcePeriod defaults to DefaultForcePeriod if zero or negative.
	ForcePeriod time.Duration

	// Logger defaults to slog.Default() if nil.
	Logger *slog.Logger

	// Registerer receives the executor metrics. Metrics are disabled if nil.
	Registerer prometheus.Registerer
}

// job is a queued work item with its type-specific closures.
type job struct {
	id      ulid.ULID
	start   func() bool
	run     func()
	abort   func(err error)
	release func()
}

// Executor is a fixed-size pool of workers that run submitted work items to
// completion, one at a time per worker. It is safe for concurrent use.
//
// Submitting never blocks: the queue is unbounded. Call Shutdown to stop the
// workers; work submitted afterwards is rejected with ErrExecutorClosed.
type Executor struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*job
	closed bool

	// ctx is the parent of every job context. Cancelling it is the forced
	// phase of Shutdown.
	ctx    context.Context
	cancel context.CancelFunc

	group   errgroup.Group
	stopped chan struct{}
	active  atomic.Int64

	workers      int
	gracePeriod  time.Duration
	forcePeriod  time.Duration
	logger       *slog.Logger
	metrics      *metrics
	shutdownOnce sync.Once
}

// NewExecutor creates an Executor and starts its workers.
func NewExecutor(cfg Config) *Executor {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	grace := cfg.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	force := cfg.ForcePeriod
	if force <= 0 {
		force = DefaultForcePeriod
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Executor{
		ctx:         ctx,
		cancel:      cancel,
		stopped:     make(chan struct{}),
		workers:     workers,
		gracePeriod: grace,
		forcePeriod: force,
		logger:      logger,
		metrics:     newMetrics(cfg.Registerer),
	}
	e.cond = sync.NewCond(&e.mu)

	for range workers {
		e.group.Go(e.worker)
	}
	go func() {
		_ = e.group.Wait() //nolint:errcheck // workers never return an error
		close(e.stopped)
	}()

	e.logger.Info("executor started", "workers", workers)
	return e
}

// Workers returns the pool size.
func (e *Executor) Workers() int {
	return e.workers
}

// Closed reports whether Shutdown has been called.
func (e *Executor) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Busy returns the number of workers currently running a work item.
func (e *Executor) Busy() int {
	return int(e.active.Load())
}

// Queued returns the number of work items waiting for a worker.
func (e *Executor) Queued() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Terminated reports whether every worker has exited.
func (e *Executor) Terminated() bool {
	select {
	case <-e.stopped:
		return true
	default:
		return false
	}
}

// Submit enqueues work and returns its handle. The handle resolves with the
// work's value, or with a TASK_FAILED error wrapping the work's error. A
// panic in work is recovered into a TASK_PANIC error. Cancelling ctx cancels
// the work item.
func Submit[T any](ctx context.Context, e *Executor, work func(ctx context.Context) (T, error)) *Future[T] {
	return enqueue(ctx, e, func(jobCtx context.Context, f *Future[T]) (T, error) {
		f.attempts.Store(1)
		value, err := guard(jobCtx, f.id, work)
		if err != nil {
			return value, failedError(f.id, err)
		}
		return value, nil
	})
}

// SubmitWithRetry enqueues work and retries it up to maxRetries additional
// times, waiting delay between attempts. The handle resolves with the first
// successful value, or with a TASK_RETRIES_EXHAUSTED error wrapping a
// *RetryError once every attempt has failed. Cancellation during an attempt
// or a wait stops the loop and resolves the handle as cancelled.
func SubmitWithRetry[T any](ctx context.Context, e *Executor, work func(ctx context.Context) (T, error), maxRetries int, delay time.Duration) *Future[T] {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if delay <= 0 {
		// retry.NewConstant requires a positive interval.
		delay = time.Nanosecond
	}

	return enqueue(ctx, e, func(jobCtx context.Context, f *Future[T]) (T, error) {
		var (
			value    T
			last     error
			attempts int
		)
		backoff := retry.WithMaxRetries(uint64(maxRetries), retry.NewConstant(delay))

		err := retry.Do(jobCtx, backoff, func(ctx context.Context) error {
			attempts++
			f.attempts.Store(int32(attempts))
			if attempts > 1 {
				e.metrics.recordRetry()
			}

			v, err := guard(ctx, f.id, work)
			if err == nil {
				value = v
				return nil
			}
			last = err
			if ctx.Err() != nil && isContextError(err) {
				return err
			}

			e.logger.Warn("task attempt failed",
				"task_id", f.id.String(),
				"attempt", attempts,
				"max_attempts", maxRetries+1,
				"error", err,
			)
			return retry.RetryableError(err)
		})
		if err == nil {
			return value, nil
		}
		if jobCtx.Err() != nil {
			return value, cancelledError(f.id, attempts)
		}

		errutil.LogErrorContext(jobCtx, e.logger, "task retries exhausted", last,
			"task_id", f.id.String(),
			"attempts", attempts,
		)
		return value, exhaustedError(f.id, attempts, last)
	})
}

// Execute submits a work item that produces no value.
func (e *Executor) Execute(ctx context.Context, fn func(ctx context.Context) error) *Future[struct{}] {
	return Submit(ctx, e, discardValue(fn))
}

// ExecuteWithRetry submits a work item that produces no value, with retries.
func (e *Executor) ExecuteWithRetry(ctx context.Context, fn func(ctx context.Context) error, maxRetries int, delay time.Duration) *Future[struct{}] {
	return SubmitWithRetry(ctx, e, discardValue(fn), maxRetries, delay)
}

// Shutdown stops accepting work and waits up to the grace period for queued
// and running work to finish. Work still running afterwards is cancelled and
// queued work is resolved as cancelled; Shutdown then waits up to the force
// period for workers to exit. Workers that outlive both windows are logged
// and left behind. Calling Shutdown more than once is safe.
func (e *Executor) Shutdown() {
	e.shutdownOnce.Do(e.shutdown)
}

func (e *Executor) shutdown() {
	e.logger.Info("shutting down executor",
		"grace_period", e.gracePeriod,
		"busy_workers", e.active.Load(),
	)

	e.mu.Lock()
	e.closed = true
	e.cond.Broadcast()
	e.mu.Unlock()

	if e.waitStopped(e.gracePeriod) {
		e.cancel()
		e.logger.Info("executor shutdown complete")
		return
	}

	e.logger.Warn("executor did not stop within grace period, cancelling remaining work",
		"grace_period", e.gracePeriod,
		"busy_workers", e.active.Load(),
	)
	e.cancel()
	dropped := e.drain()

	if e.waitStopped(e.forcePeriod) {
		e.logger.Info("executor shutdown complete", "dropped", dropped)
		return
	}

	e.logger.Error("executor workers did not terminate",
		"force_period", e.forcePeriod,
		"busy_workers", e.active.Load(),
		"dropped", dropped,
	)
}

// enqueue wraps body in a job and queues it.
func enqueue[T any](ctx context.Context, e *Executor, body func(ctx context.Context, f *Future[T]) (T, error)) *Future[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	jobCtx, cancel := context.WithCancel(e.ctx)
	f := newFuture[T](cancel)
	e.metrics.recordSubmitted()

	stop := context.AfterFunc(ctx, f.Cancel)
	release := func() {
		stop()
		cancel()
	}

	j := &job{
		id:      f.id,
		start:   f.start,
		release: release,
		run: func() {
			defer release()
			value, err := body(jobCtx, f)
			cancelled := err != nil && jobCtx.Err() != nil && isCancellation(err)
			e.metrics.recordCompleted(e.settle(f.id, err, cancelled))
			if cancelled {
				var zero T
				f.resolve(zero, cancelledError(f.id, f.Attempts()))
				return
			}
			f.resolve(value, err)
		},
		abort: func(err error) {
			defer release()
			var zero T
			f.resolve(zero, err)
		},
	}

	if !e.push(j) {
		e.metrics.recordCompleted(StatusRejected)
		j.abort(closedError(f.id))
	}
	return f
}

// settle maps a work outcome to its metrics status.
func (e *Executor) settle(id ulid.ULID, err error, cancelled bool) string {
	switch {
	case err == nil:
		return StatusSuccess
	case cancelled:
		e.logger.Debug("task cancelled", "task_id", id.String())
		return StatusCancelled
	default:
		return StatusError
	}
}

func (e *Executor) push(j *job) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.queue = append(e.queue, j)
	e.metrics.setQueued(len(e.queue))
	e.cond.Signal()
	return true
}

func (e *Executor) next() (*job, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for len(e.queue) == 0 && !e.closed {
		e.cond.Wait()
	}
	if len(e.queue) == 0 {
		return nil, false
	}
	j := e.queue[0]
	e.queue[0] = nil
	e.queue = e.queue[1:]
	e.metrics.setQueued(len(e.queue))
	return j, true
}

// drain resolves every queued job as cancelled and returns how many there were.
func (e *Executor) drain() int {
	e.mu.Lock()
	pending := e.queue
	e.queue = nil
	e.metrics.setQueued(0)
	e.mu.Unlock()

	for _, j := range pending {
		if j.start() {
			j.abort(cancelledError(j.id, 0))
		} else {
			j.release()
		}
		e.metrics.recordCompleted(StatusCancelled)
	}
	return len(pending)
}

func (e *Executor) worker() error {
	for {
		j, ok := e.next()
		if !ok {
			return nil
		}
		if !j.start() {
			// Cancelled while queued; the Future is already resolved.
			j.release()
			e.metrics.recordCompleted(StatusCancelled)
			continue
		}
		e.metrics.setBusy(e.active.Add(1))
		j.run()
		e.metrics.setBusy(e.active.Add(-1))
	}
}

func (e *Executor) waitStopped(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-e.stopped:
		return true
	case <-timer.C:
		return false
	}
}

// guard runs work, converting a panic into an error.
func guard[T any](ctx context.Context, id ulid.ULID, work func(ctx context.Context) (T, error)) (value T, err error) {
	panicErr := oops.Code("TASK_PANIC").
		With("task_id", id.String()).
		Recover(func() {
			value, err = work(ctx)
		})
	if panicErr != nil {
		var zero T
		return zero, panicErr
	}
	return value, err
}

func discardValue(fn func(ctx context.Context) error) func(ctx context.Context) (struct{}, error) {
	return func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func isCancellation(err error) bool {
	return IsCancelled(err) || isContextError(err)
}
