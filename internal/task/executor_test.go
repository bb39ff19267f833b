// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tellerline Contributors

package task_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tellerline/tellerline/internal/task"
	"github.com/tellerline/tellerline/pkg/errutil"
)

func newTestExecutor(t *testing.T, cfg task.Config) *task.Executor {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	e := task.NewExecutor(cfg)
	t.Cleanup(e.Shutdown)
	return e
}

func await[T any](t *testing.T, f *task.Future[T]) (T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	select {
	case <-f.Done():
	case <-ctx.Done():
		t.Fatalf("future %s did not resolve", f.ID())
	}
	return f.Await(ctx)
}

func TestNewExecutor_Defaults(t *testing.T) {
	e := newTestExecutor(t, task.Config{})
	assert.Equal(t, task.DefaultWorkers(), e.Workers())
	assert.False(t, e.Closed())
	assert.False(t, e.Terminated())
}

func TestSubmit(t *testing.T) {
	defer goleak.VerifyNone(t)

	e := newTestExecutor(t, task.Config{Workers: 2})

	t.Run("resolves with value", func(t *testing.T) {
		f := task.Submit(context.Background(), e, func(_ context.Context) (int, error) {
			return 42, nil
		})
		v, err := await(t, f)
		require.NoError(t, err)
		assert.Equal(t, 42, v)
		assert.Equal(t, 1, f.Attempts())
	})

	t.Run("wraps work error", func(t *testing.T) {
		boom := errors.New("boom")
		f := task.Submit(context.Background(), e, func(_ context.Context) (int, error) {
			return 0, boom
		})
		_, err := await(t, f)
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		errutil.AssertErrorCode(t, err, "TASK_FAILED")
	})

	t.Run("recovers panic", func(t *testing.T) {
		f := task.Submit(context.Background(), e, func(_ context.Context) (int, error) {
			panic("caramba")
		})
		_, err := await(t, f)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "caramba")
	})

	e.Shutdown()
}

func TestSubmit_DoesNotBlockCaller(t *testing.T) {
	e := newTestExecutor(t, task.Config{Workers: 1})

	release := make(chan struct{})
	blocker := e.Execute(context.Background(), func(_ context.Context) error {
		<-release
		return nil
	})

	start := time.Now()
	futures := make([]*task.Future[struct{}], 0, 100)
	for range 100 {
		futures = append(futures, e.Execute(context.Background(), func(_ context.Context) error {
			return nil
		}))
	}
	assert.Less(t, time.Since(start), time.Second, "submissions should return immediately")
	assert.False(t, blocker.Resolved())

	close(release)
	for _, f := range futures {
		_, err := await(t, f)
		require.NoError(t, err)
	}
}

func TestExecutor_BusyAndQueued(t *testing.T) {
	e := newTestExecutor(t, task.Config{Workers: 1})
	assert.Equal(t, 0, e.Busy())
	assert.Equal(t, 0, e.Queued())

	release := make(chan struct{})
	blocker := e.Execute(context.Background(), func(_ context.Context) error {
		<-release
		return nil
	})
	require.Eventually(t, func() bool { return e.Busy() == 1 }, 2*time.Second, 5*time.Millisecond)

	waiting := make([]*task.Future[struct{}], 0, 3)
	for range 3 {
		waiting = append(waiting, e.Execute(context.Background(), func(_ context.Context) error {
			return nil
		}))
	}
	assert.Equal(t, 3, e.Queued())

	close(release)
	_, err := await(t, blocker)
	require.NoError(t, err)
	for _, f := range waiting {
		_, err := await(t, f)
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return e.Busy() == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, e.Queued())
}

func TestSubmitWithRetry(t *testing.T) {
	defer goleak.VerifyNone(t)

	e := newTestExecutor(t, task.Config{Workers: 2})

	t.Run("always failing work is attempted maxRetries+1 times", func(t *testing.T) {
		var calls atomic.Int32
		boom := errors.New("still failing")

		start := time.Now()
		f := task.SubmitWithRetry(context.Background(), e, func(_ context.Context) (string, error) {
			calls.Add(1)
			return "", boom
		}, 2, 50*time.Millisecond)

		_, err := await(t, f)
		require.Error(t, err)

		var retryErr *task.RetryError
		require.ErrorAs(t, err, &retryErr)
		assert.Equal(t, 3, retryErr.Attempts)
		assert.ErrorIs(t, retryErr.Cause, boom)
		assert.Equal(t, int32(3), calls.Load())
		assert.Equal(t, 3, f.Attempts())
		assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
		errutil.AssertErrorCode(t, err, "TASK_RETRIES_EXHAUSTED")
		errutil.AssertErrorContext(t, err, "attempts", 3)
	})

	t.Run("succeeds on second attempt", func(t *testing.T) {
		var calls atomic.Int32
		f := task.SubmitWithRetry(context.Background(), e, func(_ context.Context) (string, error) {
			if calls.Add(1) == 1 {
				return "", errors.New("transient")
			}
			return "ok", nil
		}, 2, 50*time.Millisecond)

		v, err := await(t, f)
		require.NoError(t, err)
		assert.Equal(t, "ok", v)
		assert.Equal(t, int32(2), calls.Load())
		assert.Equal(t, 2, f.Attempts())
	})

	t.Run("negative retries runs once", func(t *testing.T) {
		var calls atomic.Int32
		f := e.ExecuteWithRetry(context.Background(), func(_ context.Context) error {
			calls.Add(1)
			return errors.New("nope")
		}, -1, 0)

		_, err := await(t, f)
		var retryErr *task.RetryError
		require.ErrorAs(t, err, &retryErr)
		assert.Equal(t, 1, retryErr.Attempts)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("cancel during delay stops the loop", func(t *testing.T) {
		var calls atomic.Int32
		failed := make(chan struct{}, 1)
		f := task.SubmitWithRetry(context.Background(), e, func(_ context.Context) (int, error) {
			calls.Add(1)
			failed <- struct{}{}
			return 0, errors.New("fail")
		}, 5, 10*time.Second)

		<-failed
		f.Cancel()

		_, err := await(t, f)
		require.Error(t, err)
		assert.True(t, task.IsCancelled(err))
		assert.Equal(t, int32(1), calls.Load())
		errutil.AssertErrorCode(t, err, "TASK_CANCELLED")
	})

	e.Shutdown()
}

func TestFuture_Cancel(t *testing.T) {
	e := newTestExecutor(t, task.Config{Workers: 1})

	t.Run("queued item resolves immediately and never runs", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		e.Execute(context.Background(), func(_ context.Context) error {
			<-release
			return nil
		})

		var ran atomic.Bool
		queued := e.Execute(context.Background(), func(_ context.Context) error {
			ran.Store(true)
			return nil
		})

		queued.Cancel()
		require.True(t, queued.Resolved())
		_, err, ok := queued.Result()
		require.True(t, ok)
		assert.True(t, task.IsCancelled(err))

		release <- struct{}{}
		assert.Never(t, ran.Load, 100*time.Millisecond, 10*time.Millisecond)
	})

	t.Run("running item observes context", func(t *testing.T) {
		started := make(chan struct{})
		f := e.Execute(context.Background(), func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		})
		<-started
		f.Cancel()

		_, err := await(t, f)
		assert.True(t, task.IsCancelled(err))
		assert.ErrorIs(t, err, task.ErrCancelled)
	})

	t.Run("cancel after resolution is a no-op", func(t *testing.T) {
		f := task.Submit(context.Background(), e, func(_ context.Context) (int, error) {
			return 7, nil
		})
		v, err := await(t, f)
		require.NoError(t, err)

		f.Cancel()
		v2, err2, ok := f.Result()
		require.True(t, ok)
		assert.NoError(t, err2)
		assert.Equal(t, v, v2)
	})

	t.Run("caller context cancels the item", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		started := make(chan struct{})
		f := e.Execute(ctx, func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		})
		<-started
		cancel()

		_, err := await(t, f)
		assert.True(t, task.IsCancelled(err))
	})
}

func TestExecutor_Shutdown(t *testing.T) {
	t.Run("waits for in-flight work within grace period", func(t *testing.T) {
		defer goleak.VerifyNone(t)

		e := newTestExecutor(t, task.Config{Workers: 5, GracePeriod: 2 * time.Second})
		futures := make([]*task.Future[struct{}], 0, 5)
		for range 5 {
			futures = append(futures, e.Execute(context.Background(), func(_ context.Context) error {
				time.Sleep(100 * time.Millisecond)
				return nil
			}))
		}

		e.Shutdown()

		assert.True(t, e.Terminated())
		for _, f := range futures {
			_, err, ok := f.Result()
			require.True(t, ok)
			assert.NoError(t, err)
		}
	})

	t.Run("cancels long-running work after grace period", func(t *testing.T) {
		defer goleak.VerifyNone(t)

		e := newTestExecutor(t, task.Config{
			Workers:     5,
			GracePeriod: 100 * time.Millisecond,
			ForcePeriod: 2 * time.Second,
		})

		var started atomic.Int32
		futures := make([]*task.Future[struct{}], 0, 5)
		for range 5 {
			futures = append(futures, e.Execute(context.Background(), func(ctx context.Context) error {
				started.Add(1)
				<-ctx.Done()
				return ctx.Err()
			}))
		}
		require.Eventually(t, func() bool { return started.Load() == 5 }, time.Second, 5*time.Millisecond)

		start := time.Now()
		assert.NotPanics(t, e.Shutdown)
		assert.Less(t, time.Since(start), 2*time.Second)
		assert.True(t, e.Terminated())

		for _, f := range futures {
			_, err, ok := f.Result()
			require.True(t, ok)
			assert.True(t, task.IsCancelled(err))
		}
	})

	t.Run("reports workers that ignore cancellation", func(t *testing.T) {
		e := newTestExecutor(t, task.Config{
			Workers:     1,
			GracePeriod: 20 * time.Millisecond,
			ForcePeriod: 20 * time.Millisecond,
		})
		release := make(chan struct{})
		defer close(release)

		started := make(chan struct{})
		e.Execute(context.Background(), func(_ context.Context) error {
			close(started)
			<-release
			return nil
		})
		<-started

		assert.NotPanics(t, e.Shutdown)
		assert.False(t, e.Terminated())
	})

	t.Run("rejects work after shutdown", func(t *testing.T) {
		e := newTestExecutor(t, task.Config{Workers: 1})
		e.Shutdown()
		e.Shutdown()

		assert.True(t, e.Closed())
		f := e.Execute(context.Background(), func(_ context.Context) error { return nil })
		require.True(t, f.Resolved())
		_, err, _ := f.Result()
		assert.ErrorIs(t, err, task.ErrExecutorClosed)
		errutil.AssertErrorCode(t, err, "TASK_REJECTED")
	})
}

func TestExecutor_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := newTestExecutor(t, task.Config{Workers: 1, Registerer: reg})

	_, err := await(t, e.Execute(context.Background(), func(_ context.Context) error { return nil }))
	require.NoError(t, err)
	_, err = await(t, e.ExecuteWithRetry(context.Background(), func(_ context.Context) error {
		return errors.New("fail")
	}, 1, time.Millisecond))
	require.Error(t, err)

	count, err := testutil.GatherAndCount(reg, "tellerline_tasks_submitted_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			if m.GetCounter() != nil {
				values[fam.GetName()] += m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, float64(2), values["tellerline_tasks_submitted_total"])
	assert.Equal(t, float64(2), values["tellerline_tasks_completed_total"])
	assert.Equal(t, float64(1), values["tellerline_task_retries_total"])
}
