// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tellerline Contributors

package task

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
)

// ShutdownHook runs a function exactly once: when the process receives one
// of the watched signals, or when Fire is called, whichever happens first.
// Owners of the process lifetime should defer Fire so the function also runs
// on a normal exit.
type ShutdownHook struct {
	once  sync.Once
	fn    func()
	sigCh chan os.Signal
	quit  chan struct{}
	fired atomic.Bool
}

// NewShutdownHook registers fn to run on the given signals.
// With no signals, SIGINT and SIGTERM are watched.
func NewShutdownHook(fn func(), signals ...os.Signal) *ShutdownHook {
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	h := &ShutdownHook{
		fn:    fn,
		sigCh: make(chan os.Signal, 1),
		quit:  make(chan struct{}),
	}
	signal.Notify(h.sigCh, signals...)
	go h.watch()
	return h
}

func (h *ShutdownHook) watch() {
	select {
	case <-h.sigCh:
		h.Fire()
	case <-h.quit:
	}
}

// Fire runs the hook function if it has not run yet and stops watching
// signals. Concurrent callers block until the function has returned.
func (h *ShutdownHook) Fire() {
	h.once.Do(func() {
		signal.Stop(h.sigCh)
		close(h.quit)
		h.fired.Store(true)
		h.fn()
	})
}

// Fired reports whether the hook function has been started.
func (h *ShutdownHook) Fired() bool {
	return h.fired.Load()
}
