// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tellerline Contributors

// Package observability serves Prometheus metrics and health checks that
// report on the login worker pool.
package observability

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// Endpoint paths.
const (
	LivenessPath  = "/healthz/liveness"
	ReadinessPath = "/healthz/readiness"
	MetricsPath   = "/metrics"
)

// WorkerPool is the view of the executor that the health checks report on.
// *task.Executor satisfies it.
type WorkerPool interface {
	Workers() int
	Busy() int
	Queued() int
	Closed() bool
	Terminated() bool
}

// BuildInfo reports the running version as a constant gauge.
type BuildInfo struct {
	Version string
	Service string
}

func (b BuildInfo) collector() prometheus.Collector {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "tellerline_build_info",
		Help:        "Build information for the running tellerline binary",
		ConstLabels: prometheus.Labels{"version": b.Version, "service": b.Service},
	})
	g.Set(1)
	return g
}

// Config configures a Server.
type Config struct {
	// Addr is the listen address, e.g. "127.0.0.1:9100". Port 0 picks a free port.
	Addr string

	Build BuildInfo

	// Pool is reported by the health checks. Nil means always ready.
	Pool WorkerPool

	// Registry is served on /metrics. Nil creates a private one.
	Registry *prometheus.Registry

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Health is the JSON body of both health checks.
type Health struct {
	Status        string `json:"status"`
	Service       string `json:"service,omitempty"`
	Version       string `json:"version,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Workers       int    `json:"workers,omitempty"`
	BusyWorkers   int    `json:"busy_workers"`
	QueuedTasks   int    `json:"queued_tasks"`
	Closed        bool   `json:"closed"`
	Terminated    bool   `json:"terminated"`
}

// Health statuses.
const (
	StatusAlive    = "alive"
	StatusReady    = "ready"
	StatusDraining = "draining"
	StatusStopped  = "stopped"
)

// Server exposes /metrics and the liveness and readiness checks.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	registry *prometheus.Registry
	started  time.Time

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates a server and registers the Go and process collectors and
// the build info gauge with its registry.
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		cfg.Build.collector(),
	)

	return &Server{
		cfg:      cfg,
		logger:   cfg.Logger,
		registry: registry,
		started:  cfg.Now(),
	}
}

// Registerer returns the registry that application metrics register with.
func (s *Server) Registerer() prometheus.Registerer {
	return s.registry
}

// Start binds the listener and serves in the background. Serve failures are
// sent on the returned channel, which is closed when serving ends.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("OBSERVABILITY_RUNNING").Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("OBSERVABILITY_LISTEN").With("addr", s.cfg.Addr).Wrap(err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.Handle(MetricsPath, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc(LivenessPath, s.handleLiveness)
	mux.HandleFunc(ReadinessPath, s.handleReadiness)

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = srv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := srv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			errCh <- serveErr
		}
	}()

	s.logger.Info("observability server listening", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop shuts the server down. Stopping a server that is not running is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.running.Store(true)
		return oops.Code("OBSERVABILITY_SHUTDOWN").Wrap(err)
	}
	s.logger.Info("observability server stopped")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// health snapshots the pool. The status is ready while the pool accepts
// work, draining after Shutdown began and stopped once every worker exited.
func (s *Server) health() Health {
	h := Health{
		Status:        StatusReady,
		Service:       s.cfg.Build.Service,
		Version:       s.cfg.Build.Version,
		UptimeSeconds: int64(s.cfg.Now().Sub(s.started) / time.Second),
	}
	if p := s.cfg.Pool; p != nil {
		h.Workers = p.Workers()
		h.BusyWorkers = p.Busy()
		h.QueuedTasks = p.Queued()
		h.Closed = p.Closed()
		h.Terminated = p.Terminated()
		switch {
		case h.Terminated:
			h.Status = StatusStopped
		case h.Closed:
			h.Status = StatusDraining
		}
	}
	return h
}

// handleLiveness answers 200 while the process serves requests, with the
// pool state for diagnostics.
func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	h := s.health()
	h.Status = StatusAlive
	s.writeHealth(w, http.StatusOK, h)
}

// handleReadiness answers 503 once the pool stops accepting work.
func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	h := s.health()
	code := http.StatusOK
	if h.Status != StatusReady {
		code = http.StatusServiceUnavailable
	}
	s.writeHealth(w, code, h)
}

func (s *Server) writeHealth(w http.ResponseWriter, code int, h Health) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(h); err != nil {
		s.logger.Debug("failed to write health response", "error", err)
	}
}
