// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tellerline Contributors

package task

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Status label values for completed work items.
const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusCancelled = "cancelled"
	StatusRejected  = "rejected"
)

// metrics holds the executor's Prometheus collectors. A nil *metrics is valid
// and records nothing.
type metrics struct {
	submitted prometheus.Counter
	completed *prometheus.CounterVec
	retries   prometheus.Counter
	busy      prometheus.Gauge
	queued    prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}
	m := &metrics{
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tellerline_tasks_submitted_total",
			Help: "Total number of work items submitted to the executor",
		}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tellerline_tasks_completed_total",
			Help: "Total number of resolved work items by status",
		}, []string{"status"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tellerline_task_retries_total",
			Help: "Total number of retry attempts after a failed work item",
		}),
		busy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tellerline_executor_busy_workers",
			Help: "Number of workers currently running a work item",
		}),
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tellerline_executor_queued_tasks",
			Help: "Number of work items waiting for a worker",
		}),
	}
	reg.MustRegister(m.submitted, m.completed, m.retries, m.busy, m.queued)
	return m
}

func (m *metrics) recordSubmitted() {
	if m != nil {
		m.submitted.Inc()
	}
}

func (m *metrics) recordCompleted(status string) {
	if m != nil {
		m.completed.WithLabelValues(status).Inc()
	}
}

func (m *metrics) recordRetry() {
	if m != nil {
		m.retries.Inc()
	}
}

func (m *metrics) setBusy(n int64) {
	if m != nil {
		m.busy.Set(float64(n))
	}
}

func (m *metrics) setQueued(n int) {
	if m != nil {
		m.queued.Set(float64(n))
	}
}
