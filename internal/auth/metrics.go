// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tellerline Contributors

package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values for login metrics.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeLocked             = "locked"
	OutcomeValidation         = "validation"
	OutcomeInfrastructure     = "infrastructure"
)

// metrics holds the login Prometheus collectors. A nil *metrics is valid and
// records nothing.
type metrics struct {
	logins       *prometheus.CounterVec
	verification prometheus.Histogram
	lockouts     prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}
	m := &metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tellerline_login_attempts_total",
			Help: "Total number of login attempts by outcome",
		}, []string{"outcome"}),
		verification: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tellerline_login_verification_seconds",
			Help:    "Duration of asynchronous credential verification in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tellerline_account_lockouts_total",
			Help: "Total number of times an identity crossed the failure threshold",
		}),
	}
	reg.MustRegister(m.logins, m.verification, m.lockouts)
	return m
}

func (m *metrics) recordLogin(outcome string) {
	if m != nil {
		m.logins.WithLabelValues(outcome).Inc()
	}
}

func (m *metrics) recordVerification(d time.Duration) {
	if m != nil {
		m.verification.Observe(d.Seconds())
	}
}

func (m *metrics) recordLockout() {
	if m != nil {
		m.lockouts.Inc()
	}
}
