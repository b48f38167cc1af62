// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wanderdesk/wanderdesk/internal/auth"
)

const namespace = "wanderdesk"

// Metrics counts authentication outcomes. It implements auth.Recorder.
type Metrics struct {
	LoginAttempts       *prometheus.CounterVec
	AccountLocks        prometheus.Counter
	SessionRevocations  *prometheus.CounterVec
	PasswordResets      *prometheus.CounterVec
	AuthorizationDenial *prometheus.CounterVec
}

// NewMetrics creates and registers the auth counters.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "login_attempts_total",
				Help:      "Login attempts by result",
			},
			[]string{"result"},
		),
		AccountLocks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "account_locks_total",
				Help:      "Accounts locked after repeated failures",
			},
		),
		SessionRevocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_revocations_total",
				Help:      "Sessions revoked by reason",
			},
			[]string{"reason"},
		),
		PasswordResets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "password_resets_total",
				Help:      "Password reset attempts by result",
			},
			[]string{"result"},
		),
		AuthorizationDenial: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "authorization_denials_total",
				Help:      "Denied authorization checks by required role",
			},
			[]string{"role"},
		),
	}

	reg.MustRegister(
		m.LoginAttempts,
		m.AccountLocks,
		m.SessionRevocations,
		m.PasswordResets,
		m.AuthorizationDenial,
	)
	return m
}

func (m *Metrics) LoginAttempt(result string) { m.LoginAttempts.WithLabelValues(result).Inc() }

func (m *Metrics) AccountLocked() { m.AccountLocks.Inc() }

func (m *Metrics) SessionRevoked(reason string) { m.SessionRevocations.WithLabelValues(reason).Inc() }

func (m *Metrics) PasswordReset(result string) { m.PasswordResets.WithLabelValues(result).Inc() }

func (m *Metrics) AuthorizationDenied(role string) {
	m.AuthorizationDenial.WithLabelValues(role).Inc()
}

var _ auth.Recorder = (*Metrics)(nil)

// StatsSource supplies the security snapshot exported as gauges and served
// on /debug/security. *auth.Service implements it.
type StatsSource interface {
	SecurityStatistics(ctx context.Context) (auth.SecurityStatistics, error)
}

// statsTimeout bounds one scrape of a StatsSource.
const statsTimeout = 2 * time.Second

var (
	activeSessionsDesc = prometheus.NewDesc(namespace+"_active_sessions", "Sessions currently registered", nil, nil)
	lockedAccountsDesc = prometheus.NewDesc(namespace+"_locked_accounts", "Accounts currently locked out", nil, nil)
	failedAttemptsDesc = prometheus.NewDesc(namespace+"_failed_attempts", "Consecutive failures held in the attempt tracker", nil, nil)
	pendingResetsDesc  = prometheus.NewDesc(namespace+"_pending_reset_tokens", "Outstanding password reset tokens", nil, nil)
	usersDesc          = prometheus.NewDesc(namespace+"_users", "Accounts in the user store by state", []string{"state"}, nil)
)

// statsCollector reads a StatsSource on every scrape.
type statsCollector struct {
	src StatsSource
}

func (c statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- activeSessionsDesc
	ch <- lockedAccountsDesc
	ch <- failedAttemptsDesc
	ch <- pendingResetsDesc
	ch <- usersDesc
}

func (c statsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
	defer cancel()

	st, err := c.src.SecurityStatistics(ctx)
	if err != nil {
		// The in-memory figures are still valid when the user count fails.
		slog.Warn("security statistics incomplete", "error", err)
	}
	gauge := func(desc *prometheus.Desc, v int, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(v), labels...)
	}
	gauge(activeSessionsDesc, st.ActiveSessions)
	gauge(lockedAccountsDesc, st.LockedAccounts)
	gauge(failedAttemptsDesc, st.TotalFailedAttempts)
	gauge(pendingResetsDesc, st.PendingResetTokens)
	if err == nil {
		gauge(usersDesc, st.ActiveUsers, "active")
		gauge(usersDesc, st.TotalUsers-st.ActiveUsers, "blocked")
	}
}
