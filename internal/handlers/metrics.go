package handlers

import (
	"github.com/StefanRadev91/TSPlaywrightSite/internal/session"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// action: register/login, status: success/failure, method: password/google
	authAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "academy_auth_attempts_total",
			Help: "Total number of sign-up and sign-in attempts",
		},
		[]string{"action", "status", "method"},
	)

	progressUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "academy_progress_updates_total",
			Help: "Total number of module completions and progress resets",
		},
		[]string{"action"},
	)

	dailyAnswers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "academy_daily_answers_total",
			Help: "Total number of accepted daily quiz answers",
		},
		[]string{"result", "phase"},
	)

	streamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "academy_stream_clients_current",
			Help: "Current number of connected session stream clients",
		},
	)
)

// RegisterSessionGauge exposes the number of live Session Stores.
func RegisterSessionGauge(registry *session.Registry) {
	promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "academy_sessions_current",
			Help: "Current number of client sessions held in memory",
		},
		func() float64 { return float64(registry.Len()) },
	)
}
