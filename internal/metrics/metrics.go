// Package metrics holds the Prometheus collectors of the finboard server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts served requests by route pattern.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finboard_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by route pattern.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finboard_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// SessionResolutions counts session resolver outcomes.
	SessionResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finboard_session_resolutions_total",
			Help: "Session resolutions by outcome (no_cookies, authenticated, failed)",
		},
		[]string{"outcome"},
	)

	// ChatExchanges counts chat exchanges by outcome.
	ChatExchanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finboard_chat_exchanges_total",
			Help: "Chat exchanges by outcome (ok, empty, failed)",
		},
		[]string{"outcome"},
	)

	// ChatLatency observes round trips to the chat endpoint.
	ChatLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "finboard_chat_latency_seconds",
			Help:    "Latency of the finance chat endpoint",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	// AuthSubmissions counts login/register/logout submissions by outcome.
	AuthSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finboard_auth_submissions_total",
			Help: "Auth form submissions by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// ActiveWorkspaces tracks live tab workspaces.
	ActiveWorkspaces = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "finboard_workspaces_active",
			Help: "Number of live tab workspaces",
		},
	)

	// BackendUp reports the last probe result per backend (1 reachable, 0 not).
	BackendUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "finboard_backend_up",
			Help: "Whether a backend answered the last probe",
		},
		[]string{"backend"},
	)
)
