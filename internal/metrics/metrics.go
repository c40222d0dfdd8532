// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitarenta_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vitarenta_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vitarenta_api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitarenta_api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"limiter"},
	)

	// Database
	DBHealthy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vitarenta_db_healthy",
			Help: "1 when the last MongoDB ping succeeded, 0 otherwise",
		},
	)

	DBReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vitarenta_db_reconnects_total",
			Help: "Total number of MongoDB reconnect attempts",
		},
	)

	// Domain
	ReservationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitarenta_reservations_total",
			Help: "Reservations created or moved to a status",
		},
		[]string{"status"},
	)

	ReservationConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitarenta_reservation_conflicts_total",
			Help: "Reservations rejected because of a conflict",
		},
		[]string{"reason"}, // "overlap", "locked", "unavailable"
	)

	TelemetryIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitarenta_telemetry_ingested_total",
			Help: "Telemetry samples stored, by source",
		},
		[]string{"source"},
	)

	TelemetryRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitarenta_telemetry_rejected_total",
			Help: "Telemetry samples rejected, by source",
		},
		[]string{"source"},
	)

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vitarenta_websocket_clients",
			Help: "Connected live telemetry clients",
		},
	)

	EcoChallengeCompletions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vitarenta_ecochallenge_completions_total",
			Help: "Eco-challenge participations completed",
		},
	)

	EcoChallengeSweeps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitarenta_ecochallenge_sweep_changes_total",
			Help: "Documents changed by the eco-challenge sweep",
		},
		[]string{"kind"}, // "expired", "deactivated", "rewards"
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, route, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordSweep adds the changes made by one eco-challenge sweep.
func RecordSweep(expired, deactivated int64, rewards int) {
	EcoChallengeSweeps.WithLabelValues("expired").Add(float64(expired))
	EcoChallengeSweeps.WithLabelValues("deactivated").Add(float64(deactivated))
	EcoChallengeSweeps.WithLabelValues("rewards").Add(float64(rewards))
}
