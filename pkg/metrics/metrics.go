package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campus_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campus_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// NotificationRelay counts post-commit enqueue attempts (published|failed).
	NotificationRelay = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campus_notification_relay_total",
			Help: "Notification identifiers handed to the queue after commit",
		},
		[]string{"result"},
	)

	// NotificationConsumed counts consumer outcomes (delivered|missing|invalid|failed).
	NotificationConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campus_notification_consumed_total",
			Help: "Queue messages processed by the notification consumer",
		},
		[]string{"outcome"},
	)

	// NotificationDelivery counts router decisions by mode (direct|broadcast) and result.
	NotificationDelivery = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campus_notification_delivery_total",
			Help: "Real-time notification pushes",
		},
		[]string{"mode", "result"},
	)

	// RealtimeSessions tracks live STOMP sessions.
	RealtimeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "campus_realtime_sessions",
			Help: "Number of connected real-time sessions",
		},
	)

	// MaintenanceRuns counts retention job executions by result.
	MaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campus_maintenance_runs_total",
			Help: "Maintenance job executions",
		},
		[]string{"job", "result"},
	)
)
