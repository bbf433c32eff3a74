package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "therapybro_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "therapybro_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	SessionsStartedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "therapybro_sessions_started_total",
			Help: "Total number of chat sessions created",
		},
		[]string{"kind"}, // free | inert
	)

	SessionExtensionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "therapybro_session_extensions_total",
			Help: "Total number of session extension attempts",
		},
		[]string{"outcome"}, // success | insufficient_funds | not_today | invalid | error
	)

	ExtensionRevenueTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "therapybro_extension_revenue_total",
			Help: "Total amount charged for session extensions",
		},
	)

	ExpiredSendsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "therapybro_expired_sends_total",
			Help: "Messages rejected because the session timer had run out",
		},
	)

	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "therapybro_messages_total",
			Help: "Messages persisted, by role",
		},
		[]string{"role"},
	)

	WalletsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "therapybro_wallets_created_total",
			Help: "Total number of wallets bootstrapped with the signup bonus",
		},
	)

	FinalizeJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "therapybro_finalize_jobs_total",
			Help: "Finalize-on-expiry jobs, by outcome",
		},
		[]string{"status"}, // queued | done | failed | skipped
	)

	FinalizeQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "therapybro_finalize_queue_length",
			Help: "Current length of the finalize job queue",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordSessionStarted(kind string) {
	SessionsStartedTotal.WithLabelValues(kind).Inc()
}

func RecordExtension(outcome string) {
	SessionExtensionsTotal.WithLabelValues(outcome).Inc()
}

func RecordExtensionRevenue(amount float64) {
	ExtensionRevenueTotal.Add(amount)
}

func RecordExpiredSend() {
	ExpiredSendsTotal.Inc()
}

func RecordMessage(role string) {
	MessagesTotal.WithLabelValues(role).Inc()
}

func RecordWalletCreated() {
	WalletsCreatedTotal.Inc()
}

func RecordFinalizeJob(status string) {
	FinalizeJobsTotal.WithLabelValues(status).Inc()
}
