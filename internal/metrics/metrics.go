// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

// Package metrics holds the Prometheus instrumentation shared by the server,
// the device agent and the dashboard. Vectors are registered with promauto on
// the default registry and exposed by promhttp at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"endpoint"},
	)

	// Local queue (device)
	QueueEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_queue_enqueued_total",
			Help: "Total number of events appended to the local queue",
		},
		[]string{"kind"},
	)

	QueueSynced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_queue_synced_total",
			Help: "Total number of queue entries marked synced",
		},
		[]string{"kind"},
	)

	QueueTrimmed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_queue_trimmed_total",
			Help: "Total number of synced entries evicted by retention",
		},
		[]string{"kind"},
	)

	QueueDiscarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_queue_discarded_total",
			Help: "Total number of unsynced entries discarded by an operator",
		},
		[]string{"kind"},
	)

	QueuePending = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tracking_queue_pending",
			Help: "Current number of unsynced entries in the local queue",
		},
		[]string{"kind"},
	)

	QueueWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracking_queue_write_errors_total",
			Help: "Total number of failed local queue writes",
		},
	)

	QueueGCDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tracking_queue_gc_duration_seconds",
			Help:    "BadgerDB value log GC latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	QueueDBSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracking_queue_db_size_bytes",
			Help: "BadgerDB database size in bytes",
		},
	)

	// Capture loop (device)
	CaptureFixes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_capture_fixes_total",
			Help: "Total number of position fixes seen by the capture loop",
		},
		[]string{"outcome"}, // emitted, filtered
	)

	CaptureErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_capture_errors_total",
			Help: "Total number of capture attempts that failed to persist",
		},
		[]string{"kind"},
	)

	// Sync engine (device)
	SyncCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_sync_cycles_total",
			Help: "Total number of sync cycles by outcome",
		},
		[]string{"outcome"}, // complete, partial, failed, skipped, empty
	)

	SyncDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_sync_deliveries_total",
			Help: "Total number of event delivery attempts",
		},
		[]string{"kind", "outcome"}, // delivered, failed, rejected
	)

	SyncCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tracking_sync_cycle_duration_seconds",
			Help:    "Duration of sync cycles in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracking_sync_last_success_timestamp",
			Help: "Unix timestamp of the last cycle that delivered every attempted event",
		},
	)

	ConnectivityOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracking_connectivity_online",
			Help: "1 when the server health probe last succeeded",
		},
	)

	// Ingestion (server)
	IngestEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_ingest_events_total",
			Help: "Total number of events received by the ingestion service",
		},
		[]string{"kind", "outcome"}, // accepted, duplicate, malformed, error
	)

	ProjectionSubjects = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracking_projection_subjects",
			Help: "Current number of subjects with a projection",
		},
	)

	// Dashboard
	DashboardPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_dashboard_polls_total",
			Help: "Total number of projection polls by outcome",
		},
		[]string{"outcome"}, // ok, not_found, error
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current state of circuit breaker (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Event bus
	EventBusPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_eventbus_published_total",
			Help: "Total number of accepted events published to the event bus",
		},
		[]string{"topic", "result"}, // success, failure
	)

	// Authorization
	AuthzDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Authorization decisions by role and result",
		},
		[]string{"role", "result"}, // allowed, denied, error
	)

	// Application Info
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application information",
		},
		[]string{"version", "component"},
	)
)

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		// Truncate long error messages
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordEnqueue counts a successful or failed local queue append.
func RecordEnqueue(kind string, err error) {
	if err != nil {
		QueueWriteErrors.Inc()
		return
	}
	QueueEnqueued.WithLabelValues(kind).Inc()
}

// RecordSynced counts an entry moved to the synced log.
func RecordSynced(kind string) {
	QueueSynced.WithLabelValues(kind).Inc()
}

// RecordTrimmed counts entries evicted by retention.
func RecordTrimmed(kind string, n int) {
	if n > 0 {
		QueueTrimmed.WithLabelValues(kind).Add(float64(n))
	}
}

// RecordDiscarded counts an operator discard.
func RecordDiscarded(kind string) {
	QueueDiscarded.WithLabelValues(kind).Inc()
}

// SetQueuePending sets the unsynced gauge for one kind.
func SetQueuePending(kind string, n int) {
	QueuePending.WithLabelValues(kind).Set(float64(n))
}

// RecordCaptureFix counts one fix seen by the trigger.
func RecordCaptureFix(emitted bool) {
	if emitted {
		CaptureFixes.WithLabelValues("emitted").Inc()
		return
	}
	CaptureFixes.WithLabelValues("filtered").Inc()
}

// RecordCaptureError counts a capture whose enqueue failed.
func RecordCaptureError(kind string) {
	CaptureErrors.WithLabelValues(kind).Inc()
}

// RecordSyncCycle records one finished sync cycle.
func RecordSyncCycle(outcome string, duration time.Duration) {
	SyncCycles.WithLabelValues(outcome).Inc()
	if outcome == "skipped" {
		return
	}
	SyncCycleDuration.Observe(duration.Seconds())
	if outcome == "complete" || outcome == "empty" {
		SyncLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordDelivery records one delivery attempt.
func RecordDelivery(kind, outcome string) {
	SyncDeliveries.WithLabelValues(kind, outcome).Inc()
}

// SetConnectivity publishes the last probe result.
func SetConnectivity(online bool) {
	if online {
		ConnectivityOnline.Set(1)
		return
	}
	ConnectivityOnline.Set(0)
}

// RecordIngest records one ingestion outcome.
func RecordIngest(kind, outcome string) {
	IngestEvents.WithLabelValues(kind, outcome).Inc()
}

// SetProjectionSubjects sets the projection count gauge.
func SetProjectionSubjects(n int) {
	ProjectionSubjects.Set(float64(n))
}

// RecordDashboardPoll records one dashboard fetch.
func RecordDashboardPoll(outcome string) {
	DashboardPolls.WithLabelValues(outcome).Inc()
}

// RecordEventBusPublish records a publish to the event bus.
func RecordEventBusPublish(topic string, err error) {
	if err != nil {
		EventBusPublished.WithLabelValues(topic, "failure").Inc()
		return
	}
	EventBusPublished.WithLabelValues(topic, "success").Inc()
}

// RecordAuthzDecision records one policy decision.
func RecordAuthzDecision(role, result string) {
	AuthzDecisions.WithLabelValues(role, result).Inc()
}
