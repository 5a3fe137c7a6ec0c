// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

// Package metrics holds the Prometheus instrumentation for the aggregation
// pipeline: outbound source requests, adapter runs, the event store, circuit
// breakers, and the HTTP API. All collectors register on the default
// registry through promauto and are exposed at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Outbound source requests
	SourceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandtrack_source_requests_total",
			Help: "Outbound requests to event sources by outcome",
		},
		[]string{"source", "outcome"}, // outcome: ok, not_found, transient, circuit_open, rejected
	)

	SourceRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bandtrack_source_request_duration_seconds",
			Help:    "Duration of outbound source requests including retries",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	// Events
	EventsAdded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandtrack_events_added_total",
			Help: "Events newly persisted by source",
		},
		[]string{"source"},
	)

	EventsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandtrack_events_skipped_total",
			Help: "Fetched events not persisted, by reason",
		},
		[]string{"source", "reason"}, // reason: known, irrelevant, invalid, duplicate, parse, outside_window, outside_region
	)

	IndexPagesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandtrack_index_pages_skipped_total",
			Help: "State index pages the source refused to serve",
		},
		[]string{"source", "state"},
	)

	EnrichmentFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandtrack_enrichment_failures_total",
			Help: "Detail page fetches that degraded an event to Unknown",
		},
		[]string{"source"},
	)

	// Adapter runs
	AdapterRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bandtrack_adapter_run_duration_seconds",
			Help:    "Duration of a single adapter FetchNew call",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"source"},
	)

	AdapterRunErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandtrack_adapter_run_errors_total",
			Help: "Adapter runs that ended with an error, by class",
		},
		[]string{"source", "class"}, // class: source, config, storage, panic, other
	)

	AggregationLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bandtrack_aggregation_last_success_timestamp",
			Help: "Unix time of the last full run that completed without a storage error",
		},
	)

	AggregationRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandtrack_aggregation_runs_total",
			Help: "Full aggregation runs by result",
		},
		[]string{"result"}, // ok, partial, failed
	)

	EventsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bandtrack_events_purged_total",
			Help: "Events removed by the retention purge",
		},
	)

	// Database
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

	EventsStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bandtrack_events_stored",
			Help: "Rows in the events table after the last run",
		},
	)

	// Circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
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

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// API
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
			Help: "Number of in-flight API requests",
		},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "api_cache_hits_total",
			Help: "Event list responses served from cache",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "api_cache_misses_total",
			Help: "Event list responses built from the store",
		},
	)

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Connected WebSocket clients",
		},
	)
)

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// RecordSourceRequest records one outbound request with its final outcome.
func RecordSourceRequest(source, outcome string, duration time.Duration) {
	SourceRequestsTotal.WithLabelValues(source, outcome).Inc()
	SourceRequestDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordEventAdded counts a newly persisted event.
func RecordEventAdded(source string) {
	EventsAdded.WithLabelValues(source).Inc()
}

// RecordEventSkipped counts a fetched event that was not persisted.
func RecordEventSkipped(source, reason string) {
	EventsSkipped.WithLabelValues(source, reason).Inc()
}

// RecordIndexSkipped counts a state whose index page was refused.
func RecordIndexSkipped(source, state string) {
	IndexPagesSkipped.WithLabelValues(source, state).Inc()
}

// RecordAdapterRun records one adapter invocation. class is empty on success.
func RecordAdapterRun(source string, duration time.Duration, class string) {
	AdapterRunDuration.WithLabelValues(source).Observe(duration.Seconds())
	if class != "" {
		AdapterRunErrors.WithLabelValues(source, class).Inc()
	}
}

// RecordAggregationRun records a full run result and, unless it failed,
// the last-success timestamp.
func RecordAggregationRun(result string, purged int64) {
	AggregationRunsTotal.WithLabelValues(result).Inc()
	if purged > 0 {
		EventsPurged.Add(float64(purged))
	}
	if result != "failed" {
		AggregationLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
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
