// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

// Package metrics holds the Prometheus collectors for media-server requests,
// merge passes, circuit breakers and the HTTP API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Media-server request metrics
	RequestsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "embysync_requests_in_flight",
			Help: "Outstanding media-server requests by type and server",
		},
		[]string{"type", "server"},
	)

	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embysync_requests_total",
			Help: "Completed media-server requests by type, server and outcome",
		},
		[]string{"type", "server", "outcome"}, // outcome: success, error, canceled
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "embysync_request_duration_seconds",
			Help:    "Round-trip time of media-server requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	RequestRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embysync_request_retries_total",
			Help: "Transient-failure retries issued by the HTTP client",
		},
		[]string{"server"},
	)

	StuckRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embysync_stuck_request_counters_total",
			Help: "Watchdog detections of in-flight counters with no live request",
		},
		[]string{"type", "server"},
	)

	// Merge metrics
	MergeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "embysync_merge_duration_seconds",
			Help:    "Duration of merge passes",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		},
	)

	MergesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embysync_merges_total",
			Help: "Merge passes by result",
		},
		[]string{"result"}, // result: committed, canceled, failed
	)

	CatalogRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "embysync_catalog_records",
			Help: "Records in the canonical media table",
		},
	)

	CatalogNeedsUpdating = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "embysync_catalog_needs_updating",
			Help: "Records whose server states diverge",
		},
	)

	UpdatesPushed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embysync_updates_pushed_total",
			Help: "User-data updates pushed to servers",
		},
		[]string{"server", "kind"}, // kind: favorite, data
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embysync_api_requests_total",
			Help: "HTTP API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "embysync_api_request_duration_seconds",
			Help:    "HTTP API latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "embysync_websocket_connections",
			Help: "Connected change-feed websocket clients",
		},
	)

	// Circuit Breaker Metrics
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
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
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
)

// RecordRequest records a completed media-server request.
func RecordRequest(reqType, server, outcome string, duration time.Duration) {
	RequestsTotal.WithLabelValues(reqType, server, outcome).Inc()
	RequestDuration.WithLabelValues(reqType).Observe(duration.Seconds())
}

// RecordMerge records a merge pass and the catalog size it left behind.
func RecordMerge(duration time.Duration, result string, records, divergent int) {
	MergeDuration.Observe(duration.Seconds())
	MergesTotal.WithLabelValues(result).Inc()
	if result == "committed" {
		CatalogRecords.Set(float64(records))
		CatalogNeedsUpdating.Set(float64(divergent))
	}
}

// RecordAPIRequest records an API request.
func RecordAPIRequest(method, endpoint string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
