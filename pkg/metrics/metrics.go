// Package metrics defines the Prometheus instruments exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes HTTP request latency
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// DepositsCreatedTotal counts automated deposit requests created
	DepositsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deposits_created_total",
			Help: "Total number of deposit requests created",
		},
	)

	// DepositTransitionsTotal counts deposit state transitions by target status
	DepositTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deposit_transitions_total",
			Help: "Total number of deposit status transitions",
		},
		[]string{"status"},
	)

	// AllocatorRetriesTotal counts payable-amount collisions that forced a retry
	AllocatorRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "allocator_retries_total",
			Help: "Total number of payable amount allocation retries",
		},
	)

	// TransfersScannedTotal counts transfers handed to the reconciler
	TransfersScannedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transfers_scanned_total",
			Help: "Total number of on-chain transfers scanned",
		},
	)

	// ReconcileResultsTotal counts reconciliation outcomes
	ReconcileResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_results_total",
			Help: "Total number of reconciliation results by outcome",
		},
		[]string{"result"},
	)

	// ScanCyclesTotal counts scanner cycles by result
	ScanCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_cycles_total",
			Help: "Total number of chain scan cycles",
		},
		[]string{"result"},
	)

	// ScanCycleDuration observes chain scan cycle duration
	ScanCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scan_cycle_duration_seconds",
			Help:    "Chain scan cycle duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// ScanCursorBlock reports the last processed block number
	ScanCursorBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scan_cursor_block_number",
			Help: "Last processed block number of the chain scanner",
		},
	)

	// DatabaseConnectionsGauge reports database pool state
	DatabaseConnectionsGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "database_connections",
			Help: "Database connection pool state",
		},
		[]string{"state"},
	)
)
