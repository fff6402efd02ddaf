package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PoolUsage is open connections as a percentage of the configured maximum
	PoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blocklist_db_pool_usage_percent",
			Help: "Open database connections relative to the pool maximum",
		},
	)

	// PoolConnections tracks connections by state (in_use, idle)
	PoolConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "blocklist_db_pool_connections",
			Help: "Database connections by state",
		},
		[]string{"state"},
	)

	// PoolWaitCount is the cumulative number of waits reported by database/sql
	PoolWaitCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blocklist_db_pool_wait_count",
			Help: "Total number of times a caller waited for a connection",
		},
	)

	// LeasesInUse tracks leases currently held by repository operations
	LeasesInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blocklist_db_leases_in_use",
			Help: "Connection leases currently held",
		},
	)

	LeaseAcquireSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "blocklist_db_lease_acquire_seconds",
			Help:    "Time spent waiting for a connection lease",
			Buckets: prometheus.DefBuckets,
		},
	)

	LeaseAcquireFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blocklist_db_lease_acquire_failures_total",
			Help: "Lease acquisitions that timed out or failed",
		},
	)

	// ErrorsTotal counts classified errors returned to HTTP callers
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blocklist_errors_total",
			Help: "Total number of errors by kind",
		},
		[]string{"kind"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blocklist_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "status"},
	)

	HTTPRequestSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blocklist_http_request_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// EntriesImported counts rows inserted through the bulk path, by source
	EntriesImported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blocklist_entries_imported_total",
			Help: "Blocklist entries inserted by bulk import",
		},
		[]string{"source"},
	)

	FeedFetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blocklist_feed_fetch_failures_total",
			Help: "Feed downloads that failed",
		},
		[]string{"source"},
	)
)
