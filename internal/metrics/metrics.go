// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - Upstream API fetching (pages, rate limiting, abandoned fetches)
// - Sync pipeline runs (durations, record outcomes, cursors)
// - Database query performance (DuckDB)
// - Rollup builds
// - Scheduler dispatch and recovery
// - The HTTP trigger surface

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

	DBConnectionPoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "duckdb_connection_pool_size",
			Help: "Current number of database connections in use",
		},
	)

	// Upstream Fetch Metrics
	FetchPages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_pages_total",
			Help: "Total number of pages fetched from upstream APIs",
		},
		[]string{"source", "entity"}, // source: "lms", "prm"
	)

	FetchRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_records_total",
			Help: "Total number of records fetched from upstream APIs",
		},
		[]string{"source", "entity"},
	)

	FetchRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fetch_request_duration_seconds",
			Help:    "Duration of upstream API page requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	FetchRateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_rate_limited_total",
			Help: "Total number of 429 responses received from upstream APIs",
		},
		[]string{"source"},
	)

	FetchAbandoned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_abandoned_total",
			Help: "Total number of fetches abandoned before pagination completed",
		},
		[]string{"source", "entity", "reason"}, // reason: "retries_exhausted", "http_error", "decode_error"
	)

	// Sync Pipeline Metrics
	SyncRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_run_duration_seconds",
			Help:    "Duration of sync runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"entity", "mode"},
	)

	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Total number of sync runs by terminal status",
		},
		[]string{"entity", "status"},
	)

	SyncRecordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_records_processed_total",
			Help: "Total number of records processed by sync pipelines",
		},
		[]string{"entity"},
	)

	SyncRecordsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_records_failed_total",
			Help: "Total number of records skipped or failed during sync",
		},
		[]string{"entity", "reason"}, // reason: "validation", "missing_reference", "database"
	)

	SyncBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_batch_size",
			Help:    "Number of records in sync upsert batches",
			Buckets: []float64{10, 25, 50, 100, 200, 500, 1000},
		},
	)

	SyncLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sync_last_success_timestamp",
			Help: "Unix timestamp of the last successful sync per entity type",
		},
		[]string{"entity"},
	)

	SyncCursor = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sync_cursor_timestamp",
			Help: "Unix timestamp of the incremental cursor per entity type",
		},
		[]string{"entity"},
	)

	// Rollup Metrics
	RollupBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rollup_build_duration_seconds",
			Help:    "Duration of partner rollup rebuilds in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)

	RollupPartners = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rollup_partners",
			Help: "Number of partner rows in the last rollup rebuild",
		},
	)

	RollupLastBuild = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rollup_last_build_timestamp",
			Help: "Unix timestamp of the last successful rollup rebuild",
		},
	)

	RollupErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rollup_errors_total",
			Help: "Total number of failed rollup rebuilds",
		},
	)

	// Scheduler Metrics
	SchedulerDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_dispatches_total",
			Help: "Total number of sync runs dispatched by the scheduler",
		},
		[]string{"entity"},
	)

	SchedulerRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_rejected_total",
			Help: "Total number of trigger attempts rejected because a run was already active",
		},
		[]string{"entity"},
	)

	StaleRunsRecovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_stale_runs_total",
			Help: "Total number of running syncs marked stale by the recovery sweeper",
		},
	)

	DuplicateRecordsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_duplicate_records_pruned_total",
			Help: "Total number of duplicate run and audit records removed",
		},
	)

	// API Endpoint Metrics
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
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
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

	// Build Metadata
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "credsync_build_info",
			Help: "Build metadata (always 1, labeled with version and commit)",
		},
		[]string{"version", "commit"},
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

// RecordFetchPage records one upstream page fetch
func RecordFetchPage(source, entity string, records int, duration time.Duration) {
	FetchPages.WithLabelValues(source, entity).Inc()
	FetchRecords.WithLabelValues(source, entity).Add(float64(records))
	FetchRequestDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordRateLimited records a 429 response from an upstream API
func RecordRateLimited(source string) {
	FetchRateLimited.WithLabelValues(source).Inc()
}

// RecordFetchAbandoned records a fetch given up before pagination completed
func RecordFetchAbandoned(source, entity, reason string) {
	FetchAbandoned.WithLabelValues(source, entity, reason).Inc()
}

// RecordSyncRun records the terminal outcome of one sync run
func RecordSyncRun(entity, mode, status string, duration time.Duration) {
	SyncRuns.WithLabelValues(entity, status).Inc()
	SyncRunDuration.WithLabelValues(entity, mode).Observe(duration.Seconds())
	if status == "completed" {
		SyncLastSuccess.WithLabelValues(entity).Set(float64(time.Now().Unix()))
	}
}

// RecordSyncBatch records the outcome of one upsert batch
func RecordSyncBatch(entity string, processed int) {
	SyncBatchSize.Observe(float64(processed))
	SyncRecordsProcessed.WithLabelValues(entity).Add(float64(processed))
}

// RecordSyncFailures records records skipped or failed during a run
func RecordSyncFailures(entity, reason string, count int) {
	if count <= 0 {
		return
	}
	SyncRecordsFailed.WithLabelValues(entity, reason).Add(float64(count))
}

// SetSyncCursor publishes the incremental cursor position for an entity type
func SetSyncCursor(entity string, cursor time.Time) {
	SyncCursor.WithLabelValues(entity).Set(float64(cursor.Unix()))
}

// RecordSchedulerDispatch records a run dispatched by the scheduler loop
func RecordSchedulerDispatch(entity string) {
	SchedulerDispatches.WithLabelValues(entity).Inc()
}

// RecordSchedulerRejected records a dispatch that lost the run slot to an
// already-active run
func RecordSchedulerRejected(entity string) {
	SchedulerRejected.WithLabelValues(entity).Inc()
}

// RecordStaleRuns records runs reclaimed by the recovery sweep
func RecordStaleRuns(count int) {
	if count <= 0 {
		return
	}
	StaleRunsRecovered.Add(float64(count))
}

// RecordDuplicatesPruned records audit rows removed by the dedup sweep
func RecordDuplicatesPruned(count int64) {
	if count <= 0 {
		return
	}
	DuplicateRecordsPruned.Add(float64(count))
}

// RecordRollupBuild records a rollup rebuild attempt
func RecordRollupBuild(duration time.Duration, partners int, err error) {
	if err != nil {
		RollupErrors.Inc()
		return
	}
	RollupBuildDuration.Observe(duration.Seconds())
	RollupPartners.Set(float64(partners))
	RollupLastBuild.Set(float64(time.Now().Unix()))
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// SetCircuitBreakerState publishes the current breaker state as a gauge
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordBreakerTransition records a circuit breaker state change
func RecordBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}

// SetBuildInfo publishes build metadata once at startup
func SetBuildInfo(version, commit string) {
	BuildInfo.WithLabelValues(version, commit).Set(1)
}
