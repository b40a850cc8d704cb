// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

/*
Package metrics provides Prometheus instrumentation for all Credsync components.

Metrics are registered with the default registry via promauto and exposed on the
HTTP server's /metrics endpoint. Components either touch the exported collectors
directly or use the Record* helpers, which bundle the multi-metric updates that
always happen together:

	metrics.RecordFetchPage("lms", "enrollments", len(page), elapsed)
	metrics.RecordSyncRun("courses", "incremental", "completed", elapsed)
	metrics.RecordDBQuery("INSERT", "enrollments", elapsed, err)

Metric families:

  - duckdb_*: query durations, error counts and pool size
  - fetch_*: upstream pagination progress, 429 pressure and abandoned fetches
  - sync_*: per-entity run outcomes, record counts, batch sizes and cursors
  - rollup_*: partner aggregate rebuild durations and row counts
  - scheduler_*: dispatches, rejected triggers, stale-run recovery and
    duplicate-record pruning
  - api_*: trigger/health surface request metrics
  - circuit_breaker_*: upstream breaker state and transitions

All helpers are safe for concurrent use.
*/
package metrics
