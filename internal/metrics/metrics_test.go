// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestRecordDBQuery tests database query metric recording
func TestRecordDBQuery(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		table     string
		duration  time.Duration
		err       error
	}{
		{
			name:      "successful SELECT query",
			operation: "SELECT",
			table:     "enrollments",
			duration:  10 * time.Millisecond,
			err:       nil,
		},
		{
			name:      "successful INSERT query",
			operation: "INSERT",
			table:     "partners",
			duration:  5 * time.Millisecond,
			err:       nil,
		},
		{
			name:      "failed query with short error",
			operation: "UPDATE",
			table:     "sync_schedules",
			duration:  100 * time.Millisecond,
			err:       errors.New("connection refused"),
		},
		{
			name:      "failed query with long error truncates to 50 chars",
			operation: "DELETE",
			table:     "audit_events",
			duration:  50 * time.Millisecond,
			err:       errors.New(strings.Repeat("x", 120)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Must not panic; histogram observation is verified by the delta tests below
			RecordDBQuery(tt.operation, tt.table, tt.duration, tt.err)
		})
	}
}

// TestRecordDBQueryErrorCounter verifies the error counter increments with a truncated label
func TestRecordDBQueryErrorCounter(t *testing.T) {
	longMsg := strings.Repeat("z", 80)
	truncated := longMsg[:50]

	before := testutil.ToFloat64(DBQueryErrors.WithLabelValues("SELECT", "courses", truncated))
	RecordDBQuery("SELECT", "courses", time.Millisecond, errors.New(longMsg))
	after := testutil.ToFloat64(DBQueryErrors.WithLabelValues("SELECT", "courses", truncated))

	if after != before+1 {
		t.Errorf("DBQueryErrors delta = %v, want 1", after-before)
	}
}

// TestRecordFetchPage verifies page and record counters advance together
func TestRecordFetchPage(t *testing.T) {
	pagesBefore := testutil.ToFloat64(FetchPages.WithLabelValues("lms", "users"))
	recordsBefore := testutil.ToFloat64(FetchRecords.WithLabelValues("lms", "users"))

	RecordFetchPage("lms", "users", 200, 40*time.Millisecond)
	RecordFetchPage("lms", "users", 37, 25*time.Millisecond)

	pagesAfter := testutil.ToFloat64(FetchPages.WithLabelValues("lms", "users"))
	recordsAfter := testutil.ToFloat64(FetchRecords.WithLabelValues("lms", "users"))

	if pagesAfter != pagesBefore+2 {
		t.Errorf("FetchPages delta = %v, want 2", pagesAfter-pagesBefore)
	}
	if recordsAfter != recordsBefore+237 {
		t.Errorf("FetchRecords delta = %v, want 237", recordsAfter-recordsBefore)
	}
}

// TestRecordRateLimited verifies 429 tracking
func TestRecordRateLimited(t *testing.T) {
	before := testutil.ToFloat64(FetchRateLimited.WithLabelValues("prm"))
	RecordRateLimited("prm")
	after := testutil.ToFloat64(FetchRateLimited.WithLabelValues("prm"))

	if after != before+1 {
		t.Errorf("FetchRateLimited delta = %v, want 1", after-before)
	}
}

// TestRecordSyncRun verifies run counters by status
func TestRecordSyncRun(t *testing.T) {
	tests := []struct {
		name   string
		entity string
		mode   string
		status string
	}{
		{"completed incremental run", "enrollments", "incremental", "completed"},
		{"completed full run", "partners", "full", "completed"},
		{"failed run", "leads", "incremental", "failed"},
		{"stale run", "courses", "full", "stale"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(SyncRuns.WithLabelValues(tt.entity, tt.status))
			RecordSyncRun(tt.entity, tt.mode, tt.status, 3*time.Second)
			after := testutil.ToFloat64(SyncRuns.WithLabelValues(tt.entity, tt.status))

			if after != before+1 {
				t.Errorf("SyncRuns delta = %v, want 1", after-before)
			}
		})
	}
}

// TestRecordSyncFailures verifies skip counting ignores non-positive counts
func TestRecordSyncFailures(t *testing.T) {
	before := testutil.ToFloat64(SyncRecordsFailed.WithLabelValues("enrollments", "missing_reference"))

	RecordSyncFailures("enrollments", "missing_reference", 3)
	RecordSyncFailures("enrollments", "missing_reference", 0)
	RecordSyncFailures("enrollments", "missing_reference", -1)

	after := testutil.ToFloat64(SyncRecordsFailed.WithLabelValues("enrollments", "missing_reference"))
	if after != before+3 {
		t.Errorf("SyncRecordsFailed delta = %v, want 3", after-before)
	}
}

// TestSetSyncCursor verifies cursor gauge publication
func TestSetSyncCursor(t *testing.T) {
	cursor := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	SetSyncCursor("groups", cursor)

	got := testutil.ToFloat64(SyncCursor.WithLabelValues("groups"))
	if got != float64(cursor.Unix()) {
		t.Errorf("SyncCursor = %v, want %v", got, float64(cursor.Unix()))
	}
}

// TestRecordRollupBuild verifies success and failure paths
func TestRecordRollupBuild(t *testing.T) {
	RecordRollupBuild(2*time.Second, 41, nil)
	if got := testutil.ToFloat64(RollupPartners); got != 41 {
		t.Errorf("RollupPartners = %v, want 41", got)
	}

	errsBefore := testutil.ToFloat64(RollupErrors)
	RecordRollupBuild(time.Second, 0, errors.New("rebuild failed"))
	errsAfter := testutil.ToFloat64(RollupErrors)

	if errsAfter != errsBefore+1 {
		t.Errorf("RollupErrors delta = %v, want 1", errsAfter-errsBefore)
	}
	// Partner gauge untouched by failed builds
	if got := testutil.ToFloat64(RollupPartners); got != 41 {
		t.Errorf("RollupPartners after failed build = %v, want 41", got)
	}
}

// TestRecordAPIRequest tests API request metric recording
func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/api/v1/sync/trigger", "202"))
	RecordAPIRequest("POST", "/api/v1/sync/trigger", "202", 12*time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/api/v1/sync/trigger", "202"))

	if after != before+1 {
		t.Errorf("APIRequestsTotal delta = %v, want 1", after-before)
	}
}

// TestCircuitBreakerMetrics verifies breaker state gauge and transition counter
func TestCircuitBreakerMetrics(t *testing.T) {
	SetCircuitBreakerState("lms", 2)
	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("lms")); got != 2 {
		t.Errorf("CircuitBreakerState = %v, want 2", got)
	}

	before := testutil.ToFloat64(CircuitBreakerTransitions.WithLabelValues("lms", "closed", "open"))
	RecordBreakerTransition("lms", "closed", "open")
	after := testutil.ToFloat64(CircuitBreakerTransitions.WithLabelValues("lms", "closed", "open"))

	if after != before+1 {
		t.Errorf("CircuitBreakerTransitions delta = %v, want 1", after-before)
	}
}

// TestSetBuildInfo verifies the build info gauge is set to 1
func TestSetBuildInfo(t *testing.T) {
	SetBuildInfo("1.2.3", "abcdef0")
	if got := testutil.ToFloat64(BuildInfo.WithLabelValues("1.2.3", "abcdef0")); got != 1 {
		t.Errorf("BuildInfo = %v, want 1", got)
	}
}
