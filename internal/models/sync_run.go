// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package models

import "time"

// RunStatus is the lifecycle state of a SyncRun. A run is created as
// RunRunning and transitions exactly once to a terminal state. The recovery
// sweep may force RunRunning→RunStale when a run outlives the staleness
// threshold; RunCancelled records a run interrupted by shutdown.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunStale     RunStatus = "stale"
	RunCancelled RunStatus = "cancelled"
)

// Terminal reports whether s is a terminal run status.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunStale || s == RunCancelled
}

// Valid reports whether s is a known run status.
func (s RunStatus) Valid() bool {
	return s == RunRunning || s.Terminal()
}

// Trigger sources recorded on SyncRun.TriggeredBy.
const (
	TriggerScheduler = "scheduler"
	TriggerCLI       = "cli"
	TriggerAPI       = "api"
)

// SyncRun records one pipeline execution. Every run produces exactly one
// terminal record; no silent failures.
type SyncRun struct {
	ID          string     `json:"id" db:"run_id"`
	EntityType  EntityType `json:"entity_type" db:"entity_type"`
	Mode        SyncMode   `json:"mode" db:"mode"`
	DryRun      bool       `json:"dry_run" db:"dry_run"`
	Status      RunStatus  `json:"status" db:"status"`
	Processed   int        `json:"processed" db:"processed"`
	Created     int        `json:"created" db:"created_count"`
	Updated     int        `json:"updated" db:"updated_count"`
	Failed      int        `json:"failed" db:"failed_count"`
	FKSkips     int        `json:"fk_skips" db:"fk_skips"`
	NotFound    int        `json:"not_found" db:"not_found"`
	Pages       int        `json:"pages" db:"pages"`
	Error       string     `json:"error,omitempty" db:"error"`
	TriggeredBy string     `json:"triggered_by" db:"triggered_by"`
	StartedAt   time.Time  `json:"started_at" db:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty" db:"finished_at"`
}

// Duration returns the run's wall-clock duration, or the elapsed time so far
// for a run that has not finished.
func (r *SyncRun) Duration(now time.Time) time.Duration {
	if r.FinishedAt != nil {
		return r.FinishedAt.Sub(r.StartedAt)
	}
	return now.Sub(r.StartedAt)
}

// RunSummary is the result of one pipeline execution, returned by the manual
// trigger path and recorded on the SyncRun row.
type RunSummary struct {
	RunID       string        `json:"run_id"`
	EntityType  EntityType    `json:"entity_type"`
	Mode        SyncMode      `json:"mode"`
	DryRun      bool          `json:"dry_run"`
	Status      RunStatus     `json:"status"`
	Processed   int           `json:"processed"`
	Created     int           `json:"created"`
	Updated     int           `json:"updated"`
	Failed      int           `json:"failed"`
	FKSkips     int           `json:"fk_skips"`
	Pages       int           `json:"pages"`
	NotFound    []string      `json:"not_found,omitempty"`
	Duration    time.Duration `json:"duration"`
	DurationMS  int64         `json:"duration_ms"`
	ErrorDetail string        `json:"error,omitempty"`
}

// UpsertStats aggregates the outcome of one batch of per-row upserts. Skipped
// counts rows rejected by a store-level foreign-key constraint; SkippedIDs
// retains a bounded sample for diagnostics.
type UpsertStats struct {
	Inserted   int
	Updated    int
	Skipped    int
	SkippedIDs []string
}

// Add folds another batch outcome into s.
func (s *UpsertStats) Add(other UpsertStats) {
	s.Inserted += other.Inserted
	s.Updated += other.Updated
	s.Skipped += other.Skipped
	s.SkippedIDs = append(s.SkippedIDs, other.SkippedIDs...)
}

// RunFilter selects SyncRun rows for history listings.
type RunFilter struct {
	EntityType EntityType `json:"entity_type,omitempty"`
	Status     RunStatus  `json:"status,omitempty"`
	Since      *time.Time `json:"since,omitempty"`
	Until      *time.Time `json:"until,omitempty"`
	Limit      int        `json:"limit,omitempty"`
	Offset     int        `json:"offset,omitempty"`
}
