// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package models

import "time"

// SyncMode selects how much of the remote collection a run fetches.
type SyncMode string

const (
	// ModeIncremental fetches only records modified strictly after the stored
	// cursor. The default for scheduled runs.
	ModeIncremental SyncMode = "incremental"

	// ModeFull fetches the entire remote collection. Used for initial
	// population and recovery; any repair is "run full, then rebuild".
	ModeFull SyncMode = "full"
)

// Valid reports whether m is a known sync mode.
func (m SyncMode) Valid() bool {
	return m == ModeIncremental || m == ModeFull
}

// TaskSchedule is the per-entity-type control record. Cursor holds the
// maximum remote last-modified timestamp that has been durably upserted; it
// only ever moves forward, and only after the corresponding batch is written.
type TaskSchedule struct {
	EntityType EntityType `json:"entity_type" db:"entity_type"`
	Enabled    bool       `json:"enabled" db:"enabled"`
	Interval   int        `json:"interval_seconds" db:"interval_seconds"`
	Mode       SyncMode   `json:"mode" db:"mode"`
	LastStatus RunStatus  `json:"last_status,omitempty" db:"last_status"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty" db:"last_run_at"`
	NextRunAt  *time.Time `json:"next_run_at,omitempty" db:"next_run_at"`
	Cursor     *time.Time `json:"cursor,omitempty" db:"cursor_ts"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// IntervalDuration returns the schedule interval as a time.Duration.
func (s *TaskSchedule) IntervalDuration() time.Duration {
	return time.Duration(s.Interval) * time.Second
}

// Due reports whether the schedule should trigger at the given instant.
// A schedule with no recorded next run is due immediately.
func (s *TaskSchedule) Due(now time.Time) bool {
	if !s.Enabled {
		return false
	}
	if s.NextRunAt == nil {
		return true
	}
	return !s.NextRunAt.After(now)
}
