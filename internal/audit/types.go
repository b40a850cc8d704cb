// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package audit

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/credsync/credsync/internal/models"
)

// EventType categorizes audit events.
type EventType string

const (
	// EventSyncTriggered records an attempt to start a pipeline run, whether
	// it was accepted or rejected. Accepted triggers duplicate the SyncRun row
	// they created and are removed again by the supervisor's dedup sweep;
	// rejected triggers have no run and are retained.
	EventSyncTriggered EventType = "sync.triggered"

	// EventSyncCompleted records a run reaching a terminal state, with the
	// run counters as details.
	EventSyncCompleted EventType = "sync.completed"

	// EventSyncStale records a run reclaimed by the recovery sweep.
	EventSyncStale EventType = "sync.stale"

	// EventRollupRebuilt records a full rebuild of the partner rollup cache.
	EventRollupRebuilt EventType = "rollup.rebuilt"

	// EventScheduleSeeded records startup schedule seeding.
	EventScheduleSeeded EventType = "schedule.seeded"
)

// Outcome indicates how the recorded action ended.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailure  Outcome = "failure"
	OutcomeRejected Outcome = "rejected"
)

// Event is one operational audit record. EntityType and RunID are empty for
// events not tied to a single pipeline, such as rollup rebuilds.
type Event struct {
	ID         string            `json:"id"`
	Type       EventType         `json:"type"`
	EntityType models.EntityType `json:"entity_type,omitempty"`
	RunID      string            `json:"run_id,omitempty"`
	Actor      string            `json:"actor"`
	Outcome    Outcome           `json:"outcome"`
	Details    json.RawMessage   `json:"details,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// QueryFilter selects audit events for listings.
type QueryFilter struct {
	Types      []EventType       `json:"types,omitempty"`
	EntityType models.EntityType `json:"entity_type,omitempty"`
	RunID      string            `json:"run_id,omitempty"`
	Outcome    Outcome           `json:"outcome,omitempty"`
	Since      *time.Time        `json:"since,omitempty"`
	Until      *time.Time        `json:"until,omitempty"`
	Limit      int               `json:"limit,omitempty"`
	Offset     int               `json:"offset,omitempty"`
}

// DefaultQueryFilter returns the filter used when a listing gives none.
func DefaultQueryFilter() QueryFilter {
	return QueryFilter{Limit: 100}
}
