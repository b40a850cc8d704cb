// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package audit

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/credsync/credsync/internal/logging"
	"github.com/credsync/credsync/internal/models"
)

// Actors recorded on events not attributable to a trigger source.
const (
	ActorSystem     = "system"
	ActorSupervisor = "supervisor"
)

const recordTimeout = 5 * time.Second

// Recorder builds and persists audit events. All writes are best-effort: a
// failed audit write is logged and never fails the operation it describes.
// A nil Recorder is valid and records nothing.
type Recorder struct {
	store Store
}

// NewRecorder creates a Recorder backed by the given store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// SyncTriggered records an accepted pipeline trigger.
func (r *Recorder) SyncTriggered(ctx context.Context, entity models.EntityType, runID, actor string) {
	event := newEvent(EventSyncTriggered, OutcomeSuccess, actor)
	event.EntityType = entity
	event.RunID = runID
	r.record(ctx, event)
}

// SyncRejected records a trigger refused because a run of the same entity
// type was already in progress. These events survive the dedup sweep.
func (r *Recorder) SyncRejected(ctx context.Context, entity models.EntityType, actor string) {
	event := newEvent(EventSyncTriggered, OutcomeRejected, actor)
	event.EntityType = entity
	event.Details = marshalDetails(map[string]string{"reason": "run already in progress"})
	r.record(ctx, event)
}

type runDetails struct {
	Mode       string   `json:"mode"`
	DryRun     bool     `json:"dry_run,omitempty"`
	Processed  int      `json:"processed"`
	Created    int      `json:"created"`
	Updated    int      `json:"updated"`
	Failed     int      `json:"failed"`
	FKSkips    int      `json:"fk_skips"`
	Pages      int      `json:"pages"`
	DurationMS int64    `json:"duration_ms"`
	NotFound   []string `json:"not_found,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// SyncCompleted records a run reaching a terminal state. notFound carries the
// bounded list of unresolved canonical keys from reconciliation, if any.
func (r *Recorder) SyncCompleted(ctx context.Context, run *models.SyncRun, notFound []string) {
	outcome := OutcomeSuccess
	if run.Status != models.RunCompleted {
		outcome = OutcomeFailure
	}

	event := newEvent(EventSyncCompleted, outcome, run.TriggeredBy)
	event.EntityType = run.EntityType
	event.RunID = run.ID
	event.Details = marshalDetails(runDetails{
		Mode:       string(run.Mode),
		DryRun:     run.DryRun,
		Processed:  run.Processed,
		Created:    run.Created,
		Updated:    run.Updated,
		Failed:     run.Failed,
		FKSkips:    run.FKSkips,
		Pages:      run.Pages,
		DurationMS: run.Duration(time.Now().UTC()).Milliseconds(),
		NotFound:   notFound,
		Error:      run.Error,
	})
	r.record(ctx, event)
}

// SyncStale records a run reclaimed by the recovery sweep.
func (r *Recorder) SyncStale(ctx context.Context, run *models.SyncRun) {
	event := newEvent(EventSyncStale, OutcomeFailure, ActorSupervisor)
	event.EntityType = run.EntityType
	event.RunID = run.ID
	event.Details = marshalDetails(map[string]interface{}{
		"started_at": run.StartedAt,
		"error":      run.Error,
	})
	r.record(ctx, event)
}

// RollupRebuilt records a full rebuild of the partner rollup cache.
func (r *Recorder) RollupRebuilt(ctx context.Context, attribution models.Attribution, partners int, duration time.Duration, actor string, err error) {
	outcome := OutcomeSuccess
	details := map[string]interface{}{
		"attribution": string(attribution),
		"partners":    partners,
		"duration_ms": duration.Milliseconds(),
	}
	if err != nil {
		outcome = OutcomeFailure
		details["error"] = err.Error()
	}

	event := newEvent(EventRollupRebuilt, outcome, actor)
	event.Details = marshalDetails(details)
	r.record(ctx, event)
}

// SchedulesSeeded records startup schedule seeding.
func (r *Recorder) SchedulesSeeded(ctx context.Context, seeded int) {
	event := newEvent(EventScheduleSeeded, OutcomeSuccess, ActorSystem)
	event.Details = marshalDetails(map[string]int{"seeded": seeded})
	r.record(ctx, event)
}

func newEvent(eventType EventType, outcome Outcome, actor string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Actor:     actor,
		Outcome:   outcome,
		CreatedAt: time.Now().UTC(),
	}
}

func marshalDetails(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Debug().Err(err).Msg("Failed to marshal audit details")
		return nil
	}
	return data
}

func (r *Recorder) record(ctx context.Context, event *Event) {
	if r == nil || r.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, recordTimeout)
	defer cancel()

	if err := r.store.Record(ctx, event); err != nil {
		logging.Error().Err(err).
			Str("event_type", string(event.Type)).
			Msg("Failed to record audit event")
	}
}
