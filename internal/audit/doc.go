// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

// Package audit provides the operational audit trail for sync activity.
//
// Every trigger, terminal run state, stale-run reclaim, rollup rebuild and
// schedule seeding is recorded as a typed event next to the data it
// describes, in the same DuckDB file, so operational history survives
// restarts and can be joined against run rows in SQL.
//
// # Event Types
//
//   - sync.triggered: an attempt to start a pipeline run (accepted or
//     rejected)
//   - sync.completed: a run reaching a terminal state, with run counters as
//     details
//   - sync.stale: a run reclaimed by the recovery sweep
//   - rollup.rebuilt: a full rebuild of the partner rollup cache
//   - schedule.seeded: startup schedule seeding
//
// # Deduplication
//
// An accepted trigger writes both a SyncRun row and a sync.triggered event
// within milliseconds of each other; the two are the same logical event. The
// supervisor's periodic sweep calls PruneDuplicates to drop trigger events
// created within a short window of a run of the same entity type, keeping
// the SyncRun as the canonical record. Trigger events with no matching run,
// such as rejected triggers, survive the sweep.
//
// # Components
//
//   - Event, EventType, Outcome: typed event model (types.go)
//   - Store: persistence interface with in-memory implementation (store.go)
//   - DuckDBStore: durable store sharing the main database (duckdb_store.go)
//   - Recorder: best-effort event construction and writing (recorder.go)
//
// Recorder writes are best-effort: a failed audit write is logged and never
// fails the run, rebuild or sweep it describes.
package audit
