// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

// Package scheduler drives periodic sync runs and recovers abandoned ones.
//
// Two suture services share the package:
//
//   - Scheduler: seeds the sync_schedules table from config defaults at
//     startup, then polls it on a fixed tick and dispatches a pipeline run
//     for every due entity type. Each dispatch runs in its own goroutine so
//     a slow entity never delays the others; per-entity exclusivity is
//     enforced twice, by the scheduler's own in-flight set and by the run
//     slot in the store.
//
//   - Sweeper: on the same tick cadence, transitions runs stuck in the
//     running state past the staleness threshold to stale, fails their
//     schedules so the next tick can re-trigger them, and prunes audit
//     events that duplicate a recorded run.
//
// Both services treat per-tick errors as observations, not failures: they
// log, record metrics and wait for the next tick. Only context cancellation
// ends Serve.
package scheduler
