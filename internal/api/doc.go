// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

// Package api serves the operational HTTP surface: health and readiness
// probes, Prometheus metrics, read endpoints for runs, schedules, rollups and
// audit events, and rate-limited POST triggers for manual syncs and rollup
// rebuilds.
//
// Trigger endpoints run synchronously on the request context; the response
// carries the full run summary, including failures. Concurrency control lives
// in the sync engine, so a trigger that loses the per-entity run slot gets a
// 409 rather than a queue.
package api
