// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

/*
Package sync orchestrates data synchronization from the LMS and PRM upstreams
into the local store.

This package implements the core business logic of Credsync: fetching remote
collections page by page, transforming records into local rows, upserting them
idempotently, and recording every execution as a SyncRun. It provides manual
and scheduled triggers, incremental cursors, and circuit breaker protection
for fault tolerance.

Key Components:

  - Engine: Runs one pipeline per entity type with single-flight enforcement,
    cursor bookkeeping, and run accounting
  - LMSClient: HTTP client for the LMS reporting API (flat paginated
    collections, page/limit, modified_since)
  - PRMClient: HTTP client for the PRM object API (filter DSL, skip/take,
    enveloped responses)
  - Pager: Generic lazy page iterator shared by both clients
  - PartnerIndex: Canonical CRM-key identity resolution (15/18-char forms)
  - Circuit Breaker: Automatic failure detection and recovery per upstream
  - Rate Limiting: Fixed inter-request delay plus HTTP 429 backoff

Architecture:

Each pipeline follows the same fetch-transform-upsert shape:

 1. Fetch: one page per request through the shared Pager; 429 retries the
    same page, any other non-2xx abandons the fetch with partial counts
 2. Transform: remote records map to local models; referential misses become
    counted skips, identity misses go to the run's not-found list
 3. Upsert: per-row insert-or-update keyed by external id, created/updated
    counts derived from an existing-id probe per batch
 4. Record: progress persists after every page; the incremental cursor
    advances only over durably upserted batches, monotonically

Pipelines are resolved at startup from the closed models.EntityType enum.
Exactly one running SyncRun per entity type is enforced in the store, so the
invariant survives process restarts; a stale-run sweep (internal/scheduler)
reclaims runs abandoned by a crash.
*/
package sync
