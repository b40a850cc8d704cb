// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

/*
Package models defines the data structures shared across Credsync.

It contains the store-side entities mirrored from the remote systems, the
control records that drive synchronization, and the result types returned by
the manual-trigger path. Remote wire formats live in the lms and prm
subpackages so store-side code never depends on upstream field naming.

Store-side entities:

  - Partner, Contact: PRM-owned organization and person records
  - LMSUser, Group, GroupMembership: LMS-owned person and team records
  - Course, Enrollment: LMS-owned catalog and transcript records
  - Lead: PRM-owned sales leads with partner attribution
  - PartnerRollup: derived per-partner aggregate cache row (rebuildable)

Control and result types:

  - EntityType: closed enum of sync pipelines
  - SyncRun, RunSummary: one record and one result per pipeline execution
  - TaskSchedule: per-entity interval, mode, and cursor state
  - UpsertStats: per-batch insert/update/skip accounting

All timestamps are UTC. External identifiers are opaque strings owned by the
remote systems; the only transformation applied locally is CRM identifier
canonicalization (18→15 characters), which happens in the sync package.
*/
package models
