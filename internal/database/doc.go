// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

// Package database is the local relational store for synced entities, the
// rollup cache and sync bookkeeping.
//
// # Overview
//
// The store is a single DuckDB file that serves as the canonical read model
// for partner training data. Everything in it is rebuildable from the remote
// systems of record: entity tables mirror the LMS and PRM, partner_rollups
// is derived from them, and sync_runs/sync_schedules record how the mirror
// was produced.
//
// # Architecture
//
// The package is organized by concern:
//
// Core operations:
//   - database.go: connection lifecycle, pool configuration, statement cache
//   - database_schema.go: table creation and index management
//   - migrations.go: versioned migrations applied after the base schema
//   - query_helpers.go: probe, scan and counting helpers
//   - errors.go: close helpers and store error classification
//
// Entity writes and reads, one file per entity:
//   - crud_partners.go, crud_contacts.go, crud_users.go, crud_courses.go,
//     crud_enrollments.go, crud_groups.go, crud_leads.go
//
// Derived state and bookkeeping:
//   - crud_rollups.go: transactional full-replace rebuild of partner_rollups
//   - crud_runs.go: run lifecycle incl. the one-running-run-per-entity guard
//   - crud_schedules.go: schedule seeding, due queries, cursor advancement
//
// # Write Semantics
//
// All entity writes are idempotent upserts keyed by external id. Tables free
// of foreign-key constraints upsert with INSERT ... ON CONFLICT; the four
// tables participating in FK constraints (partners, contacts, courses,
// enrollments) use an explicit insert-or-update branch driven by a batch
// existence probe, because DuckDB's ON CONFLICT cannot safely target tables
// with foreign keys. The probe result doubles as the created/updated count
// source for run reporting.
//
// Writes are per-row with no transaction spanning pipeline steps; a partial
// batch leaves the store valid but incomplete, and re-running the sync
// converges it. The only multi-statement transactions are schema migrations
// and the rollup rebuild.
//
// # Database Technology
//
// DuckDB via the CGO driver (github.com/duckdb/duckdb-go/v2):
//   - OLAP-optimized, which fits the reporting read model and rollup SQL
//   - single-file storage with WAL, checkpointed on init and close
//   - in-process, so the sql.DB pool bounds statement parallelism rather
//     than network connections
package database
