// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

/*
database_schema.go - Database Schema Management

This file manages the DuckDB schema: table creation and index management.

Tables:
  - partners: PRM accounts keyed by external id, unique on canonical crm_key
  - contacts: PRM users scoped to a partner (FK), optionally linked to an LMS user
  - lms_users: LMS people, email stored lowercased
  - lms_groups: LMS teams, optionally linked to a partner via CRM reference
  - group_members: group/user membership pairs (composite key)
  - courses: LMS catalog incl. credit and certification properties
  - enrollments: LMS course enrollments (FK to courses)
  - leads: PRM sales leads, optionally linked to a partner
  - partner_rollups: derived per-partner aggregates, rebuilt by full replacement
  - sync_runs: one row per sync execution with outcome counters
  - sync_schedules: per-entity-type interval, mode, cursor, last status

The audit_events table is owned by internal/audit, which creates it during
startup alongside its own indexes.

Foreign keys are deliberately limited to enrollments→courses and
contacts→partners; every other cross-entity reference is nullable and
resolved in application code so a missing upstream row degrades to a
reported skip instead of a failed sync.

Schema Strategy:
All columns are defined in the initial CREATE TABLE statements. Incremental
changes after the first release go through versioned migrations in
migrations.go.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core database tables
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range db.getTableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}

	return nil
}

// getTableCreationQueries returns the table creation SQL statements
func (db *DB) getTableCreationQueries() []string {
	return []string{
		// Partners mirror PRM accounts. crm_key is the canonical 15-character
		// CRM identifier; crm_id_raw preserves whatever length the PRM sent.
		`CREATE TABLE IF NOT EXISTS partners (
			partner_id TEXT PRIMARY KEY,
			crm_key TEXT NOT NULL UNIQUE,
			crm_id_raw TEXT NOT NULL,
			name TEXT NOT NULL,
			tier TEXT,
			region TEXT,
			active BOOLEAN NOT NULL DEFAULT true,
			domains TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			deleted_at TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS contacts (
			contact_id TEXT PRIMARY KEY,
			partner_id TEXT NOT NULL REFERENCES partners(partner_id),
			lms_user_id TEXT,
			email TEXT NOT NULL,
			name TEXT NOT NULL,
			title TEXT,
			active BOOLEAN NOT NULL DEFAULT true,
			modified_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			deleted_at TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS lms_users (
			user_id TEXT PRIMARY KEY,
			email TEXT NOT NULL,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			modified_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,

		// partner_id is resolved from the group's CRM account reference and is
		// intentionally not a foreign key: unresolved references stay null.
		`CREATE TABLE IF NOT EXISTS lms_groups (
			group_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			partner_id TEXT,
			modified_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS group_members (
			group_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			modified_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (group_id, user_id)
		);`,

		`CREATE TABLE IF NOT EXISTS courses (
			course_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			code TEXT,
			credits DOUBLE NOT NULL DEFAULT 0,
			cert_category TEXT,
			is_certification BOOLEAN NOT NULL DEFAULT false,
			active BOOLEAN NOT NULL DEFAULT true,
			modified_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS enrollments (
			enrollment_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			course_id TEXT NOT NULL REFERENCES courses(course_id),
			status TEXT NOT NULL,
			progress_percent INTEGER NOT NULL DEFAULT 0,
			score DOUBLE,
			enrolled_at TIMESTAMP,
			started_at TIMESTAMP,
			completed_at TIMESTAMP,
			expires_at TIMESTAMP,
			modified_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS leads (
			lead_id TEXT PRIMARY KEY,
			partner_id TEXT,
			crm_key TEXT,
			name TEXT NOT NULL,
			email TEXT,
			company TEXT,
			status TEXT,
			source TEXT,
			created_at TIMESTAMP,
			modified_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,

		// Derived cache, rebuilt by full replacement inside one transaction.
		`CREATE TABLE IF NOT EXISTS partner_rollups (
			partner_id TEXT PRIMARY KEY,
			partner_name TEXT NOT NULL,
			active_credits DOUBLE NOT NULL DEFAULT 0,
			expired_credits DOUBLE NOT NULL DEFAULT 0,
			certification_count INTEGER NOT NULL DEFAULT 0,
			certified_users INTEGER NOT NULL DEFAULT 0,
			attribution TEXT NOT NULL,
			computed_at TIMESTAMP NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS sync_runs (
			run_id TEXT PRIMARY KEY,
			entity_type TEXT NOT NULL,
			mode TEXT NOT NULL,
			dry_run BOOLEAN NOT NULL DEFAULT false,
			status TEXT NOT NULL,
			processed INTEGER NOT NULL DEFAULT 0,
			created_count INTEGER NOT NULL DEFAULT 0,
			updated_count INTEGER NOT NULL DEFAULT 0,
			failed_count INTEGER NOT NULL DEFAULT 0,
			fk_skips INTEGER NOT NULL DEFAULT 0,
			not_found INTEGER NOT NULL DEFAULT 0,
			pages INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			triggered_by TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS sync_schedules (
			entity_type TEXT PRIMARY KEY,
			enabled BOOLEAN NOT NULL DEFAULT true,
			interval_seconds INTEGER NOT NULL,
			mode TEXT NOT NULL DEFAULT 'incremental',
			last_status TEXT,
			last_run_at TIMESTAMP,
			next_run_at TIMESTAMP,
			cursor_ts TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
	}
}

// createIndexes creates database indexes for query optimization
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range db.getIndexQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute index query: %s: %w", query, err)
		}
	}

	return nil
}

// getIndexQueries returns index creation SQL statements
func (db *DB) getIndexQueries() []string {
	return []string{
		// Identity resolution and email linking
		`CREATE INDEX IF NOT EXISTS idx_contacts_partner ON contacts(partner_id);`,
		`CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(email);`,
		`CREATE INDEX IF NOT EXISTS idx_contacts_lms_user ON contacts(lms_user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_lms_users_email ON lms_users(email);`,

		// Rollup joins
		`CREATE INDEX IF NOT EXISTS idx_enrollments_user ON enrollments(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_enrollments_course ON enrollments(course_id);`,
		`CREATE INDEX IF NOT EXISTS idx_enrollments_status ON enrollments(status);`,
		`CREATE INDEX IF NOT EXISTS idx_groups_partner ON lms_groups(partner_id);`,
		`CREATE INDEX IF NOT EXISTS idx_group_members_user ON group_members(user_id);`,

		// Lead reconciliation
		`CREATE INDEX IF NOT EXISTS idx_leads_partner ON leads(partner_id);`,
		`CREATE INDEX IF NOT EXISTS idx_leads_crm_key ON leads(crm_key);`,

		// Run history queries
		`CREATE INDEX IF NOT EXISTS idx_runs_entity_started ON sync_runs(entity_type, started_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_status ON sync_runs(status);`,
	}
}
