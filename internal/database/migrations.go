// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

/*
migrations.go - Versioned Schema Migrations

This file implements versioned schema migrations on top of the base schema
in database_schema.go. The base CREATE TABLE statements define the complete
current schema; migrations exist for changes shipped after a release, so a
database created by an older binary upgrades in place.

Each migration runs in its own transaction and is recorded in the
schema_migrations table. Migrations are applied in version order and are
never re-applied.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"fmt"
	"time"

	"github.com/credsync/credsync/internal/logging"
)

// Migration represents a single schema migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	description TEXT NOT NULL,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// getMigrations returns all schema migrations in version order.
//
// The list is empty because every column shipped so far is part of the
// initial CREATE TABLE statements. Additive changes after the first release
// belong here, for example:
//
//	{
//		Version:     1,
//		Description: "Add score_scale to enrollments",
//		SQL:         `ALTER TABLE enrollments ADD COLUMN IF NOT EXISTS score_scale TEXT;`,
//	}
func getMigrations() []Migration {
	return []Migration{}
}

// createMigrationsTable ensures the schema_migrations tracking table exists
func (db *DB) createMigrationsTable() error {
	ctx, cancel := schemaContext()
	defer cancel()

	if _, err := db.conn.ExecContext(ctx, schemaMigrationsTable); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	return nil
}

// getAppliedMigrations returns the set of migration versions already applied
func (db *DB) getAppliedMigrations() (map[int]bool, error) {
	ctx, cancel := schemaContext()
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer closeWithLog(rows, "migration rows")

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("migration rows iteration error: %w", err)
	}

	return applied, nil
}

// runVersionedMigrations applies any pending migrations in version order
func (db *DB) runVersionedMigrations() error {
	if err := db.createMigrationsTable(); err != nil {
		return err
	}

	applied, err := db.getAppliedMigrations()
	if err != nil {
		return err
	}

	for _, migration := range getMigrations() {
		if applied[migration.Version] {
			continue
		}

		if err := db.applyMigration(migration); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Description, err)
		}

		logging.Info().
			Int("version", migration.Version).
			Str("description", migration.Description).
			Msg("Applied schema migration")
	}

	return nil
}

// applyMigration runs a single migration inside a transaction
func (db *DB) applyMigration(migration Migration) error {
	ctx, cancel := schemaContext()
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)`,
		migration.Version, migration.Description, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	return nil
}

// GetCurrentSchemaVersion returns the highest applied migration version,
// or 0 when no migrations have been applied
func (db *DB) GetCurrentSchemaVersion() (int, error) {
	ctx, cancel := schemaContext()
	defer cancel()

	var version int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to query schema version: %w", err)
	}

	return version, nil
}

// MigrationRecord describes an applied migration for diagnostics
type MigrationRecord struct {
	Version     int
	Description string
	AppliedAt   time.Time
}

// GetMigrationHistory returns all applied migrations in version order
func (db *DB) GetMigrationHistory() ([]MigrationRecord, error) {
	ctx, cancel := schemaContext()
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT version, description, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query migration history: %w", err)
	}
	defer closeWithLog(rows, "migration history rows")

	var history []MigrationRecord
	for rows.Next() {
		var record MigrationRecord
		if err := rows.Scan(&record.Version, &record.Description, &record.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration record: %w", err)
		}
		history = append(history, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("migration history iteration error: %w", err)
	}

	return history, nil
}
