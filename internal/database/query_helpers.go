// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows so a single scan
// function serves point lookups and list queries.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanFunc scans a single row into a result type
type scanFunc[T any] func(*sql.Rows) (T, error)

// queryAndScan executes a query and scans all rows using the provided scan function
func queryAndScan[T any](ctx context.Context, db *sql.DB, query string, args []interface{}, scan scanFunc[T]) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer closeWithLog(rows, "query rows")

	var results []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// placeholderList returns n comma-separated ? placeholders for IN clauses.
func placeholderList(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// existingIDs probes which of the given keys already exist in a table.
// Pipelines use the result to split a batch into inserts and updates and to
// derive created/updated counts. Table and column names come from package
// constants, never from caller input.
func (db *DB) existingIDs(ctx context.Context, table, column string, ids []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s)",
		column, table, column, placeholderList(len(ids)))

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to probe existing ids in %s: %w", table, err)
	}
	defer closeWithLog(rows, "existing id rows")

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan existing id: %w", err)
		}
		existing[id] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating existing ids: %w", err)
	}

	return existing, nil
}

// countedTables is the fixed set of tables reported by TableCounts.
var countedTables = []string{
	"partners",
	"contacts",
	"lms_users",
	"lms_groups",
	"group_members",
	"courses",
	"enrollments",
	"leads",
	"partner_rollups",
	"sync_runs",
}

// TableCounts returns the row count of every synced table, used by status
// reporting.
func (db *DB) TableCounts(ctx context.Context) (map[string]int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	counts := make(map[string]int64, len(countedTables))
	for _, table := range countedTables {
		var count int64
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
		if err := db.conn.QueryRowContext(ctx, query).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts[table] = count
	}

	return counts, nil
}

// timePtr converts a nullable scanned timestamp to a *time.Time.
func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// stringVal converts a nullable scanned string to its value or "".
func stringVal(s sql.NullString) string {
	if !s.Valid {
		return ""
	}
	return s.String
}

// stringPtr converts a nullable scanned string to a *string.
func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// floatPtr converts a nullable scanned float to a *float64.
func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
