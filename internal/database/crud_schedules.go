// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/credsync/credsync/internal/metrics"
	"github.com/credsync/credsync/internal/models"
)

const scheduleColumns = `entity_type, enabled, interval_seconds, mode,
	last_status, last_run_at, next_run_at, cursor_ts, updated_at`

// seedScheduleQuery inserts a schedule when absent. On conflict only the
// enabled flag follows the config defaults; interval, mode and cursor are
// owned by the store once seeded.
const seedScheduleQuery = `
	INSERT INTO sync_schedules (
		entity_type, enabled, interval_seconds, mode,
		last_status, last_run_at, next_run_at, cursor_ts, updated_at
	) VALUES (?, ?, ?, ?, NULL, NULL, NULL, NULL, ?)
	ON CONFLICT (entity_type) DO UPDATE SET
		enabled = excluded.enabled,
		updated_at = excluded.updated_at`

// SeedSchedules inserts the default schedule rows at startup. Returns the
// number of entity types seeded for the first time.
func (db *DB) SeedSchedules(ctx context.Context, schedules []models.TaskSchedule) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	keys := make([]string, len(schedules))
	for i, s := range schedules {
		keys[i] = string(s.EntityType)
	}
	existing, err := db.existingIDs(ctx, "sync_schedules", "entity_type", keys)
	if err != nil {
		return 0, err
	}

	seeded := 0
	for _, s := range schedules {
		start := time.Now()
		_, err := db.conn.ExecContext(ctx, seedScheduleQuery,
			string(s.EntityType), s.Enabled, s.Interval, string(s.Mode), s.UpdatedAt,
		)
		metrics.RecordDBQuery("upsert", "sync_schedules", time.Since(start), err)
		if err != nil {
			return seeded, fmt.Errorf("failed to seed schedule %s: %w", s.EntityType, err)
		}
		if !existing[string(s.EntityType)] {
			seeded++
		}
	}

	return seeded, nil
}

// GetSchedule returns the schedule for one entity type, or ErrNotFound.
func (db *DB) GetSchedule(ctx context.Context, entity models.EntityType) (*models.TaskSchedule, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := fmt.Sprintf("SELECT %s FROM sync_schedules WHERE entity_type = ?", scheduleColumns)
	schedule, err := scanSchedule(db.conn.QueryRowContext(ctx, query, string(entity)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return schedule, nil
}

// ListSchedules returns every schedule row in entity-type order.
func (db *DB) ListSchedules(ctx context.Context) ([]*models.TaskSchedule, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := fmt.Sprintf("SELECT %s FROM sync_schedules ORDER BY entity_type", scheduleColumns)
	schedules, err := queryAndScan(ctx, db.conn, query, nil,
		func(rows *sql.Rows) (*models.TaskSchedule, error) {
			return scanSchedule(rows)
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	return schedules, nil
}

// DueSchedules returns the enabled schedules whose next run is at or before
// the given instant. A schedule that has never run is due immediately.
func (db *DB) DueSchedules(ctx context.Context, now time.Time) ([]*models.TaskSchedule, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := fmt.Sprintf(
		"SELECT %s FROM sync_schedules WHERE enabled AND (next_run_at IS NULL OR next_run_at <= ?) ORDER BY entity_type",
		scheduleColumns)
	schedules, err := queryAndScan(ctx, db.conn, query, []interface{}{now},
		func(rows *sql.Rows) (*models.TaskSchedule, error) {
			return scanSchedule(rows)
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list due schedules: %w", err)
	}
	return schedules, nil
}

// UpdateScheduleRun records a finished run's outcome on the schedule and
// plans the next trigger.
func (db *DB) UpdateScheduleRun(ctx context.Context, entity models.EntityType, lastStatus models.RunStatus, lastRunAt, nextRunAt, now time.Time) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	_, err := db.conn.ExecContext(ctx,
		`UPDATE sync_schedules
		 SET last_status = ?, last_run_at = ?, next_run_at = ?, updated_at = ?
		 WHERE entity_type = ?`,
		string(lastStatus), lastRunAt, nextRunAt, now, string(entity),
	)
	metrics.RecordDBQuery("update", "sync_schedules", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to update schedule %s: %w", entity, err)
	}
	return nil
}

// SetScheduleStatus overwrites only the last-status field. The recovery
// sweep uses it to fail the schedule of a stale run without disturbing the
// planned next trigger.
func (db *DB) SetScheduleStatus(ctx context.Context, entity models.EntityType, status models.RunStatus, now time.Time) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	_, err := db.conn.ExecContext(ctx,
		`UPDATE sync_schedules SET last_status = ?, updated_at = ? WHERE entity_type = ?`,
		string(status), now, string(entity),
	)
	metrics.RecordDBQuery("update", "sync_schedules", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to set schedule status %s: %w", entity, err)
	}
	return nil
}

const advanceCursorQuery = `
	UPDATE sync_schedules
	SET cursor_ts = CASE
		WHEN cursor_ts IS NULL OR cursor_ts < ? THEN ?
		ELSE cursor_ts
	END, updated_at = ?
	WHERE entity_type = ?`

// AdvanceCursor moves the incremental cursor forward, never backwards. The
// monotonic guard lives in the statement so concurrent or replayed calls
// cannot regress the cursor. Called only after the corresponding batch is
// durably upserted.
func (db *DB) AdvanceCursor(ctx context.Context, entity models.EntityType, cursor, now time.Time) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	stmt, err := db.getStmt(ctx, advanceCursorQuery)
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = stmt.ExecContext(ctx, cursor, cursor, now, string(entity))
	metrics.RecordDBQuery("update", "sync_schedules", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to advance cursor %s: %w", entity, err)
	}
	return nil
}

// scanSchedule scans one sync_schedules row.
func scanSchedule(row rowScanner) (*models.TaskSchedule, error) {
	var s models.TaskSchedule
	var entityType, mode string
	var lastStatus sql.NullString
	var lastRunAt, nextRunAt, cursor sql.NullTime

	err := row.Scan(
		&entityType, &s.Enabled, &s.Interval, &mode,
		&lastStatus, &lastRunAt, &nextRunAt, &cursor, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.EntityType = models.EntityType(entityType)
	s.Mode = models.SyncMode(mode)
	s.LastStatus = models.RunStatus(stringVal(lastStatus))
	s.LastRunAt = timePtr(lastRunAt)
	s.NextRunAt = timePtr(nextRunAt)
	s.Cursor = timePtr(cursor)
	return &s, nil
}
