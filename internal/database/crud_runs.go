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
	"strings"
	"time"

	"github.com/credsync/credsync/internal/metrics"
	"github.com/credsync/credsync/internal/models"
)

const (
	defaultRunListLimit = 50
	maxRunListLimit     = 500
)

const runColumns = `run_id, entity_type, mode, dry_run, status,
	processed, created_count, updated_count, failed_count, fk_skips, not_found,
	pages, error, triggered_by, started_at, finished_at`

// tryStartRunQuery inserts the run only when no run of the same entity type
// is currently running. The check and the insert are one statement, so the
// one-running-run-per-entity invariant holds across process restarts, not
// just within this process.
const tryStartRunQuery = `
	INSERT INTO sync_runs (
		run_id, entity_type, mode, dry_run, status,
		processed, created_count, updated_count, failed_count, fk_skips, not_found,
		pages, error, triggered_by, started_at, finished_at
	)
	SELECT ?, ?, ?, ?, 'running', 0, 0, 0, 0, 0, 0, 0, NULL, ?, ?, NULL
	WHERE NOT EXISTS (
		SELECT 1 FROM sync_runs WHERE entity_type = ? AND status = 'running'
	)`

// TryStartRun records the start of a run. Returns false when another run of
// the same entity type is already running; the caller rejects the trigger
// rather than queueing it.
func (db *DB) TryStartRun(ctx context.Context, run *models.SyncRun) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	result, err := db.conn.ExecContext(ctx, tryStartRunQuery,
		run.ID, string(run.EntityType), string(run.Mode), run.DryRun,
		run.TriggeredBy, run.StartedAt, string(run.EntityType),
	)
	metrics.RecordDBQuery("insert", "sync_runs", time.Since(start), err)
	if err != nil {
		return false, fmt.Errorf("failed to start run %s: %w", run.ID, err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read run insert count: %w", err)
	}
	return inserted == 1, nil
}

const updateRunProgressQuery = `
	UPDATE sync_runs
	SET processed = ?, created_count = ?, updated_count = ?, failed_count = ?,
		fk_skips = ?, not_found = ?, pages = ?
	WHERE run_id = ? AND status = 'running'`

// UpdateRunProgress persists the run counters mid-flight, once per page, so
// run history shows live progress.
func (db *DB) UpdateRunProgress(ctx context.Context, run *models.SyncRun) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	stmt, err := db.getStmt(ctx, updateRunProgressQuery)
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = stmt.ExecContext(ctx,
		run.Processed, run.Created, run.Updated, run.Failed,
		run.FKSkips, run.NotFound, run.Pages, run.ID,
	)
	metrics.RecordDBQuery("update", "sync_runs", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to update run progress %s: %w", run.ID, err)
	}

	return nil
}

const finishRunQuery = `
	UPDATE sync_runs
	SET status = ?, processed = ?, created_count = ?, updated_count = ?,
		failed_count = ?, fk_skips = ?, not_found = ?, pages = ?,
		error = ?, finished_at = ?
	WHERE run_id = ? AND status = 'running'`

// FinishRun records the terminal state of a run. The status guard keeps the
// transition exactly-once: a run the recovery sweep already marked stale
// cannot be finished again, and the call reports that instead of silently
// overwriting.
func (db *DB) FinishRun(ctx context.Context, run *models.SyncRun) error {
	if !run.Status.Terminal() {
		return fmt.Errorf("cannot finish run %s with non-terminal status %q", run.ID, run.Status)
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var errDetail interface{}
	if run.Error != "" {
		errDetail = run.Error
	}

	start := time.Now()
	result, err := db.conn.ExecContext(ctx, finishRunQuery,
		string(run.Status), run.Processed, run.Created, run.Updated,
		run.Failed, run.FKSkips, run.NotFound, run.Pages,
		errDetail, run.FinishedAt, run.ID,
	)
	metrics.RecordDBQuery("update", "sync_runs", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", run.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read finished run count: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s is no longer running; terminal state already recorded", run.ID)
	}

	return nil
}

// GetRun returns one run by id, or ErrNotFound.
func (db *DB) GetRun(ctx context.Context, id string) (*models.SyncRun, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := fmt.Sprintf("SELECT %s FROM sync_runs WHERE run_id = ?", runColumns)
	run, err := scanRun(db.conn.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ActiveRun returns the currently running run for an entity type, or
// ErrNotFound when none is running.
func (db *DB) ActiveRun(ctx context.Context, entity models.EntityType) (*models.SyncRun, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := fmt.Sprintf(
		"SELECT %s FROM sync_runs WHERE entity_type = ? AND status = 'running' LIMIT 1",
		runColumns)
	run, err := scanRun(db.conn.QueryRowContext(ctx, query, string(entity)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active run: %w", err)
	}
	return run, nil
}

// ListRuns returns run history matching the filter, newest first.
func (db *DB) ListRuns(ctx context.Context, filter models.RunFilter) ([]*models.SyncRun, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	conditions := make([]string, 0, 4)
	args := make([]interface{}, 0, 6)

	if filter.EntityType != "" {
		conditions = append(conditions, "entity_type = ?")
		args = append(args, string(filter.EntityType))
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Since != nil {
		conditions = append(conditions, "started_at >= ?")
		args = append(args, *filter.Since)
	}
	if filter.Until != nil {
		conditions = append(conditions, "started_at <= ?")
		args = append(args, *filter.Until)
	}

	query := fmt.Sprintf("SELECT %s FROM sync_runs", runColumns)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY started_at DESC, run_id DESC"

	limit := filter.Limit
	switch {
	case limit <= 0:
		limit = defaultRunListLimit
	case limit > maxRunListLimit:
		limit = maxRunListLimit
	}
	query += " LIMIT ?"
	args = append(args, limit)

	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	runs, err := queryAndScan(ctx, db.conn, query, args, func(rows *sql.Rows) (*models.SyncRun, error) {
		return scanRun(rows)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// MarkStaleRuns transitions every running run started before the cutoff to
// stale and returns them so the sweeper can fail their schedules and audit
// the reclaim. The status guard on the update keeps a run that finished
// between the select and the update untouched.
func (db *DB) MarkStaleRuns(ctx context.Context, cutoff, now time.Time) ([]*models.SyncRun, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := fmt.Sprintf(
		"SELECT %s FROM sync_runs WHERE status = 'running' AND started_at < ?",
		runColumns)
	candidates, err := queryAndScan(ctx, db.conn, query, []interface{}{cutoff},
		func(rows *sql.Rows) (*models.SyncRun, error) {
			return scanRun(rows)
		})
	if err != nil {
		return nil, fmt.Errorf("failed to find stale runs: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	const staleDetail = "run exceeded the staleness threshold and was reclaimed by the recovery sweep"

	marked := make([]*models.SyncRun, 0, len(candidates))
	for _, run := range candidates {
		start := time.Now()
		result, err := db.conn.ExecContext(ctx,
			`UPDATE sync_runs SET status = 'stale', error = ?, finished_at = ?
			 WHERE run_id = ? AND status = 'running'`,
			staleDetail, now, run.ID,
		)
		metrics.RecordDBQuery("update", "sync_runs", time.Since(start), err)
		if err != nil {
			return marked, fmt.Errorf("failed to mark run %s stale: %w", run.ID, err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return marked, fmt.Errorf("failed to read stale-marked count: %w", err)
		}
		if affected == 0 {
			continue
		}

		finished := now
		run.Status = models.RunStale
		run.Error = staleDetail
		run.FinishedAt = &finished
		marked = append(marked, run)
	}

	return marked, nil
}

// scanRun scans one sync_runs row.
func scanRun(row rowScanner) (*models.SyncRun, error) {
	var r models.SyncRun
	var entityType, mode, status string
	var errDetail sql.NullString
	var finishedAt sql.NullTime

	err := row.Scan(
		&r.ID, &entityType, &mode, &r.DryRun, &status,
		&r.Processed, &r.Created, &r.Updated, &r.Failed, &r.FKSkips, &r.NotFound,
		&r.Pages, &errDetail, &r.TriggeredBy, &r.StartedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}

	r.EntityType = models.EntityType(entityType)
	r.Mode = models.SyncMode(mode)
	r.Status = models.RunStatus(status)
	r.Error = stringVal(errDetail)
	r.FinishedAt = timePtr(finishedAt)
	return &r, nil
}
