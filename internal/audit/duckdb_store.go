// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/credsync/credsync/internal/logging"
	"github.com/credsync/credsync/internal/models"
)

// DuckDBStore implements Store on the shared DuckDB connection. Events land
// in the same database file as the entities they describe, so the dedup sweep
// can correlate trigger events against sync_runs in SQL.
type DuckDBStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewDuckDBStore creates a DuckDB-backed audit store. Call CreateTable before
// first use.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// CreateTable creates the audit_events table and its indexes if absent.
// Called during database initialization; the audit store owns this DDL.
func (s *DuckDBStore) CreateTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS audit_events (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			entity_type TEXT,
			run_id TEXT,
			actor TEXT NOT NULL,
			outcome TEXT NOT NULL,
			details JSON,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_events(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_events(entity_type, type);
		CREATE INDEX IF NOT EXISTS idx_audit_run ON audit_events(run_id);
	`

	for _, stmt := range strings.Split(query, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute audit schema statement: %w", err)
		}
	}

	logging.Debug().Msg("Audit events table verified")
	return nil
}

const insertEventQuery = `
	INSERT INTO audit_events (
		id, type, entity_type, run_id, actor, outcome, details, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// Record persists one event.
func (s *DuckDBStore) Record(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var details interface{}
	if len(event.Details) > 0 {
		details = string(event.Details)
	}
	var entityType interface{}
	if event.EntityType != "" {
		entityType = string(event.EntityType)
	}
	var runID interface{}
	if event.RunID != "" {
		runID = event.RunID
	}

	_, err := s.db.ExecContext(ctx, insertEventQuery,
		event.ID, string(event.Type), entityType, runID,
		event.Actor, string(event.Outcome), details, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

const selectEventColumns = `
	SELECT id, type, entity_type, run_id, actor, outcome,
		CAST(details AS VARCHAR) AS details, created_at
	FROM audit_events`

// Get retrieves an event by ID.
func (s *DuckDBStore) Get(ctx context.Context, id string) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectEventColumns+" WHERE id = ?", id)
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit event: %w", err)
	}
	return event, nil
}

// List retrieves events matching the filter, newest first.
func (s *DuckDBStore) List(ctx context.Context, filter QueryFilter) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := buildEventQuery(filter, false)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			logging.Warn().Err(err).Msg("Failed to scan audit event row")
			continue
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit events: %w", err)
	}
	return events, nil
}

// Count returns the number of events matching the filter.
func (s *DuckDBStore) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := buildEventQuery(filter, true)

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit events: %w", err)
	}
	return count, nil
}

// pruneDuplicatesQuery removes sync.triggered events whose creation time
// falls within the window of a recorded run of the same entity type. The run
// row is the retained record of that logical event; the trigger rows that
// survive are the ones with no run, such as rejected triggers.
const pruneDuplicatesQuery = `
	DELETE FROM audit_events
	WHERE type = 'sync.triggered'
	AND EXISTS (
		SELECT 1 FROM sync_runs r
		WHERE r.entity_type = audit_events.entity_type
		AND abs(date_diff('second', r.started_at, audit_events.created_at)) <= ?
	)`

// PruneDuplicates removes trigger events duplicating a recorded run of the
// same entity type within the window.
func (s *DuckDBStore) PruneDuplicates(ctx context.Context, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, pruneDuplicatesQuery, int64(window.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("failed to prune duplicate audit events: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read pruned count: %w", err)
	}
	if removed > 0 {
		logging.Debug().Int64("removed", removed).Msg("Pruned duplicate trigger events")
	}
	return removed, nil
}

// DeleteBefore removes events created before the given time.
func (s *DuckDBStore) DeleteBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM audit_events WHERE created_at < ?`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audit events: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read deleted count: %w", err)
	}
	if removed > 0 {
		logging.Info().Int64("deleted", removed).Time("older_than", olderThan).Msg("Deleted old audit events")
	}
	return removed, nil
}

// buildEventQuery constructs the SELECT or COUNT query for a filter.
func buildEventQuery(filter QueryFilter, countOnly bool) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if cond := buildSliceCondition("type", filter.Types, &args); cond != "" {
		conditions = append(conditions, cond)
	}
	if filter.EntityType != "" {
		conditions = append(conditions, "entity_type = ?")
		args = append(args, string(filter.EntityType))
	}
	if filter.RunID != "" {
		conditions = append(conditions, "run_id = ?")
		args = append(args, filter.RunID)
	}
	if filter.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, string(filter.Outcome))
	}
	if filter.Since != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, *filter.Since)
	}
	if filter.Until != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, *filter.Until)
	}

	query := selectEventColumns
	if countOnly {
		query = "SELECT COUNT(*) FROM audit_events"
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	if countOnly {
		return query, args
	}

	query += " ORDER BY created_at DESC, id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultQueryFilter().Limit
	}
	query += fmt.Sprintf(" LIMIT %d", limit)
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}
	return query, args
}

// buildSliceCondition creates a SQL IN condition for a slice of values.
func buildSliceCondition[T ~string](column string, values []T, args *[]interface{}) string {
	if len(values) == 0 {
		return ""
	}
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		*args = append(*args, string(v))
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ","))
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var e Event
	var eventType, outcome string
	var entityType, runID, details sql.NullString

	err := row.Scan(
		&e.ID, &eventType, &entityType, &runID,
		&e.Actor, &outcome, &details, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Type = EventType(eventType)
	e.Outcome = Outcome(outcome)
	e.EntityType = models.EntityType(entityType.String)
	e.RunID = runID.String
	if details.Valid && details.String != "" {
		e.Details = json.RawMessage(details.String)
	}
	return &e, nil
}
