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

// Enrollments carry the course_id foreign key, so writes use the explicit
// insert-or-update branch. enrollment_id, user_id and course_id are identity
// fields and immutable once set.

const insertEnrollmentQuery = `
	INSERT INTO enrollments (
		enrollment_id, user_id, course_id, status, progress_percent, score,
		enrolled_at, started_at, completed_at, expires_at,
		modified_at, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const updateEnrollmentQuery = `
	UPDATE enrollments
	SET status = ?, progress_percent = ?, score = ?,
		enrolled_at = ?, started_at = ?, completed_at = ?, expires_at = ?,
		modified_at = ?, updated_at = ?
	WHERE enrollment_id = ?`

// InsertEnrollment inserts a new enrollment row. Fails with a foreign-key
// violation when the referenced course does not exist.
func (db *DB) InsertEnrollment(ctx context.Context, e *models.Enrollment) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	stmt, err := db.getStmt(ctx, insertEnrollmentQuery)
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = stmt.ExecContext(ctx,
		e.ID, e.UserID, e.CourseID, string(e.Status), e.ProgressPercent, e.Score,
		e.EnrolledAt, e.StartedAt, e.CompletedAt, e.ExpiresAt,
		e.ModifiedAt, e.CreatedAt, e.UpdatedAt,
	)
	metrics.RecordDBQuery("insert", "enrollments", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to insert enrollment %s: %w", e.ID, err)
	}

	return nil
}

// UpdateEnrollment merges the mutable fields onto an existing enrollment row.
func (db *DB) UpdateEnrollment(ctx context.Context, e *models.Enrollment) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	stmt, err := db.getStmt(ctx, updateEnrollmentQuery)
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = stmt.ExecContext(ctx,
		string(e.Status), e.ProgressPercent, e.Score,
		e.EnrolledAt, e.StartedAt, e.CompletedAt, e.ExpiresAt,
		e.ModifiedAt, e.UpdatedAt, e.ID,
	)
	metrics.RecordDBQuery("update", "enrollments", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to update enrollment %s: %w", e.ID, err)
	}

	return nil
}

// GetEnrollment returns one enrollment by external id, or ErrNotFound.
func (db *DB) GetEnrollment(ctx context.Context, id string) (*models.Enrollment, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		SELECT enrollment_id, user_id, course_id, status, progress_percent, score,
			enrolled_at, started_at, completed_at, expires_at,
			modified_at, created_at, updated_at
		FROM enrollments
		WHERE enrollment_id = ?`

	var e models.Enrollment
	var status string
	var score sql.NullFloat64
	var enrolledAt, startedAt, completedAt, expiresAt sql.NullTime

	err := db.conn.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.UserID, &e.CourseID, &status, &e.ProgressPercent, &score,
		&enrolledAt, &startedAt, &completedAt, &expiresAt,
		&e.ModifiedAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}

	e.Status = models.EnrollmentStatus(status)
	e.Score = floatPtr(score)
	e.EnrolledAt = timePtr(enrolledAt)
	e.StartedAt = timePtr(startedAt)
	e.CompletedAt = timePtr(completedAt)
	e.ExpiresAt = timePtr(expiresAt)
	return &e, nil
}

// ExistingEnrollmentIDs reports which of the given enrollment ids exist.
func (db *DB) ExistingEnrollmentIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	return db.existingIDs(ctx, "enrollments", "enrollment_id", ids)
}
