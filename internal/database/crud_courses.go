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

// Courses are referenced by the enrollments foreign key, so writes use the
// explicit insert-or-update branch. The courses pipeline owns the catalog
// fields; credit and certification columns are owned by the course-properties
// pipeline and never touched by UpdateCourse.

const insertCourseQuery = `
	INSERT INTO courses (
		course_id, name, code, credits, cert_category, is_certification,
		active, modified_at, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const updateCourseQuery = `
	UPDATE courses
	SET name = ?, code = ?, active = ?, modified_at = ?, updated_at = ?
	WHERE course_id = ?`

const updateCoursePropertiesQuery = `
	UPDATE courses
	SET credits = ?, cert_category = ?, is_certification = ?, updated_at = ?
	WHERE course_id = ?`

// InsertCourse inserts a new course row. The course feed carries no credit
// data, so credits and certification fields start at their zero values until
// the course-properties sync merges real ones.
func (db *DB) InsertCourse(ctx context.Context, c *models.Course) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	stmt, err := db.getStmt(ctx, insertCourseQuery)
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = stmt.ExecContext(ctx,
		c.ID, c.Name, c.Code, c.Credits, c.CertCategory, c.IsCert,
		c.Active, c.ModifiedAt, c.CreatedAt, c.UpdatedAt,
	)
	metrics.RecordDBQuery("insert", "courses", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to insert course %s: %w", c.ID, err)
	}

	return nil
}

// UpdateCourse overwrites the catalog fields of an existing course row.
func (db *DB) UpdateCourse(ctx context.Context, c *models.Course) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	stmt, err := db.getStmt(ctx, updateCourseQuery)
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = stmt.ExecContext(ctx,
		c.Name, c.Code, c.Active, c.ModifiedAt, c.UpdatedAt, c.ID,
	)
	metrics.RecordDBQuery("update", "courses", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to update course %s: %w", c.ID, err)
	}

	return nil
}

// UpdateCourseProperties merges credit and certification values onto an
// existing course. Returns ErrNotFound when the course id is unknown; the
// course-properties pipeline counts that as a foreign-key skip.
func (db *DB) UpdateCourseProperties(ctx context.Context, p *models.CourseProperties, now time.Time) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	stmt, err := db.getStmt(ctx, updateCoursePropertiesQuery)
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := stmt.ExecContext(ctx,
		p.Credits, p.CertCategory, p.IsCert, now, p.CourseID,
	)
	metrics.RecordDBQuery("update", "courses", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to update course properties %s: %w", p.CourseID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected course rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("course %s: %w", p.CourseID, ErrNotFound)
	}

	return nil
}

// GetCourse returns one course by external id, or ErrNotFound.
func (db *DB) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		SELECT course_id, name, code, credits, cert_category, is_certification,
			active, modified_at, created_at, updated_at
		FROM courses
		WHERE course_id = ?`

	var c models.Course
	var code, certCategory sql.NullString

	err := db.conn.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Name, &code, &c.Credits, &certCategory, &c.IsCert,
		&c.Active, &c.ModifiedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}

	c.Code = stringVal(code)
	c.CertCategory = stringVal(certCategory)
	return &c, nil
}

// ExistingCourseIDs reports which of the given course ids exist. The
// enrollments and course-properties pipelines use it to pre-check the course
// reference before writing.
func (db *DB) ExistingCourseIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	return db.existingIDs(ctx, "courses", "course_id", ids)
}
