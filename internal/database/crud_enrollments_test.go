// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package database

import (
	"context"
	"testing"
	"time"

	"github.com/credsync/credsync/internal/models"
)

func insertTestEnrollment(t *testing.T, db *DB, id, userID, courseID string, status models.EnrollmentStatus) *models.Enrollment {
	t.Helper()

	now := testTime()
	e := &models.Enrollment{
		ID:         id,
		UserID:     userID,
		CourseID:   courseID,
		Status:     status,
		ModifiedAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if status == models.EnrollmentCompleted {
		completed := now.Add(-24 * time.Hour)
		e.CompletedAt = &completed
		e.ProgressPercent = 100
	}
	if err := db.InsertEnrollment(context.Background(), e); err != nil {
		t.Fatalf("InsertEnrollment(%s) failed: %v", id, err)
	}
	return e
}

func TestEnrollmentUpdateMergesByExternalID(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	insertTestCourse(t, db, "c-1", "Foundations", 5)
	e := insertTestEnrollment(t, db, "e-1", "u-1", "c-1", models.EnrollmentInProgress)

	score := 92.5
	completed := testTime().Add(2 * time.Hour)
	e.Status = models.EnrollmentCompleted
	e.ProgressPercent = 100
	e.Score = &score
	e.CompletedAt = &completed
	e.ModifiedAt = completed
	if err := db.UpdateEnrollment(ctx, e); err != nil {
		t.Fatalf("UpdateEnrollment failed: %v", err)
	}

	got, err := db.GetEnrollment(ctx, "e-1")
	if err != nil {
		t.Fatalf("GetEnrollment failed: %v", err)
	}
	if got.Status != models.EnrollmentCompleted || got.ProgressPercent != 100 {
		t.Errorf("status not merged: %+v", got)
	}
	if got.Score == nil || *got.Score != 92.5 {
		t.Errorf("score not merged: %v", got.Score)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(completed) {
		t.Errorf("completed_at not merged: %v", got.CompletedAt)
	}

	counts, err := db.TableCounts(ctx)
	if err != nil {
		t.Fatalf("TableCounts failed: %v", err)
	}
	if counts["enrollments"] != 1 {
		t.Errorf("expected 1 enrollment row after merge, got %d", counts["enrollments"])
	}
}

func TestInsertEnrollmentUnknownCourse(t *testing.T) {
	db := setupTestDB(t)

	now := testTime()
	e := &models.Enrollment{
		ID:         "e-orphan",
		UserID:     "u-1",
		CourseID:   "c-nope",
		Status:     models.EnrollmentEnrolled,
		ModifiedAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := db.InsertEnrollment(context.Background(), e)
	if err == nil {
		t.Fatal("expected foreign key violation for unknown course")
	}
	if !IsForeignKeyViolation(err) {
		t.Errorf("expected foreign key violation, got %v", err)
	}
}

func TestEnrollmentExpiredDerivation(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	insertTestCourse(t, db, "c-1", "Foundations", 5)
	e := insertTestEnrollment(t, db, "e-1", "u-1", "c-1", models.EnrollmentCompleted)

	expires := testTime().Add(-time.Hour)
	e.ExpiresAt = &expires
	if err := db.UpdateEnrollment(ctx, e); err != nil {
		t.Fatalf("UpdateEnrollment failed: %v", err)
	}

	got, err := db.GetEnrollment(ctx, "e-1")
	if err != nil {
		t.Fatalf("GetEnrollment failed: %v", err)
	}
	if !got.Expired(testTime()) {
		t.Error("enrollment with past expires_at should be expired-equivalent")
	}
	if got.Expired(testTime().Add(-2 * time.Hour)) {
		t.Error("enrollment should not be expired before its expires_at")
	}
}
