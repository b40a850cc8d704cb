// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package models

import "time"

// EnrollmentStatus is the stored lifecycle state of an enrollment.
// Expiry is not a stored status: an enrollment is expired-equivalent when
// ExpiresAt is set and in the past, derived at query time.
type EnrollmentStatus string

const (
	EnrollmentEnrolled   EnrollmentStatus = "enrolled"
	EnrollmentInProgress EnrollmentStatus = "in_progress"
	EnrollmentCompleted  EnrollmentStatus = "completed"
)

// Enrollment joins an LMS user and a Course, keyed by the remote transcript
// entry id. Upserts merge by that external id and never insert a duplicate;
// UserID and CourseID are identity fields and immutable once set. CourseID is
// a foreign key into courses and expected to occasionally fail per-record when
// the catalog arrives out of order.
type Enrollment struct {
	ID              string           `json:"id" db:"enrollment_id"`
	UserID          string           `json:"user_id" db:"user_id"`
	CourseID        string           `json:"course_id" db:"course_id"`
	Status          EnrollmentStatus `json:"status" db:"status"`
	ProgressPercent int              `json:"progress_percent" db:"progress_percent"`
	Score           *float64         `json:"score,omitempty" db:"score"`
	EnrolledAt      *time.Time       `json:"enrolled_at,omitempty" db:"enrolled_at"`
	StartedAt       *time.Time       `json:"started_at,omitempty" db:"started_at"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty" db:"completed_at"`
	ExpiresAt       *time.Time       `json:"expires_at,omitempty" db:"expires_at"`
	ModifiedAt      time.Time        `json:"modified_at" db:"modified_at"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at" db:"updated_at"`
}

// Expired reports whether the enrollment is expired-equivalent at the given
// reference time.
func (e *Enrollment) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && e.ExpiresAt.Before(now)
}
