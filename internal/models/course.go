// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package models

import "time"

// Course is a learning-catalog item owned by the LMS. Credits may be zero;
// only completed enrollments in courses with a positive credit value count
// toward partner rollups. Credit value, certification category and the
// certification flag arrive through the course-properties sync, which merges
// them onto rows created by the courses sync.
type Course struct {
	ID           string    `json:"id" db:"course_id"`
	Name         string    `json:"name" db:"name"`
	Code         string    `json:"code,omitempty" db:"code"`
	Credits      float64   `json:"credits" db:"credits"`
	CertCategory string    `json:"cert_category,omitempty" db:"cert_category"`
	IsCert       bool      `json:"is_certification" db:"is_certification"`
	Active       bool      `json:"active" db:"active"`
	ModifiedAt   time.Time `json:"modified_at" db:"modified_at"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// CourseProperties carries the property values merged onto an existing Course
// by the course-properties pipeline. Properties referencing a course id not
// present locally are counted as foreign-key skips.
type CourseProperties struct {
	CourseID     string    `json:"course_id" db:"course_id"`
	Credits      float64   `json:"credits" db:"credits"`
	CertCategory string    `json:"cert_category" db:"cert_category"`
	IsCert       bool      `json:"is_certification" db:"is_certification"`
	ModifiedAt   time.Time `json:"modified_at" db:"modified_at"`
}
