// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package lms

import "time"

// ResourceTypeCourse is the only transcript resource type the enrollments
// pipeline persists; every other resource type is discarded at transform.
const ResourceTypeCourse = "course"

// UserRecord is one element of the LMS /users collection.
type UserRecord struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Status     string    `json:"status"`
	ModifiedAt time.Time `json:"modified_at"`
}

// GroupRecord is one element of the LMS /groups collection. CRMAccountID is
// the group's CRM account reference (15 or 18 characters) when the team is
// tied to a partner organization; empty otherwise.
type GroupRecord struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CRMAccountID string    `json:"crm_account_id,omitempty"`
	ModifiedAt   time.Time `json:"modified_at"`
}

// GroupMemberRecord is one element of the LMS /group-members collection.
type GroupMemberRecord struct {
	ID         string    `json:"id"`
	GroupID    string    `json:"group_id"`
	UserID     string    `json:"user_id"`
	ModifiedAt time.Time `json:"modified_at"`
}

// CourseRecord is one element of the LMS /courses collection.
type CourseRecord struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Code       string    `json:"code,omitempty"`
	Active     bool      `json:"active"`
	ModifiedAt time.Time `json:"modified_at"`
}

// CoursePropertyRecord is one element of the LMS /course-properties
// collection: the flattened custom-field export carrying credit and
// certification metadata for a course.
type CoursePropertyRecord struct {
	ID           string    `json:"id"`
	CourseID     string    `json:"course_id"`
	CreditValue  float64   `json:"credit_value"`
	CertCategory string    `json:"certification_category,omitempty"`
	IsCert       bool      `json:"is_certification"`
	ModifiedAt   time.Time `json:"modified_at"`
}

// EnrollmentRecord is one element of the LMS /enrollments collection (the
// transcript export). ProgressPercent is a pointer so an explicit upstream
// value, including zero, can be distinguished from an absent one.
type EnrollmentRecord struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	ResourceType    string     `json:"resource_type"`
	ResourceID      string     `json:"resource_id"`
	ProgressStatus  string     `json:"progress_status"`
	ProgressPercent *int       `json:"progress_percent,omitempty"`
	Score           *float64   `json:"score,omitempty"`
	EnrolledAt      *time.Time `json:"enrolled_at,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	ModifiedAt      time.Time  `json:"modified_at"`
}
