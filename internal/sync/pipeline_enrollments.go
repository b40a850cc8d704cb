// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package sync

import (
	"context"
	"fmt"

	"github.com/credsync/credsync/internal/models"
	"github.com/credsync/credsync/internal/models/lms"
)

// enrollmentsPipeline mirrors the LMS transcript export. Only course
// enrollments are persisted; records for other resource types still move the
// cursor so they are not refetched forever.
type enrollmentsPipeline struct {
	engine *Engine
}

func (p *enrollmentsPipeline) entity() models.EntityType { return models.EntityEnrollments }

func (p *enrollmentsPipeline) run(ctx context.Context, rc *runContext) error {
	pager := p.engine.lms.Enrollments(rc.since)
	return runPages(ctx, rc, pager, func(ctx context.Context, batch []lms.EnrollmentRecord) (batchResult, error) {
		return p.processPage(ctx, rc, batch)
	})
}

func (p *enrollmentsPipeline) processPage(ctx context.Context, rc *runContext, batch []lms.EnrollmentRecord) (batchResult, error) {
	var result batchResult

	enrollments := make([]*models.Enrollment, 0, len(batch))
	ids := make([]string, 0, len(batch))
	courseIDs := make([]string, 0, len(batch))
	for i := range batch {
		rec := &batch[i]
		result.observe(rec.ModifiedAt)

		enrollment, ok := transformEnrollment(rec)
		if !ok {
			continue
		}
		enrollments = append(enrollments, enrollment)
		ids = append(ids, enrollment.ID)
		courseIDs = append(courseIDs, enrollment.CourseID)
	}

	knownCourses, err := p.engine.db.ExistingCourseIDs(ctx, courseIDs)
	if err != nil {
		return result, fmt.Errorf("failed to probe enrollment courses: %w", err)
	}
	existing, err := p.engine.db.ExistingEnrollmentIDs(ctx, ids)
	if err != nil {
		return result, fmt.Errorf("failed to probe existing enrollments: %w", err)
	}

	for _, enrollment := range enrollments {
		if !knownCourses[enrollment.CourseID] {
			result.skip(enrollment.ID)
			continue
		}
		created := !existing[enrollment.ID]
		if !rc.dryRun() {
			var upsertErr error
			if created {
				upsertErr = p.engine.db.InsertEnrollment(ctx, enrollment)
			} else {
				upsertErr = p.engine.db.UpdateEnrollment(ctx, enrollment)
			}
			if upsertErr != nil {
				if fatal := countRowError(ctx, &result, enrollment.ID, upsertErr); fatal != nil {
					return result, fatal
				}
				continue
			}
		}
		if created {
			result.stats.Inserted++
		} else {
			result.stats.Updated++
		}
	}
	return result, nil
}

// transformEnrollment maps a transcript record to an enrollment row. The
// second return is false for resource types other than course; callers
// discard those records after observing their modification time.
func transformEnrollment(rec *lms.EnrollmentRecord) (*models.Enrollment, bool) {
	if rec.ResourceType != lms.ResourceTypeCourse {
		return nil, false
	}
	status := enrollmentStatus(rec.ProgressStatus)
	return &models.Enrollment{
		ID:              rec.ID,
		UserID:          rec.UserID,
		CourseID:        rec.ResourceID,
		Status:          status,
		ProgressPercent: progressPercent(rec.ProgressPercent, status),
		Score:           rec.Score,
		EnrolledAt:      rec.EnrolledAt,
		StartedAt:       rec.StartedAt,
		CompletedAt:     rec.CompletedAt,
		ExpiresAt:       rec.ExpiresAt,
		ModifiedAt:      rec.ModifiedAt.UTC(),
	}, true
}

// enrollmentStatus folds upstream progress strings into the local status
// set. Unknown values mean the user has at least been enrolled.
func enrollmentStatus(progress string) models.EnrollmentStatus {
	switch progress {
	case "completed":
		return models.EnrollmentCompleted
	case "in_progress":
		return models.EnrollmentInProgress
	default:
		return models.EnrollmentEnrolled
	}
}

// progressPercent prefers the explicit upstream value, including zero, and
// otherwise derives a coarse percentage from status.
func progressPercent(explicit *int, status models.EnrollmentStatus) int {
	if explicit != nil {
		return *explicit
	}
	switch status {
	case models.EnrollmentCompleted:
		return 100
	case models.EnrollmentInProgress:
		return 50
	default:
		return 0
	}
}
