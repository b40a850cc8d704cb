// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/credsync/credsync/internal/database"
	"github.com/credsync/credsync/internal/models"
	"github.com/credsync/credsync/internal/models/lms"
)

// coursesPipeline mirrors the LMS course catalog. Credit and certification
// metadata lives in the separate course-properties collection; inserts here
// leave those columns at their zero values until a properties pass merges
// them in.
type coursesPipeline struct {
	engine *Engine
}

func (p *coursesPipeline) entity() models.EntityType { return models.EntityCourses }

func (p *coursesPipeline) run(ctx context.Context, rc *runContext) error {
	pager := p.engine.lms.Courses(rc.since)
	return runPages(ctx, rc, pager, func(ctx context.Context, batch []lms.CourseRecord) (batchResult, error) {
		return p.processPage(ctx, rc, batch)
	})
}

func (p *coursesPipeline) processPage(ctx context.Context, rc *runContext, batch []lms.CourseRecord) (batchResult, error) {
	var result batchResult

	courses := make([]*models.Course, 0, len(batch))
	ids := make([]string, 0, len(batch))
	for i := range batch {
		rec := &batch[i]
		result.observe(rec.ModifiedAt)
		courses = append(courses, &models.Course{
			ID:         rec.ID,
			Name:       rec.Name,
			Code:       rec.Code,
			Active:     rec.Active,
			ModifiedAt: rec.ModifiedAt.UTC(),
		})
		ids = append(ids, rec.ID)
	}

	existing, err := p.engine.db.ExistingCourseIDs(ctx, ids)
	if err != nil {
		return result, fmt.Errorf("failed to probe existing courses: %w", err)
	}

	for _, course := range courses {
		created := !existing[course.ID]
		if !rc.dryRun() {
			var upsertErr error
			if created {
				upsertErr = p.engine.db.InsertCourse(ctx, course)
			} else {
				// UpdateCourse leaves credits and certification columns
				// untouched; they belong to the properties pass.
				upsertErr = p.engine.db.UpdateCourse(ctx, course)
			}
			if upsertErr != nil {
				if fatal := countRowError(ctx, &result, course.ID, upsertErr); fatal != nil {
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

// coursePropertiesPipeline merges the flattened custom-field export onto
// existing courses. Properties for unknown courses are foreign-key skips;
// nothing is ever created here, so the pass only reports updates.
type coursePropertiesPipeline struct {
	engine *Engine
}

func (p *coursePropertiesPipeline) entity() models.EntityType { return models.EntityCourseProperties }

func (p *coursePropertiesPipeline) run(ctx context.Context, rc *runContext) error {
	pager := p.engine.lms.CourseProperties(rc.since)
	return runPages(ctx, rc, pager, func(ctx context.Context, batch []lms.CoursePropertyRecord) (batchResult, error) {
		return p.processPage(ctx, rc, batch)
	})
}

func (p *coursePropertiesPipeline) processPage(ctx context.Context, rc *runContext, batch []lms.CoursePropertyRecord) (batchResult, error) {
	var result batchResult

	courseIDs := make([]string, 0, len(batch))
	for i := range batch {
		courseIDs = append(courseIDs, batch[i].CourseID)
	}
	knownCourses, err := p.engine.db.ExistingCourseIDs(ctx, courseIDs)
	if err != nil {
		return result, fmt.Errorf("failed to probe property courses: %w", err)
	}

	now := time.Now().UTC()
	for i := range batch {
		rec := &batch[i]
		result.observe(rec.ModifiedAt)

		if !knownCourses[rec.CourseID] {
			result.skip(rec.ID)
			continue
		}

		if !rc.dryRun() {
			props := &models.CourseProperties{
				CourseID:     rec.CourseID,
				Credits:      rec.CreditValue,
				CertCategory: rec.CertCategory,
				IsCert:       rec.IsCert,
				ModifiedAt:   rec.ModifiedAt.UTC(),
			}
			if updateErr := p.engine.db.UpdateCourseProperties(ctx, props, now); updateErr != nil {
				// The course can disappear between probe and update.
				if errors.Is(updateErr, database.ErrNotFound) {
					result.skip(rec.ID)
					continue
				}
				if fatal := countRowError(ctx, &result, rec.ID, updateErr); fatal != nil {
					return result, fatal
				}
				continue
			}
		}
		result.stats.Updated++
	}
	return result, nil
}
