// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/credsync/credsync/internal/logging"
	"github.com/credsync/credsync/internal/models"
	"github.com/credsync/credsync/internal/models/lms"
)

// usersPipeline mirrors the LMS user directory. After the pass it re-links
// contacts so a user created since the last partners run picks up its
// contact immediately instead of waiting for the next PRM pass.
type usersPipeline struct {
	engine *Engine
}

func (p *usersPipeline) entity() models.EntityType { return models.EntityUsers }

func (p *usersPipeline) run(ctx context.Context, rc *runContext) error {
	pager := p.engine.lms.Users(rc.since)
	err := runPages(ctx, rc, pager, func(ctx context.Context, batch []lms.UserRecord) (batchResult, error) {
		return p.processPage(ctx, rc, batch)
	})
	if err != nil {
		return err
	}

	if !rc.dryRun() {
		linked, linkErr := p.engine.db.LinkContactsToUsers(ctx, time.Now().UTC())
		if linkErr != nil {
			return fmt.Errorf("failed to link contacts to lms users: %w", linkErr)
		}
		if linked > 0 {
			logging.Ctx(ctx).Info().Int64("linked", linked).Msg("Linked contacts to LMS users by email")
		}
	}
	return nil
}

func (p *usersPipeline) processPage(ctx context.Context, rc *runContext, batch []lms.UserRecord) (batchResult, error) {
	var result batchResult

	users := make([]*models.LMSUser, 0, len(batch))
	ids := make([]string, 0, len(batch))
	for i := range batch {
		user := transformLMSUser(&batch[i])
		result.observe(user.ModifiedAt)
		users = append(users, user)
		ids = append(ids, user.ID)
	}

	existing, err := p.engine.db.ExistingLMSUserIDs(ctx, ids)
	if err != nil {
		return result, fmt.Errorf("failed to probe existing users: %w", err)
	}

	for _, user := range users {
		if !rc.dryRun() {
			if upsertErr := p.engine.db.UpsertLMSUser(ctx, user); upsertErr != nil {
				if fatal := countRowError(ctx, &result, user.ID, upsertErr); fatal != nil {
					return result, fatal
				}
				continue
			}
		}
		if existing[user.ID] {
			result.stats.Updated++
		} else {
			result.stats.Inserted++
		}
	}
	return result, nil
}

// transformLMSUser maps an LMS user record to its local row. The status
// string is carried verbatim; only UserStatusActive has local meaning.
func transformLMSUser(rec *lms.UserRecord) *models.LMSUser {
	return &models.LMSUser{
		ID:         rec.ID,
		Email:      normalizeEmail(rec.Email),
		Name:       joinName(rec.FirstName, rec.LastName),
		Status:     rec.Status,
		ModifiedAt: rec.ModifiedAt.UTC(),
	}
}
