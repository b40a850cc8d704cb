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

// membershipsPipeline mirrors LMS group membership pairs. Memberships
// referencing a group not present locally are counted as foreign-key skips;
// running the groups pass first keeps that count near zero.
type membershipsPipeline struct {
	engine *Engine
}

func (p *membershipsPipeline) entity() models.EntityType { return models.EntityGroupMemberships }

func (p *membershipsPipeline) run(ctx context.Context, rc *runContext) error {
	pager := p.engine.lms.GroupMembers(rc.since)
	return runPages(ctx, rc, pager, func(ctx context.Context, batch []lms.GroupMemberRecord) (batchResult, error) {
		return p.processPage(ctx, rc, batch)
	})
}

func (p *membershipsPipeline) processPage(ctx context.Context, rc *runContext, batch []lms.GroupMemberRecord) (batchResult, error) {
	var result batchResult

	groupIDs := make([]string, 0, len(batch))
	for i := range batch {
		groupIDs = append(groupIDs, batch[i].GroupID)
	}
	knownGroups, err := p.engine.db.ExistingGroupIDs(ctx, groupIDs)
	if err != nil {
		return result, fmt.Errorf("failed to probe membership groups: %w", err)
	}

	for i := range batch {
		rec := &batch[i]
		result.observe(rec.ModifiedAt)

		if !knownGroups[rec.GroupID] {
			result.skip(rec.ID)
			continue
		}

		// The pair is the natural key, so created/updated comes from a pair
		// probe rather than the record id.
		exists, probeErr := p.engine.db.HasGroupMembership(ctx, rec.GroupID, rec.UserID)
		if probeErr != nil {
			return result, fmt.Errorf("failed to probe membership %s/%s: %w", rec.GroupID, rec.UserID, probeErr)
		}

		if !rc.dryRun() {
			membership := &models.GroupMembership{
				GroupID:    rec.GroupID,
				UserID:     rec.UserID,
				ModifiedAt: rec.ModifiedAt.UTC(),
			}
			if upsertErr := p.engine.db.UpsertGroupMembership(ctx, membership); upsertErr != nil {
				if fatal := countRowError(ctx, &result, rec.ID, upsertErr); fatal != nil {
					return result, fatal
				}
				continue
			}
		}
		if exists {
			result.stats.Updated++
		} else {
			result.stats.Inserted++
		}
	}
	return result, nil
}
