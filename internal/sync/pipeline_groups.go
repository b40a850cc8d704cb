// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package sync

import (
	"context"
	"fmt"

	"github.com/credsync/credsync/internal/logging"
	"github.com/credsync/credsync/internal/models"
	"github.com/credsync/credsync/internal/models/lms"
)

// groupsPipeline mirrors LMS groups and resolves each group's CRM account
// reference to a local partner through the canonical-key index. Groups whose
// reference cannot be resolved are stored unattributed and reported.
type groupsPipeline struct {
	engine *Engine
}

func (p *groupsPipeline) entity() models.EntityType { return models.EntityGroups }

func (p *groupsPipeline) run(ctx context.Context, rc *runContext) error {
	index, err := NewPartnerIndexFromStore(ctx, p.engine.db)
	if err != nil {
		return fmt.Errorf("failed to load partner index: %w", err)
	}
	logging.Ctx(ctx).Debug().Int("partners", index.Len()).Msg("Loaded partner index for group attribution")

	pager := p.engine.lms.Groups(rc.since)
	return runPages(ctx, rc, pager, func(ctx context.Context, batch []lms.GroupRecord) (batchResult, error) {
		return p.processPage(ctx, rc, index, batch)
	})
}

func (p *groupsPipeline) processPage(ctx context.Context, rc *runContext, index *PartnerIndex, batch []lms.GroupRecord) (batchResult, error) {
	var result batchResult

	groups := make([]*models.Group, 0, len(batch))
	ids := make([]string, 0, len(batch))
	for i := range batch {
		rec := &batch[i]
		result.observe(rec.ModifiedAt)

		group := &models.Group{
			ID:         rec.ID,
			Name:       rec.Name,
			ModifiedAt: rec.ModifiedAt.UTC(),
		}
		if rec.CRMAccountID != "" {
			partnerID, ok, resolveErr := index.Resolve(rec.CRMAccountID)
			switch {
			case resolveErr != nil:
				rc.notFound.Add(rec.CRMAccountID)
				logging.Ctx(ctx).Warn().
					Str("group_id", rec.ID).
					Str("crm_account_id", rec.CRMAccountID).
					Err(resolveErr).
					Msg("Group CRM reference invalid, storing unattributed")
			case !ok:
				rc.notFound.Add(rec.CRMAccountID)
			default:
				group.PartnerID = &partnerID
			}
		}
		groups = append(groups, group)
		ids = append(ids, group.ID)
	}

	existing, err := p.engine.db.ExistingGroupIDs(ctx, ids)
	if err != nil {
		return result, fmt.Errorf("failed to probe existing groups: %w", err)
	}

	for _, group := range groups {
		if !rc.dryRun() {
			if upsertErr := p.engine.db.UpsertGroup(ctx, group); upsertErr != nil {
				if fatal := countRowError(ctx, &result, group.ID, upsertErr); fatal != nil {
					return result, fatal
				}
				continue
			}
		}
		if existing[group.ID] {
			result.stats.Updated++
		} else {
			result.stats.Inserted++
		}
	}
	return result, nil
}
