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
	"github.com/credsync/credsync/internal/models/prm"
)

// leadsPipeline mirrors PRM leads and attributes each to a local partner
// through its CRM account reference. Leads whose reference resolves to no
// partner are stored unattributed with the canonical key retained, so a
// later partners pass can pick them up via the rollup rebuild.
//
// The PRM does not guarantee lead ordering, so cursor advancement is
// deferred to run completion.
type leadsPipeline struct {
	engine *Engine
}

func (p *leadsPipeline) entity() models.EntityType { return models.EntityLeads }

func (p *leadsPipeline) run(ctx context.Context, rc *runContext) error {
	index, err := NewPartnerIndexFromStore(ctx, p.engine.db)
	if err != nil {
		return fmt.Errorf("failed to load partner index: %w", err)
	}
	logging.Ctx(ctx).Debug().Int("partners", index.Len()).Msg("Loaded partner index for lead attribution")

	rc.deferCursor = true
	pager := p.engine.prm.Leads(incrementalFilter(rc.since))
	return runPages(ctx, rc, pager, func(ctx context.Context, batch []prm.Lead) (batchResult, error) {
		return p.processPage(ctx, rc, index, batch)
	})
}

func (p *leadsPipeline) processPage(ctx context.Context, rc *runContext, index *PartnerIndex, batch []prm.Lead) (batchResult, error) {
	var result batchResult

	leads := make([]*models.Lead, 0, len(batch))
	ids := make([]string, 0, len(batch))
	for i := range batch {
		rec := &batch[i]
		result.observe(rec.ModifiedDate)

		lead := p.transformLead(ctx, rc, index, rec)
		leads = append(leads, lead)
		ids = append(ids, lead.ID)
	}

	existing, err := p.engine.db.ExistingLeadIDs(ctx, ids)
	if err != nil {
		return result, fmt.Errorf("failed to probe existing leads: %w", err)
	}

	for _, lead := range leads {
		if !rc.dryRun() {
			if upsertErr := p.engine.db.UpsertLead(ctx, lead); upsertErr != nil {
				if fatal := countRowError(ctx, &result, lead.ID, upsertErr); fatal != nil {
					return result, fatal
				}
				continue
			}
		}
		if existing[lead.ID] {
			result.stats.Updated++
		} else {
			result.stats.Inserted++
		}
	}
	return result, nil
}

// transformLead maps a PRM lead to its local row, resolving the CRM account
// reference when present. Resolution failures leave PartnerID nil and land
// the reference in the run's not-found list.
func (p *leadsPipeline) transformLead(ctx context.Context, rc *runContext, index *PartnerIndex, rec *prm.Lead) *models.Lead {
	lead := &models.Lead{
		ID:         rec.ID,
		Name:       joinName(rec.FirstName, rec.LastName),
		Email:      normalizeEmail(rec.Email),
		Company:    rec.Company,
		Status:     rec.Status,
		Source:     rec.Source,
		CreatedAt:  rec.CreatedDate.UTC(),
		ModifiedAt: rec.ModifiedDate.UTC(),
	}
	if rec.CrmAccountID == "" {
		return lead
	}

	partnerID, ok, err := index.Resolve(rec.CrmAccountID)
	switch {
	case err != nil:
		rc.notFound.Add(rec.CrmAccountID)
		logging.Ctx(ctx).Warn().
			Str("lead_id", rec.ID).
			Str("crm_account_id", rec.CrmAccountID).
			Err(err).
			Msg("Lead CRM reference invalid, storing unattributed")
	case !ok:
		// Keep the canonical key so the attribution can be replayed once
		// the partner arrives.
		lead.CRMKey, _ = CanonicalCRMKey(rec.CrmAccountID)
		rc.notFound.Add(rec.CrmAccountID)
	default:
		lead.PartnerID = &partnerID
		lead.CRMKey, _ = CanonicalCRMKey(rec.CrmAccountID)
	}
	return lead
}
