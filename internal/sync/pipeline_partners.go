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
	"github.com/credsync/credsync/internal/models/prm"
)

// partnersPipeline is the PRM reconciliation pass: accounts become partners
// keyed by canonical CRM key, then PRM users become contacts attributed to
// their partner, then contacts link to LMS users by email.
//
// Cursor advancement is deferred to run completion because the pass spans
// two collections sharing one cursor; advancing mid-pass could move the
// cursor past unfetched users after a partial failure.
type partnersPipeline struct {
	engine *Engine
}

func (p *partnersPipeline) entity() models.EntityType { return models.EntityPartners }

func (p *partnersPipeline) run(ctx context.Context, rc *runContext) error {
	rc.deferCursor = true

	remote := NewPartnerIndex()
	if err := p.syncAccounts(ctx, rc, remote); err != nil {
		return err
	}
	if err := p.syncContacts(ctx, rc); err != nil {
		return err
	}
	if err := p.linkContacts(ctx, rc); err != nil {
		return err
	}

	// A completeness report over a partial incremental page would flag every
	// unchanged partner, so only full fetches compare local against remote.
	if rc.run.Mode == models.ModeFull {
		p.reportMissingPartners(ctx, rc, remote)
	}
	return nil
}

func (p *partnersPipeline) syncAccounts(ctx context.Context, rc *runContext, remote *PartnerIndex) error {
	pager := p.engine.prm.Accounts(incrementalFilter(rc.since))
	return runPages(ctx, rc, pager, func(ctx context.Context, batch []prm.Account) (batchResult, error) {
		return p.processAccountPage(ctx, rc, remote, batch)
	})
}

func (p *partnersPipeline) processAccountPage(ctx context.Context, rc *runContext, remote *PartnerIndex, batch []prm.Account) (batchResult, error) {
	var result batchResult

	partners := make([]*models.Partner, 0, len(batch))
	ids := make([]string, 0, len(batch))
	for i := range batch {
		account := &batch[i]
		result.observe(account.ModifiedDate)

		partner, err := transformAccount(account)
		if err != nil {
			// An account that cannot be keyed cannot be stored; it is
			// reported, never guessed at.
			rc.notFound.Add(account.CrmID)
			logging.Ctx(ctx).Warn().
				Str("account_id", account.ID).
				Str("crm_id", account.CrmID).
				Msg("Account CRM identifier invalid, skipping")
			continue
		}
		remote.Add(partner.CRMKey, partner.ID)
		partners = append(partners, partner)
		ids = append(ids, partner.ID)
	}

	existing, err := p.engine.db.ExistingPartnerIDs(ctx, ids)
	if err != nil {
		return result, fmt.Errorf("failed to probe existing partners: %w", err)
	}

	for _, partner := range partners {
		created := !existing[partner.ID]
		if !rc.dryRun() {
			var upsertErr error
			if created {
				upsertErr = p.engine.db.InsertPartner(ctx, partner)
			} else {
				upsertErr = p.engine.db.UpdatePartner(ctx, partner)
			}
			if upsertErr != nil {
				if fatal := countRowError(ctx, &result, partner.ID, upsertErr); fatal != nil {
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

func (p *partnersPipeline) syncContacts(ctx context.Context, rc *runContext) error {
	pager := p.engine.prm.Users(incrementalFilter(rc.since))
	return runPages(ctx, rc, pager, func(ctx context.Context, batch []prm.User) (batchResult, error) {
		return p.processUserPage(ctx, rc, batch)
	})
}

func (p *partnersPipeline) processUserPage(ctx context.Context, rc *runContext, batch []prm.User) (batchResult, error) {
	var result batchResult

	contacts := make([]*models.Contact, 0, len(batch))
	contactIDs := make([]string, 0, len(batch))
	accountIDs := make([]string, 0, len(batch))
	for i := range batch {
		user := &batch[i]
		result.observe(user.ModifiedDate)
		contact := transformContact(user)
		contacts = append(contacts, contact)
		contactIDs = append(contactIDs, contact.ID)
		accountIDs = append(accountIDs, contact.PartnerID)
	}

	// An incremental user page can reference accounts outside the fetched
	// window, so attribution probes the local partners table rather than the
	// in-pass index.
	knownPartners, err := p.engine.db.ExistingPartnerIDs(ctx, accountIDs)
	if err != nil {
		return result, fmt.Errorf("failed to probe partner attribution: %w", err)
	}
	existing, err := p.engine.db.ExistingContactIDs(ctx, contactIDs)
	if err != nil {
		return result, fmt.Errorf("failed to probe existing contacts: %w", err)
	}

	for _, contact := range contacts {
		if !knownPartners[contact.PartnerID] {
			result.skip(contact.ID)
			continue
		}
		created := !existing[contact.ID]
		if !rc.dryRun() {
			var upsertErr error
			if created {
				upsertErr = p.engine.db.InsertContact(ctx, contact)
			} else {
				upsertErr = p.engine.db.UpdateContact(ctx, contact)
			}
			if upsertErr != nil {
				if fatal := countRowError(ctx, &result, contact.ID, upsertErr); fatal != nil {
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

func (p *partnersPipeline) linkContacts(ctx context.Context, rc *runContext) error {
	if rc.dryRun() {
		return nil
	}
	linked, err := p.engine.db.LinkContactsToUsers(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to link contacts to lms users: %w", err)
	}
	if linked > 0 {
		logging.Ctx(ctx).Info().Int64("linked", linked).Msg("Linked contacts to LMS users by email")
	}
	return nil
}

// reportMissingPartners flags local partners whose canonical key no longer
// appears in the remote account collection. Missing partners are reported in
// the run's not-found list, never deleted.
func (p *partnersPipeline) reportMissingPartners(ctx context.Context, rc *runContext, remote *PartnerIndex) {
	local, err := p.engine.db.PartnerKeyIndex(ctx)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to load local partner index for completeness report")
		return
	}

	missing := 0
	for key := range local {
		if !remote.Contains(key) {
			rc.notFound.Add(key)
			missing++
		}
	}
	if missing > 0 {
		logging.Ctx(ctx).Warn().Int("missing", missing).Msg("Local partners absent from remote collection")
	}
}

// transformAccount maps a PRM account to a partner row keyed by canonical
// CRM key.
func transformAccount(account *prm.Account) (*models.Partner, error) {
	key, err := CanonicalCRMKey(account.CrmID)
	if err != nil {
		return nil, err
	}
	return &models.Partner{
		ID:       account.ID,
		CRMKey:   key,
		CRMIDRaw: account.CrmID,
		Name:     account.Name,
		Tier:     account.Tier,
		Region:   account.Region,
		Active:   account.IsActive,
		Domains:  splitDomains(account.WebDomains),
	}, nil
}

// transformContact maps a PRM user to a contact row. Emails are normalized
// so the contact-to-LMS-user link is case-insensitive.
func transformContact(user *prm.User) *models.Contact {
	return &models.Contact{
		ID:         user.ID,
		PartnerID:  user.AccountID,
		Email:      normalizeEmail(user.Email),
		Name:       joinName(user.FirstName, user.LastName),
		Title:      user.Title,
		Active:     user.IsActive,
		ModifiedAt: user.ModifiedDate.UTC(),
	}
}
