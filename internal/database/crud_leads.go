// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/credsync/credsync/internal/metrics"
	"github.com/credsync/credsync/internal/models"
)

const upsertLeadQuery = `
	INSERT INTO leads (
		lead_id, partner_id, crm_key, name, email, company, status, source,
		created_at, modified_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (lead_id) DO UPDATE SET
		partner_id = excluded.partner_id,
		crm_key = excluded.crm_key,
		name = excluded.name,
		email = excluded.email,
		company = excluded.company,
		status = excluded.status,
		source = excluded.source,
		created_at = excluded.created_at,
		modified_at = excluded.modified_at,
		updated_at = excluded.updated_at`

// UpsertLead inserts or updates a lead keyed by its external id. Leads with
// an unresolved CRM account reference keep a null partner_id; the reference
// itself is stored so a later partners sync can be followed by a full leads
// run to re-attribute them.
func (db *DB) UpsertLead(ctx context.Context, l *models.Lead) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	stmt, err := db.getStmt(ctx, upsertLeadQuery)
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = stmt.ExecContext(ctx,
		l.ID, l.PartnerID, l.CRMKey, l.Name, l.Email, l.Company, l.Status,
		l.Source, l.CreatedAt, l.ModifiedAt, l.UpdatedAt,
	)
	metrics.RecordDBQuery("upsert", "leads", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to upsert lead %s: %w", l.ID, err)
	}

	return nil
}

// GetLead returns one lead by external id, or ErrNotFound.
func (db *DB) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		SELECT lead_id, partner_id, crm_key, name, email, company, status,
			source, created_at, modified_at, updated_at
		FROM leads
		WHERE lead_id = ?`

	var l models.Lead
	var partnerID, crmKey, email, company, status, source sql.NullString
	var createdAt sql.NullTime

	err := db.conn.QueryRowContext(ctx, query, id).Scan(
		&l.ID, &partnerID, &crmKey, &l.Name, &email, &company, &status,
		&source, &createdAt, &l.ModifiedAt, &l.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}

	l.PartnerID = stringPtr(partnerID)
	l.CRMKey = stringVal(crmKey)
	l.Email = stringVal(email)
	l.Company = stringVal(company)
	l.Status = stringVal(status)
	l.Source = stringVal(source)
	if t := timePtr(createdAt); t != nil {
		l.CreatedAt = *t
	}
	return &l, nil
}

// ExistingLeadIDs reports which of the given lead ids exist.
func (db *DB) ExistingLeadIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	return db.existingIDs(ctx, "leads", "lead_id", ids)
}
