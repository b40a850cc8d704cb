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

	"github.com/goccy/go-json"

	"github.com/credsync/credsync/internal/metrics"
	"github.com/credsync/credsync/internal/models"
)

// Partners participate in a foreign-key constraint (contacts reference them),
// so writes use an explicit insert-or-update branch instead of ON CONFLICT.
// The partners pipeline decides the branch from PartnerKeyIndex.

const insertPartnerQuery = `
	INSERT INTO partners (
		partner_id, crm_key, crm_id_raw, name, tier, region, active,
		domains, created_at, updated_at, deleted_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const updatePartnerQuery = `
	UPDATE partners
	SET crm_id_raw = ?, name = ?, tier = ?, region = ?, active = ?,
		domains = ?, updated_at = ?
	WHERE partner_id = ?`

// InsertPartner inserts a new partner row. ID and CRMKey are identity fields
// and must be set by the caller.
func (db *DB) InsertPartner(ctx context.Context, p *models.Partner) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	domainsJSON, err := marshalDomains(p.Domains)
	if err != nil {
		return err
	}

	stmt, err := db.getStmt(ctx, insertPartnerQuery)
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = stmt.ExecContext(ctx,
		p.ID, p.CRMKey, p.CRMIDRaw, p.Name, p.Tier, p.Region, p.Active,
		domainsJSON, p.CreatedAt, p.UpdatedAt, p.DeletedAt,
	)
	metrics.RecordDBQuery("insert", "partners", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to insert partner %s: %w", p.CRMKey, err)
	}

	return nil
}

// UpdatePartner overwrites the mutable fields of an existing partner row.
// partner_id and crm_key never change; crm_id_raw tracks the identifier form
// most recently received.
func (db *DB) UpdatePartner(ctx context.Context, p *models.Partner) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	domainsJSON, err := marshalDomains(p.Domains)
	if err != nil {
		return err
	}

	stmt, err := db.getStmt(ctx, updatePartnerQuery)
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = stmt.ExecContext(ctx,
		p.CRMIDRaw, p.Name, p.Tier, p.Region, p.Active,
		domainsJSON, p.UpdatedAt, p.ID,
	)
	metrics.RecordDBQuery("update", "partners", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to update partner %s: %w", p.ID, err)
	}

	return nil
}

// GetPartnerByCRMKey returns the non-deleted partner with the given canonical
// CRM key, or ErrNotFound.
func (db *DB) GetPartnerByCRMKey(ctx context.Context, crmKey string) (*models.Partner, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		SELECT partner_id, crm_key, crm_id_raw, name, tier, region, active,
			domains, created_at, updated_at, deleted_at
		FROM partners
		WHERE crm_key = ? AND deleted_at IS NULL`

	row := db.conn.QueryRowContext(ctx, query, crmKey)
	partner, err := scanPartner(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get partner by crm key: %w", err)
	}
	return partner, nil
}

// PartnerKeyIndex returns canonical CRM key → local partner id for every
// non-deleted partner. The partners pipeline uses it to branch between insert
// and update and to report remote keys absent locally; the groups and leads
// pipelines use it for partner attribution.
func (db *DB) PartnerKeyIndex(ctx context.Context) (map[string]string, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT crm_key, partner_id FROM partners WHERE deleted_at IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to query partner key index: %w", err)
	}
	defer closeWithLog(rows, "partner index rows")

	index := make(map[string]string)
	for rows.Next() {
		var key, id string
		if err := rows.Scan(&key, &id); err != nil {
			return nil, fmt.Errorf("failed to scan partner index row: %w", err)
		}
		index[key] = id
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating partner index: %w", err)
	}

	return index, nil
}

// ExistingPartnerIDs reports which of the given partner ids exist. The
// contacts step uses it to pre-check the partner foreign key.
func (db *DB) ExistingPartnerIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	return db.existingIDs(ctx, "partners", "partner_id", ids)
}

// marshalDomains encodes a domain list as JSON for storage. Empty lists are
// stored as NULL.
func marshalDomains(domains []string) (interface{}, error) {
	if len(domains) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(domains)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal domains: %w", err)
	}
	return string(b), nil
}

// scanPartner scans one partner row.
func scanPartner(row rowScanner) (*models.Partner, error) {
	var p models.Partner
	var tier, region, domains sql.NullString
	var deletedAt sql.NullTime

	err := row.Scan(
		&p.ID, &p.CRMKey, &p.CRMIDRaw, &p.Name, &tier, &region, &p.Active,
		&domains, &p.CreatedAt, &p.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Tier = stringVal(tier)
	p.Region = stringVal(region)
	p.DeletedAt = timePtr(deletedAt)

	if domains.Valid && domains.String != "" {
		if err := json.Unmarshal([]byte(domains.String), &p.Domains); err != nil {
			return nil, fmt.Errorf("failed to unmarshal domains for partner %s: %w", p.ID, err)
		}
	}

	return &p, nil
}
