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

const upsertGroupQuery = `
	INSERT INTO lms_groups (group_id, name, partner_id, modified_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (group_id) DO UPDATE SET
		name = excluded.name,
		partner_id = excluded.partner_id,
		modified_at = excluded.modified_at,
		updated_at = excluded.updated_at`

const upsertGroupMembershipQuery = `
	INSERT INTO group_members (group_id, user_id, modified_at, created_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (group_id, user_id) DO UPDATE SET
		modified_at = excluded.modified_at`

const hasGroupMembershipQuery = `
	SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id = ? AND user_id = ?)`

// UpsertGroup inserts or updates an LMS group keyed by its external id.
// partner_id mirrors the latest resolution of the group's CRM reference; a
// reference that no longer resolves clears the link.
func (db *DB) UpsertGroup(ctx context.Context, g *models.Group) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	stmt, err := db.getStmt(ctx, upsertGroupQuery)
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = stmt.ExecContext(ctx,
		g.ID, g.Name, g.PartnerID, g.ModifiedAt, g.CreatedAt, g.UpdatedAt,
	)
	metrics.RecordDBQuery("upsert", "lms_groups", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to upsert group %s: %w", g.ID, err)
	}

	return nil
}

// GetGroup returns one group by external id, or ErrNotFound.
func (db *DB) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		SELECT group_id, name, partner_id, modified_at, created_at, updated_at
		FROM lms_groups
		WHERE group_id = ?`

	var g models.Group
	var partnerID sql.NullString

	err := db.conn.QueryRowContext(ctx, query, id).Scan(
		&g.ID, &g.Name, &partnerID, &g.ModifiedAt, &g.CreatedAt, &g.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	g.PartnerID = stringPtr(partnerID)
	return &g, nil
}

// ExistingGroupIDs reports which of the given group ids exist. The
// group-memberships pipeline uses it to pre-check the group reference, which
// is application-enforced rather than a store-level foreign key.
func (db *DB) ExistingGroupIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	return db.existingIDs(ctx, "lms_groups", "group_id", ids)
}

// HasGroupMembership reports whether the (group, user) pair already exists.
// The composite key rules out the IN-list probe used for single-key tables,
// so the pipeline checks row by row through the prepared-statement cache.
func (db *DB) HasGroupMembership(ctx context.Context, groupID, userID string) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	stmt, err := db.getStmt(ctx, hasGroupMembershipQuery)
	if err != nil {
		return false, err
	}

	var exists bool
	if err := stmt.QueryRowContext(ctx, groupID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to probe group membership: %w", err)
	}
	return exists, nil
}

// UpsertGroupMembership inserts or refreshes a membership pair.
func (db *DB) UpsertGroupMembership(ctx context.Context, m *models.GroupMembership) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	stmt, err := db.getStmt(ctx, upsertGroupMembershipQuery)
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = stmt.ExecContext(ctx, m.GroupID, m.UserID, m.ModifiedAt, m.CreatedAt)
	metrics.RecordDBQuery("upsert", "group_members", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to upsert group membership %s/%s: %w", m.GroupID, m.UserID, err)
	}

	return nil
}
