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
	"strings"
	"time"

	"github.com/credsync/credsync/internal/metrics"
	"github.com/credsync/credsync/internal/models"
)

const upsertLMSUserQuery = `
	INSERT INTO lms_users (user_id, email, name, status, modified_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (user_id) DO UPDATE SET
		email = excluded.email,
		name = excluded.name,
		status = excluded.status,
		modified_at = excluded.modified_at,
		updated_at = excluded.updated_at`

// UpsertLMSUser inserts or updates an LMS user keyed by its external id.
// The email is lowercased on write so matching stays case-insensitive.
func (db *DB) UpsertLMSUser(ctx context.Context, u *models.LMSUser) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	stmt, err := db.getStmt(ctx, upsertLMSUserQuery)
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = stmt.ExecContext(ctx,
		u.ID, strings.ToLower(u.Email), u.Name, u.Status,
		u.ModifiedAt, u.CreatedAt, u.UpdatedAt,
	)
	metrics.RecordDBQuery("upsert", "lms_users", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to upsert lms user %s: %w", u.ID, err)
	}

	return nil
}

// GetLMSUser returns one LMS user by external id, or ErrNotFound.
func (db *DB) GetLMSUser(ctx context.Context, id string) (*models.LMSUser, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		SELECT user_id, email, name, status, modified_at, created_at, updated_at
		FROM lms_users
		WHERE user_id = ?`

	var u models.LMSUser
	err := db.conn.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.Email, &u.Name, &u.Status, &u.ModifiedAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lms user: %w", err)
	}
	return &u, nil
}

// ExistingLMSUserIDs reports which of the given user ids exist, used to
// derive created/updated counts per batch.
func (db *DB) ExistingLMSUserIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	return db.existingIDs(ctx, "lms_users", "user_id", ids)
}
