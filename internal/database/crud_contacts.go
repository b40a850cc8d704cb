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

// Contacts carry the partner_id foreign key, so writes use the explicit
// insert-or-update branch. lms_user_id is owned by the email-linking step
// and is never overwritten by a PRM-side update.

const insertContactQuery = `
	INSERT INTO contacts (
		contact_id, partner_id, lms_user_id, email, name, title, active,
		modified_at, created_at, updated_at, deleted_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const updateContactQuery = `
	UPDATE contacts
	SET partner_id = ?, email = ?, name = ?, title = ?, active = ?,
		modified_at = ?, updated_at = ?
	WHERE contact_id = ?`

// InsertContact inserts a new contact row. Fails with a foreign-key
// violation when the referenced partner does not exist.
func (db *DB) InsertContact(ctx context.Context, c *models.Contact) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	stmt, err := db.getStmt(ctx, insertContactQuery)
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = stmt.ExecContext(ctx,
		c.ID, c.PartnerID, c.LMSUserID, strings.ToLower(c.Email), c.Name,
		c.Title, c.Active, c.ModifiedAt, c.CreatedAt, c.UpdatedAt, c.DeletedAt,
	)
	metrics.RecordDBQuery("insert", "contacts", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to insert contact %s: %w", c.ID, err)
	}

	return nil
}

// UpdateContact overwrites the mutable fields of an existing contact row.
func (db *DB) UpdateContact(ctx context.Context, c *models.Contact) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	stmt, err := db.getStmt(ctx, updateContactQuery)
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = stmt.ExecContext(ctx,
		c.PartnerID, strings.ToLower(c.Email), c.Name, c.Title, c.Active,
		c.ModifiedAt, c.UpdatedAt, c.ID,
	)
	metrics.RecordDBQuery("update", "contacts", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to update contact %s: %w", c.ID, err)
	}

	return nil
}

// GetContact returns one contact by external id, or ErrNotFound.
func (db *DB) GetContact(ctx context.Context, id string) (*models.Contact, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		SELECT contact_id, partner_id, lms_user_id, email, name, title, active,
			modified_at, created_at, updated_at, deleted_at
		FROM contacts
		WHERE contact_id = ?`

	var c models.Contact
	var lmsUserID, title sql.NullString
	var deletedAt sql.NullTime

	err := db.conn.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.PartnerID, &lmsUserID, &c.Email, &c.Name, &title, &c.Active,
		&c.ModifiedAt, &c.CreatedAt, &c.UpdatedAt, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}

	c.LMSUserID = stringPtr(lmsUserID)
	c.Title = stringVal(title)
	c.DeletedAt = timePtr(deletedAt)
	return &c, nil
}

// ExistingContactIDs reports which of the given contact ids exist.
func (db *DB) ExistingContactIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	return db.existingIDs(ctx, "contacts", "contact_id", ids)
}

// LinkContactsToUsers fills lms_user_id on unlinked contacts whose lowercased
// email matches an LMS user. Runs after every users sync and at the end of a
// partners sync. When several LMS users share an address, the smallest
// user_id wins so repeated runs stay deterministic. Returns the number of
// contacts linked.
func (db *DB) LinkContactsToUsers(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		UPDATE contacts
		SET lms_user_id = (
			SELECT MIN(u.user_id) FROM lms_users u WHERE u.email = contacts.email
		), updated_at = ?
		WHERE lms_user_id IS NULL
			AND deleted_at IS NULL
			AND EXISTS (SELECT 1 FROM lms_users u WHERE u.email = contacts.email)`

	start := time.Now()
	result, err := db.conn.ExecContext(ctx, query, now)
	metrics.RecordDBQuery("update", "contacts", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("failed to link contacts to lms users: %w", err)
	}

	linked, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read linked contact count: %w", err)
	}
	return linked, nil
}
