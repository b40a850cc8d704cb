// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package models

import "time"

// Group is an LMS team. PartnerID is set when the group carries a CRM account
// reference that resolves through the identity index; groups without a
// resolvable reference keep a null link and are reported in the run's
// not-found list.
type Group struct {
	ID         string    `json:"id" db:"group_id"`
	Name       string    `json:"name" db:"name"`
	PartnerID  *string   `json:"partner_id,omitempty" db:"partner_id"`
	ModifiedAt time.Time `json:"modified_at" db:"modified_at"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// GroupMembership joins an LMS user to a Group. The pair is the natural key;
// upserts are keyed on it. Group→Partner linkage makes memberships the
// alternative credit-attribution path when direct Contact links are absent.
type GroupMembership struct {
	GroupID    string    `json:"group_id" db:"group_id"`
	UserID     string    `json:"user_id" db:"user_id"`
	ModifiedAt time.Time `json:"modified_at" db:"modified_at"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
