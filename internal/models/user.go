// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package models

import "time"

// LMSUser is a person record owned by the LMS. The external LMS id is the
// primary key; Email is stored lowercased so email matching is
// case-insensitive. ModifiedAt is the remote last-modified timestamp and
// doubles as the incremental sync cursor field.
type LMSUser struct {
	ID         string    `json:"id" db:"user_id"`
	Email      string    `json:"email" db:"email"`
	Name       string    `json:"name" db:"name"`
	Status     string    `json:"status" db:"status"`
	ModifiedAt time.Time `json:"modified_at" db:"modified_at"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// UserStatusActive is the LMS status value for users counted as active.
// Email uniqueness is only meaningful within this set; deactivated users may
// share an address with their replacement.
const UserStatusActive = "active"
