// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package models

import "time"

// Partner is an organization record owned by the PRM system and mirrored into
// the local store. CRMKey holds the canonical 15-character form of the external
// CRM identifier; CRMIDRaw preserves the identifier exactly as received (15 or
// 18 characters). At most one non-deleted Partner exists per CRMKey.
type Partner struct {
	ID        string     `json:"id" db:"partner_id"`
	CRMKey    string     `json:"crm_key" db:"crm_key"`
	CRMIDRaw  string     `json:"crm_id_raw" db:"crm_id_raw"`
	Name      string     `json:"name" db:"name"`
	Tier      string     `json:"tier,omitempty" db:"tier"`
	Region    string     `json:"region,omitempty" db:"region"`
	Active    bool       `json:"active" db:"active"`
	Domains   []string   `json:"domains,omitempty" db:"domains"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Contact is a PRM-side person scoped to a Partner. A Contact may reference at
// most one LMS user (matched case-insensitively by email); the reverse lookup
// is a non-owning index. PartnerID is required and enforced as a foreign key.
type Contact struct {
	ID         string     `json:"id" db:"contact_id"`
	PartnerID  string     `json:"partner_id" db:"partner_id"`
	LMSUserID  *string    `json:"lms_user_id,omitempty" db:"lms_user_id"`
	Email      string     `json:"email" db:"email"`
	Name       string     `json:"name" db:"name"`
	Title      string     `json:"title,omitempty" db:"title"`
	Active     bool       `json:"active" db:"active"`
	ModifiedAt time.Time  `json:"modified_at" db:"modified_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}
