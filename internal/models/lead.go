// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package models

import "time"

// Lead is a PRM sales lead distributed to a partner. PartnerID is resolved
// from the lead's CRM account reference through the identity index; leads
// whose reference does not resolve are kept with a null link and reported in
// the run's not-found list rather than dropped.
type Lead struct {
	ID         string    `json:"id" db:"lead_id"`
	PartnerID  *string   `json:"partner_id,omitempty" db:"partner_id"`
	CRMKey     string    `json:"crm_key,omitempty" db:"crm_key"`
	Name       string    `json:"name" db:"name"`
	Email      string    `json:"email" db:"email"`
	Company    string    `json:"company,omitempty" db:"company"`
	Status     string    `json:"status" db:"status"`
	Source     string    `json:"source,omitempty" db:"source"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	ModifiedAt time.Time `json:"modified_at" db:"modified_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
