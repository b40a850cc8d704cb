// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package models

import "time"

// Attribution selects how enrollments are attributed to partners when the
// rollup cache is rebuilt. The two paths are mutually exclusive per
// deployment; summing both would double-count users reachable by each.
type Attribution string

const (
	// AttributionContact attributes a user's enrollments through the direct
	// Contact→Partner link.
	AttributionContact Attribution = "contact"

	// AttributionGroup attributes a user's enrollments through
	// GroupMembership→Group→Partner linkage.
	AttributionGroup Attribution = "group"
)

// Valid reports whether a is a known attribution path.
func (a Attribution) Valid() bool {
	return a == AttributionContact || a == AttributionGroup
}

// PartnerRollup is one derived cache row per partner. It is rebuilt by full
// replacement from enrollments, courses and the configured attribution path,
// and is never the source of truth: dropping the table loses nothing.
type PartnerRollup struct {
	PartnerID      string      `json:"partner_id" db:"partner_id"`
	PartnerName    string      `json:"partner_name" db:"partner_name"`
	ActiveCredits  float64     `json:"active_credits" db:"active_credits"`
	ExpiredCredits float64     `json:"expired_credits" db:"expired_credits"`
	CertCount      int         `json:"certification_count" db:"certification_count"`
	CertifiedUsers int         `json:"certified_users" db:"certified_users"`
	Attribution    Attribution `json:"attribution" db:"attribution"`
	ComputedAt     time.Time   `json:"computed_at" db:"computed_at"`
}
