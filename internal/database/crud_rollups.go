// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/credsync/credsync/internal/metrics"
	"github.com/credsync/credsync/internal/models"
)

// Attribution-path subqueries produce DISTINCT (partner_id, user_id) pairs.
// Distinctness is what keeps a user who is reachable through several
// contacts, or several groups of the same partner, counted once per partner.
const contactPairsQuery = `
	SELECT DISTINCT partner_id, lms_user_id AS user_id
	FROM contacts
	WHERE deleted_at IS NULL AND lms_user_id IS NOT NULL`

const groupPairsQuery = `
	SELECT DISTINCT g.partner_id, gm.user_id
	FROM lms_groups g
	JOIN group_members gm ON gm.group_id = g.group_id
	WHERE g.partner_id IS NOT NULL`

const rebuildRollupsQueryTemplate = `
	INSERT INTO partner_rollups (
		partner_id, partner_name, active_credits, expired_credits,
		certification_count, certified_users, attribution, computed_at
	)
	SELECT
		p.partner_id,
		p.name,
		COALESCE(SUM(CASE WHEN e.status = 'completed' AND c.credits > 0
			AND (e.expires_at IS NULL OR e.expires_at > ?) THEN c.credits END), 0),
		COALESCE(SUM(CASE WHEN e.status = 'completed' AND c.credits > 0
			AND e.expires_at IS NOT NULL AND e.expires_at <= ? THEN c.credits END), 0),
		COUNT(DISTINCT CASE WHEN e.status = 'completed' AND c.credits > 0
			THEN e.enrollment_id END),
		COUNT(DISTINCT CASE WHEN e.status = 'completed' AND c.credits > 0
			THEN pu.user_id END),
		?,
		?
	FROM partners p
	LEFT JOIN (%s) pu ON pu.partner_id = p.partner_id
	LEFT JOIN enrollments e ON e.user_id = pu.user_id
	LEFT JOIN courses c ON c.course_id = e.course_id
	WHERE p.deleted_at IS NULL
	GROUP BY p.partner_id, p.name`

// RebuildPartnerRollups replaces the entire rollup cache from current
// enrollment, course and linkage state. The delete and repopulate run in one
// transaction so readers never observe an empty cache. Partners with no
// attributable activity keep a row of zeros. Returns the number of rollup
// rows written.
func (db *DB) RebuildPartnerRollups(ctx context.Context, attribution models.Attribution, now time.Time) (int, error) {
	if !attribution.Valid() {
		return 0, fmt.Errorf("unknown attribution path %q", attribution)
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	pairs := contactPairsQuery
	if attribution == models.AttributionGroup {
		pairs = groupPairsQuery
	}
	query := fmt.Sprintf(rebuildRollupsQueryTemplate, pairs)

	start := time.Now()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin rollup rebuild: %w", err)
	}
	defer rollbackQuietly(tx)

	if _, err := tx.ExecContext(ctx, `DELETE FROM partner_rollups`); err != nil {
		metrics.RecordDBQuery("rebuild", "partner_rollups", time.Since(start), err)
		return 0, fmt.Errorf("failed to clear rollup cache: %w", err)
	}

	result, err := tx.ExecContext(ctx, query, now, now, string(attribution), now)
	if err != nil {
		metrics.RecordDBQuery("rebuild", "partner_rollups", time.Since(start), err)
		return 0, fmt.Errorf("failed to repopulate rollup cache: %w", err)
	}

	written, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rollup row count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		metrics.RecordDBQuery("rebuild", "partner_rollups", time.Since(start), err)
		return 0, fmt.Errorf("failed to commit rollup rebuild: %w", err)
	}

	metrics.RecordDBQuery("rebuild", "partner_rollups", time.Since(start), nil)
	return int(written), nil
}

// ListPartnerRollups returns the current rollup cache ordered by active
// credits, highest first.
func (db *DB) ListPartnerRollups(ctx context.Context) ([]*models.PartnerRollup, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		SELECT partner_id, partner_name, active_credits, expired_credits,
			certification_count, certified_users, attribution, computed_at
		FROM partner_rollups
		ORDER BY active_credits DESC, partner_name ASC`

	rollups, err := queryAndScan(ctx, db.conn, query, nil, scanRollup)
	if err != nil {
		return nil, fmt.Errorf("failed to list partner rollups: %w", err)
	}
	return rollups, nil
}

func scanRollup(rows *sql.Rows) (*models.PartnerRollup, error) {
	var r models.PartnerRollup
	var attribution string

	err := rows.Scan(
		&r.PartnerID, &r.PartnerName, &r.ActiveCredits, &r.ExpiredCredits,
		&r.CertCount, &r.CertifiedUsers, &attribution, &r.ComputedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Attribution = models.Attribution(attribution)
	return &r, nil
}
