// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

// Package rollup rebuilds the partner_rollups aggregate cache.
//
// Rollups are derived data: per-partner active/expired credit totals,
// certification counts and certified-user counts, attributed through either
// direct contact links or group membership. The cache is only ever rebuilt
// whole; there is no incremental maintenance, so a rebuild after any failure
// or attribution change always converges to the correct totals.
package rollup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/credsync/credsync/internal/audit"
	"github.com/credsync/credsync/internal/config"
	"github.com/credsync/credsync/internal/database"
	"github.com/credsync/credsync/internal/logging"
	"github.com/credsync/credsync/internal/metrics"
	"github.com/credsync/credsync/internal/models"
)

// Builder rebuilds the partner rollup cache. Rebuilds are serialized: a
// second trigger while one is running waits rather than racing the
// transactional table swap.
type Builder struct {
	db          *database.DB
	recorder    *audit.Recorder
	attribution models.Attribution

	mu sync.Mutex
}

// New creates a Builder using the attribution path from configuration.
// The attribution is validated here so a misconfigured value fails at
// startup, not at the first rebuild.
func New(cfg *config.RollupConfig, db *database.DB, recorder *audit.Recorder) (*Builder, error) {
	attribution := models.Attribution(cfg.Attribution)
	if attribution == "" {
		attribution = models.AttributionContact
	}
	if !attribution.Valid() {
		return nil, fmt.Errorf("unknown rollup attribution %q (want %q or %q)",
			cfg.Attribution, models.AttributionContact, models.AttributionGroup)
	}
	return &Builder{db: db, recorder: recorder, attribution: attribution}, nil
}

// Attribution returns the configured attribution path.
func (b *Builder) Attribution() models.Attribution {
	return b.attribution
}

// Rebuild recomputes every partner's rollup row inside one transaction and
// returns the number of partners aggregated. The actor is recorded on the
// audit event (audit.ActorSystem for post-sync triggers, the API or CLI
// actor for manual ones).
func (b *Builder) Rebuild(ctx context.Context, actor string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := time.Now()
	partners, err := b.db.RebuildPartnerRollups(ctx, b.attribution, start.UTC())
	duration := time.Since(start)

	metrics.RecordRollupBuild(duration, partners, err)
	b.recorder.RollupRebuilt(ctx, b.attribution, partners, duration, actor, err)

	if err != nil {
		logging.Error().Err(err).
			Str("attribution", string(b.attribution)).
			Dur("duration", duration).
			Msg("Rollup rebuild failed")
		return 0, fmt.Errorf("failed to rebuild partner rollups: %w", err)
	}

	logging.Info().
		Str("attribution", string(b.attribution)).
		Int("partners", partners).
		Dur("duration", duration).
		Str("actor", actor).
		Msg("Rollup cache rebuilt")
	return partners, nil
}
