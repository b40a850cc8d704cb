// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package scheduler

import (
	"context"
	"time"

	"github.com/credsync/credsync/internal/audit"
	"github.com/credsync/credsync/internal/config"
	"github.com/credsync/credsync/internal/logging"
	"github.com/credsync/credsync/internal/metrics"
	"github.com/credsync/credsync/internal/models"
)

// RunReclaimer is the slice of the database store the sweeper needs.
type RunReclaimer interface {
	MarkStaleRuns(ctx context.Context, cutoff, now time.Time) ([]*models.SyncRun, error)
	SetScheduleStatus(ctx context.Context, entity models.EntityType, status models.RunStatus, now time.Time) error
}

// Sweeper reclaims runs abandoned by a crashed or killed process. A run
// stuck in the running state past the staleness threshold is transitioned to
// stale and its schedule's last status set to failed, so the entity type is
// eligible for dispatch again. The same sweep prunes audit events that
// duplicate a recorded run and expires audit events past the retention
// period. It implements suture.Service.
type Sweeper struct {
	cfg      *config.SchedulerConfig
	store    RunReclaimer
	events   audit.Store
	recorder *audit.Recorder
	name     string
}

// NewSweeper creates a recovery sweeper. The events store may be nil when no
// audit persistence is configured; the dedup pass is skipped in that case.
func NewSweeper(cfg *config.SchedulerConfig, store RunReclaimer, events audit.Store, recorder *audit.Recorder) *Sweeper {
	return &Sweeper{
		cfg:      cfg,
		store:    store,
		events:   events,
		recorder: recorder,
		name:     "recovery-sweeper",
	}
}

// Serve implements suture.Service. The first sweep happens immediately so a
// restart after a crash reclaims orphaned runs before the scheduler's first
// dispatch can be blocked by them.
func (s *Sweeper) Serve(ctx context.Context) error {
	logging.Info().
		Dur("tick_interval", s.cfg.TickInterval).
		Dur("stale_after", s.cfg.StaleAfter).
		Msg("Recovery sweeper started")

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Recovery sweeper stopping")
			return ctx.Err()

		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (s *Sweeper) String() string {
	return s.name
}

func (s *Sweeper) sweep(ctx context.Context) {
	now := time.Now().UTC()

	marked, err := s.store.MarkStaleRuns(ctx, now.Add(-s.cfg.StaleAfter), now)
	if err != nil {
		logging.Error().Err(err).Msg("Stale run sweep failed")
	}

	for _, run := range marked {
		// The schedule keeps its planned next trigger; failing the last
		// status is enough for operators to see the reclaim.
		if err := s.store.SetScheduleStatus(ctx, run.EntityType, models.RunFailed, now); err != nil {
			logging.Warn().Err(err).Str("entity_type", run.EntityType.String()).Msg("Failed to fail schedule for stale run")
		}
		s.recorder.SyncStale(ctx, run)
		logging.Warn().
			Str("entity_type", run.EntityType.String()).
			Str("run_id", run.ID).
			Time("started_at", run.StartedAt).
			Msg("Reclaimed stale run")
	}
	metrics.RecordStaleRuns(len(marked))

	s.prune(ctx)
	s.expire(ctx, now)
}

func (s *Sweeper) prune(ctx context.Context) {
	if s.events == nil || s.cfg.DedupeWindow <= 0 {
		return
	}

	pruned, err := s.events.PruneDuplicates(ctx, s.cfg.DedupeWindow)
	if err != nil {
		logging.Warn().Err(err).Msg("Audit dedup sweep failed")
		return
	}
	metrics.RecordDuplicatesPruned(pruned)
	if pruned > 0 {
		logging.Debug().Int64("pruned", pruned).Msg("Pruned duplicate audit events")
	}
}

// expire deletes audit events older than the retention period. Retention 0
// keeps events forever.
func (s *Sweeper) expire(ctx context.Context, now time.Time) {
	if s.events == nil || s.cfg.AuditRetention <= 0 {
		return
	}

	deleted, err := s.events.DeleteBefore(ctx, now.Add(-s.cfg.AuditRetention))
	if err != nil {
		logging.Warn().Err(err).Msg("Audit retention sweep failed")
		return
	}
	if deleted > 0 {
		logging.Info().Int64("deleted", deleted).Dur("retention", s.cfg.AuditRetention).Msg("Expired audit events")
	}
}
