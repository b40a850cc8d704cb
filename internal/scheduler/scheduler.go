// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/credsync/credsync/internal/audit"
	"github.com/credsync/credsync/internal/config"
	"github.com/credsync/credsync/internal/logging"
	"github.com/credsync/credsync/internal/metrics"
	"github.com/credsync/credsync/internal/models"
	syncer "github.com/credsync/credsync/internal/sync"
)

// Runner starts sync runs. Satisfied by *sync.Engine.
type Runner interface {
	Run(ctx context.Context, entity models.EntityType, opts syncer.RunOptions) (*models.RunSummary, error)
}

// ScheduleStore is the slice of the database store the scheduler needs.
type ScheduleStore interface {
	SeedSchedules(ctx context.Context, schedules []models.TaskSchedule) (int, error)
	DueSchedules(ctx context.Context, now time.Time) ([]*models.TaskSchedule, error)
}

// Scheduler polls sync_schedules and dispatches a pipeline run for every due
// entity type. It implements suture.Service.
type Scheduler struct {
	cfg      *config.SchedulerConfig
	store    ScheduleStore
	runner   Runner
	recorder *audit.Recorder
	disabled map[models.EntityType]bool
	name     string

	mu       sync.Mutex
	inFlight map[models.EntityType]bool
	wg       sync.WaitGroup
}

// New creates a scheduler. Entity types listed in cfg.Disabled are never
// dispatched even when their schedule row is due; unknown names in the list
// are logged and ignored.
func New(cfg *config.SchedulerConfig, store ScheduleStore, runner Runner, recorder *audit.Recorder) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		store:    store,
		runner:   runner,
		recorder: recorder,
		disabled: disabledSet(cfg.Disabled),
		inFlight: make(map[models.EntityType]bool),
		name:     "scheduler",
	}
}

// DefaultSchedules builds the seed row for every entity type: the configured
// default interval, incremental mode, enabled unless the type is in the
// disabled list. Interval, mode and cursor become store-owned after the
// first seed; only the enabled flag follows config on later startups.
func DefaultSchedules(cfg *config.SchedulerConfig, now time.Time) []models.TaskSchedule {
	disabled := disabledSet(cfg.Disabled)
	entities := models.AllEntityTypes()

	schedules := make([]models.TaskSchedule, 0, len(entities))
	for _, entity := range entities {
		schedules = append(schedules, models.TaskSchedule{
			EntityType: entity,
			Enabled:    !disabled[entity],
			Interval:   int(cfg.DefaultInterval / time.Second),
			Mode:       models.ModeIncremental,
			UpdatedAt:  now,
		})
	}
	return schedules
}

func disabledSet(raw []string) map[models.EntityType]bool {
	set := make(map[models.EntityType]bool, len(raw))
	for _, item := range raw {
		entity, err := models.ParseEntityType(item)
		if err != nil {
			logging.Warn().Str("entity_type", item).Msg("Ignoring unknown entity type in scheduler disabled list")
			continue
		}
		set[entity] = true
	}
	return set
}

// Serve implements suture.Service. It seeds the schedule table, then polls
// for due schedules on every tick until the context is canceled. A seeding
// failure is returned so the supervisor restarts the service; per-tick
// errors are logged and absorbed.
func (s *Scheduler) Serve(ctx context.Context) error {
	if err := s.seed(ctx); err != nil {
		return err
	}

	logging.Info().
		Dur("tick_interval", s.cfg.TickInterval).
		Int("disabled", len(s.disabled)).
		Msg("Scheduler started")

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	// Schedules that have never run are due immediately, so do not wait a
	// full tick before the first dispatch.
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Scheduler stopping, waiting for in-flight runs")
			s.wg.Wait()
			return ctx.Err()

		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (s *Scheduler) String() string {
	return s.name
}

func (s *Scheduler) seed(ctx context.Context) error {
	now := time.Now().UTC()
	seeded, err := s.store.SeedSchedules(ctx, DefaultSchedules(s.cfg, now))
	if err != nil {
		return fmt.Errorf("failed to seed schedules: %w", err)
	}
	if seeded > 0 {
		s.recorder.SchedulesSeeded(ctx, seeded)
		logging.Info().Int("seeded", seeded).Msg("Seeded default sync schedules")
	}
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	due, err := s.store.DueSchedules(ctx, time.Now().UTC())
	if err != nil {
		logging.Error().Err(err).Msg("Failed to list due schedules")
		return
	}

	for _, schedule := range due {
		if ctx.Err() != nil {
			return
		}
		if s.disabled[schedule.EntityType] {
			continue
		}
		s.dispatch(ctx, schedule)
	}
}

// dispatch starts one run in the background. The in-flight set keeps a
// schedule that stays due during a long run from being dispatched again on
// every tick; the run slot in the store guards against triggers from other
// sources racing the same entity type.
func (s *Scheduler) dispatch(ctx context.Context, schedule *models.TaskSchedule) {
	entity := schedule.EntityType

	s.mu.Lock()
	if s.inFlight[entity] {
		s.mu.Unlock()
		return
	}
	s.inFlight[entity] = true
	s.mu.Unlock()

	mode := schedule.Mode
	if !mode.Valid() {
		mode = models.ModeIncremental
	}

	metrics.RecordSchedulerDispatch(entity.String())
	logging.Debug().
		Str("entity_type", entity.String()).
		Str("mode", string(mode)).
		Msg("Dispatching scheduled sync")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inFlight, entity)
			s.mu.Unlock()
		}()

		summary, err := s.runner.Run(ctx, entity, syncer.RunOptions{
			Mode:        mode,
			TriggeredBy: models.TriggerScheduler,
		})
		switch {
		case errors.Is(err, syncer.ErrRunInProgress):
			metrics.RecordSchedulerRejected(entity.String())
			logging.Debug().Str("entity_type", entity.String()).Msg("Run slot taken, leaving the schedule due")
		case err != nil:
			logging.Warn().Err(err).Str("entity_type", entity.String()).Msg("Scheduled sync failed")
		default:
			logging.Debug().
				Str("entity_type", entity.String()).
				Str("run_id", summary.RunID).
				Int("processed", summary.Processed).
				Dur("duration", summary.Duration).
				Msg("Scheduled sync completed")
		}
	}()
}
