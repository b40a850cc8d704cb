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
	"testing"
	"time"

	"github.com/credsync/credsync/internal/audit"
	"github.com/credsync/credsync/internal/config"
	"github.com/credsync/credsync/internal/models"
	syncer "github.com/credsync/credsync/internal/sync"
)

func testSchedulerConfig() *config.SchedulerConfig {
	return &config.SchedulerConfig{
		Enabled:         true,
		TickInterval:    10 * time.Millisecond,
		StaleAfter:      30 * time.Minute,
		DedupeWindow:    10 * time.Second,
		DefaultInterval: time.Hour,
	}
}

type fakeScheduleStore struct {
	mu      sync.Mutex
	seeded  [][]models.TaskSchedule
	seedErr error
	due     []*models.TaskSchedule
	dueErr  error
}

func (f *fakeScheduleStore) SeedSchedules(ctx context.Context, schedules []models.TaskSchedule) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seedErr != nil {
		return 0, f.seedErr
	}
	f.seeded = append(f.seeded, schedules)
	return len(schedules), nil
}

func (f *fakeScheduleStore) DueSchedules(ctx context.Context, now time.Time) ([]*models.TaskSchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.due, f.dueErr
}

func (f *fakeScheduleStore) seedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seeded)
}

type runCall struct {
	entity models.EntityType
	opts   syncer.RunOptions
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []runCall
	errs  map[models.EntityType]error
}

func (f *fakeRunner) Run(ctx context.Context, entity models.EntityType, opts syncer.RunOptions) (*models.RunSummary, error) {
	f.mu.Lock()
	f.calls = append(f.calls, runCall{entity: entity, opts: opts})
	err := f.errs[entity]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &models.RunSummary{
		RunID:      "run-" + entity.String(),
		EntityType: entity,
		Status:     models.RunCompleted,
	}, nil
}

func (f *fakeRunner) byEntity() map[models.EntityType]runCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[models.EntityType]runCall, len(f.calls))
	for _, c := range f.calls {
		out[c.entity] = c
	}
	return out
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func dueSchedule(entity models.EntityType, mode models.SyncMode) *models.TaskSchedule {
	return &models.TaskSchedule{
		EntityType: entity,
		Enabled:    true,
		Interval:   3600,
		Mode:       mode,
	}
}

func TestDefaultSchedules(t *testing.T) {
	cfg := testSchedulerConfig()
	now := time.Now().UTC()

	schedules := DefaultSchedules(cfg, now)

	entities := models.AllEntityTypes()
	if len(schedules) != len(entities) {
		t.Fatalf("expected %d schedules, got %d", len(entities), len(schedules))
	}
	for i, s := range schedules {
		if s.EntityType != entities[i] {
			t.Errorf("schedule %d entity = %s, want %s", i, s.EntityType, entities[i])
		}
		if !s.Enabled {
			t.Errorf("%s: expected enabled by default", s.EntityType)
		}
		if s.Interval != 3600 {
			t.Errorf("%s: interval = %d, want 3600", s.EntityType, s.Interval)
		}
		if s.Mode != models.ModeIncremental {
			t.Errorf("%s: mode = %s, want incremental", s.EntityType, s.Mode)
		}
		if !s.UpdatedAt.Equal(now) {
			t.Errorf("%s: updated_at = %v, want %v", s.EntityType, s.UpdatedAt, now)
		}
	}
}

func TestDefaultSchedulesDisabledList(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.Disabled = []string{"leads", "not-a-real-entity"}

	schedules := DefaultSchedules(cfg, time.Now().UTC())

	// The disabled entity still gets a row so its cursor and history have a
	// home when it is re-enabled; only the flag differs.
	if len(schedules) != len(models.AllEntityTypes()) {
		t.Fatalf("expected a row per entity type, got %d", len(schedules))
	}
	for _, s := range schedules {
		want := s.EntityType != models.EntityLeads
		if s.Enabled != want {
			t.Errorf("%s: enabled = %v, want %v", s.EntityType, s.Enabled, want)
		}
	}
}

func TestSchedulerDispatchesDueSchedules(t *testing.T) {
	store := &fakeScheduleStore{due: []*models.TaskSchedule{
		dueSchedule(models.EntityUsers, models.ModeIncremental),
		dueSchedule(models.EntityCourses, models.ModeFull),
	}}
	runner := &fakeRunner{}
	s := New(testSchedulerConfig(), store, runner, nil)

	s.tick(context.Background())
	s.wg.Wait()

	calls := runner.byEntity()
	if len(calls) != 2 {
		t.Fatalf("expected 2 dispatches, got %d", len(calls))
	}

	users, ok := calls[models.EntityUsers]
	if !ok {
		t.Fatal("users schedule was not dispatched")
	}
	if users.opts.Mode != models.ModeIncremental {
		t.Errorf("users mode = %s, want incremental", users.opts.Mode)
	}
	if users.opts.TriggeredBy != models.TriggerScheduler {
		t.Errorf("users triggered_by = %s, want %s", users.opts.TriggeredBy, models.TriggerScheduler)
	}

	courses, ok := calls[models.EntityCourses]
	if !ok {
		t.Fatal("courses schedule was not dispatched")
	}
	if courses.opts.Mode != models.ModeFull {
		t.Errorf("courses mode = %s, want full", courses.opts.Mode)
	}
}

func TestSchedulerInvalidModeFallsBackToIncremental(t *testing.T) {
	store := &fakeScheduleStore{due: []*models.TaskSchedule{
		dueSchedule(models.EntityUsers, models.SyncMode("bogus")),
	}}
	runner := &fakeRunner{}
	s := New(testSchedulerConfig(), store, runner, nil)

	s.tick(context.Background())
	s.wg.Wait()

	calls := runner.byEntity()
	if got := calls[models.EntityUsers].opts.Mode; got != models.ModeIncremental {
		t.Errorf("mode = %s, want incremental", got)
	}
}

func TestSchedulerSkipsDisabledEntities(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.Disabled = []string{"users", "no-such-entity"}

	store := &fakeScheduleStore{due: []*models.TaskSchedule{
		dueSchedule(models.EntityUsers, models.ModeIncremental),
		dueSchedule(models.EntityCourses, models.ModeIncremental),
	}}
	runner := &fakeRunner{}
	s := New(cfg, store, runner, nil)

	s.tick(context.Background())
	s.wg.Wait()

	calls := runner.byEntity()
	if _, ok := calls[models.EntityUsers]; ok {
		t.Error("disabled entity was dispatched")
	}
	if _, ok := calls[models.EntityCourses]; !ok {
		t.Error("enabled entity was not dispatched")
	}
}

func TestSchedulerRunInProgressIsNotFatal(t *testing.T) {
	store := &fakeScheduleStore{due: []*models.TaskSchedule{
		dueSchedule(models.EntityUsers, models.ModeIncremental),
	}}
	runner := &fakeRunner{errs: map[models.EntityType]error{
		models.EntityUsers: fmt.Errorf("users: %w", syncer.ErrRunInProgress),
	}}
	s := New(testSchedulerConfig(), store, runner, nil)

	s.tick(context.Background())
	s.wg.Wait()

	if got := runner.callCount(); got != 1 {
		t.Errorf("expected 1 dispatch, got %d", got)
	}
}

func TestSchedulerDueListErrorAbsorbed(t *testing.T) {
	store := &fakeScheduleStore{dueErr: errors.New("store offline")}
	runner := &fakeRunner{}
	s := New(testSchedulerConfig(), store, runner, nil)

	s.tick(context.Background())
	s.wg.Wait()

	if got := runner.callCount(); got != 0 {
		t.Errorf("expected no dispatches, got %d", got)
	}
}

// blockingRunner holds every run open until release is closed, so tests can
// observe the in-flight window.
type blockingRunner struct {
	mu      sync.Mutex
	calls   int
	started chan models.EntityType
	release chan struct{}
}

func (b *blockingRunner) Run(ctx context.Context, entity models.EntityType, opts syncer.RunOptions) (*models.RunSummary, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	b.started <- entity
	<-b.release
	return &models.RunSummary{RunID: "run-1", EntityType: entity, Status: models.RunCompleted}, nil
}

func (b *blockingRunner) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func TestSchedulerDoesNotRedispatchInFlightEntity(t *testing.T) {
	store := &fakeScheduleStore{due: []*models.TaskSchedule{
		dueSchedule(models.EntityUsers, models.ModeIncremental),
	}}
	runner := &blockingRunner{
		started: make(chan models.EntityType, 1),
		release: make(chan struct{}),
	}
	s := New(testSchedulerConfig(), store, runner, nil)
	ctx := context.Background()

	s.tick(ctx)
	select {
	case <-runner.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first dispatch never started")
	}

	// The schedule is still due while the run is open; a second tick must
	// not start another run for the same entity.
	s.tick(ctx)
	if got := runner.callCount(); got != 1 {
		t.Fatalf("expected 1 in-flight run, got %d", got)
	}

	close(runner.release)
	s.wg.Wait()

	// With the slot free again the next tick dispatches normally.
	s.tick(ctx)
	select {
	case <-runner.started:
	case <-time.After(2 * time.Second):
		t.Fatal("redispatch after completion never started")
	}
	s.wg.Wait()

	if got := runner.callCount(); got != 2 {
		t.Errorf("expected 2 runs total, got %d", got)
	}
}

func TestSchedulerServeSeedsAndStopsOnCancel(t *testing.T) {
	store := &fakeScheduleStore{}
	runner := &fakeRunner{}
	events := audit.NewMemoryStore(16)
	s := New(testSchedulerConfig(), store, runner, audit.NewRecorder(events))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Serve(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for store.seedCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if store.seedCount() == 0 {
		cancel()
		t.Fatal("Serve never seeded schedules")
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop after cancel")
	}

	listed, err := events.List(context.Background(), audit.DefaultQueryFilter())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	found := false
	for _, e := range listed {
		if e.Type == audit.EventScheduleSeeded {
			found = true
		}
	}
	if !found {
		t.Error("expected a schedule.seeded audit event")
	}
}

func TestSchedulerServeSeedFailure(t *testing.T) {
	store := &fakeScheduleStore{seedErr: errors.New("table missing")}
	s := New(testSchedulerConfig(), store, &fakeRunner{}, nil)

	err := s.Serve(context.Background())
	if err == nil {
		t.Fatal("expected seed failure to be returned")
	}
}
