// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/credsync/credsync/internal/audit"
	"github.com/credsync/credsync/internal/models"
)

type fakeReclaimStore struct {
	mu       sync.Mutex
	stale    []*models.SyncRun
	staleErr error
	cutoffs  []time.Time
	failed   []models.EntityType
	statuses []models.RunStatus
}

func (f *fakeReclaimStore) MarkStaleRuns(ctx context.Context, cutoff, now time.Time) ([]*models.SyncRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.stale, f.staleErr
}

func (f *fakeReclaimStore) SetScheduleStatus(ctx context.Context, entity models.EntityType, status models.RunStatus, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, entity)
	f.statuses = append(f.statuses, status)
	return nil
}

// pruneCountingStore records PruneDuplicates calls; everything else is the
// in-memory store.
type pruneCountingStore struct {
	*audit.MemoryStore
	mu      sync.Mutex
	windows []time.Duration
}

func (s *pruneCountingStore) PruneDuplicates(ctx context.Context, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows = append(s.windows, window)
	return 2, nil
}

func (s *pruneCountingStore) pruneWindows() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.windows...)
}

func staleRun(entity models.EntityType, id string) *models.SyncRun {
	started := time.Now().UTC().Add(-time.Hour)
	finished := time.Now().UTC()
	return &models.SyncRun{
		ID:          id,
		EntityType:  entity,
		Mode:        models.ModeIncremental,
		Status:      models.RunStale,
		TriggeredBy: models.TriggerScheduler,
		StartedAt:   started,
		FinishedAt:  &finished,
		Error:       "run exceeded the staleness threshold and was reclaimed by the recovery sweep",
	}
}

func TestSweepReclaimsStaleRuns(t *testing.T) {
	store := &fakeReclaimStore{stale: []*models.SyncRun{
		staleRun(models.EntityUsers, "run-stale-1"),
	}}
	events := &pruneCountingStore{MemoryStore: audit.NewMemoryStore(16)}
	sw := NewSweeper(testSchedulerConfig(), store, events, audit.NewRecorder(events))

	before := time.Now().UTC()
	sw.sweep(context.Background())

	if len(store.cutoffs) != 1 {
		t.Fatalf("expected 1 MarkStaleRuns call, got %d", len(store.cutoffs))
	}
	age := before.Sub(store.cutoffs[0])
	if age < 29*time.Minute || age > 31*time.Minute {
		t.Errorf("cutoff is %v before the sweep, want about %v", age, 30*time.Minute)
	}

	if len(store.failed) != 1 || store.failed[0] != models.EntityUsers {
		t.Fatalf("expected users schedule failed, got %v", store.failed)
	}
	if store.statuses[0] != models.RunFailed {
		t.Errorf("schedule status = %s, want failed", store.statuses[0])
	}

	listed, err := events.List(context.Background(), audit.QueryFilter{
		Types: []audit.EventType{audit.EventSyncStale},
		Limit: 10,
	})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 stale audit event, got %d", len(listed))
	}
	if listed[0].RunID != "run-stale-1" {
		t.Errorf("event run_id = %s, want run-stale-1", listed[0].RunID)
	}
	if listed[0].EntityType != models.EntityUsers {
		t.Errorf("event entity_type = %s, want users", listed[0].EntityType)
	}
	if listed[0].Outcome != audit.OutcomeFailure {
		t.Errorf("event outcome = %s, want failure", listed[0].Outcome)
	}

	windows := events.pruneWindows()
	if len(windows) != 1 {
		t.Fatalf("expected 1 dedup pass, got %d", len(windows))
	}
	if windows[0] != 10*time.Second {
		t.Errorf("dedup window = %v, want 10s", windows[0])
	}
}

func TestSweepNothingStale(t *testing.T) {
	store := &fakeReclaimStore{}
	events := &pruneCountingStore{MemoryStore: audit.NewMemoryStore(16)}
	sw := NewSweeper(testSchedulerConfig(), store, events, audit.NewRecorder(events))

	sw.sweep(context.Background())

	if len(store.failed) != 0 {
		t.Errorf("no schedules should be failed, got %v", store.failed)
	}
	if got := len(events.pruneWindows()); got != 1 {
		t.Errorf("dedup should still run, got %d passes", got)
	}
}

func TestSweepMarkErrorStillPrunes(t *testing.T) {
	store := &fakeReclaimStore{staleErr: errors.New("store offline")}
	events := &pruneCountingStore{MemoryStore: audit.NewMemoryStore(16)}
	sw := NewSweeper(testSchedulerConfig(), store, events, audit.NewRecorder(events))

	sw.sweep(context.Background())

	if got := len(events.pruneWindows()); got != 1 {
		t.Errorf("expected dedup pass despite sweep error, got %d", got)
	}
}

func TestSweepWithoutEventStore(t *testing.T) {
	store := &fakeReclaimStore{stale: []*models.SyncRun{
		staleRun(models.EntityCourses, "run-stale-2"),
	}}
	sw := NewSweeper(testSchedulerConfig(), store, nil, nil)

	sw.sweep(context.Background())

	// The reclaim itself does not depend on audit persistence.
	if len(store.failed) != 1 || store.failed[0] != models.EntityCourses {
		t.Errorf("expected courses schedule failed, got %v", store.failed)
	}
}

func TestSweepZeroDedupeWindowSkipsPrune(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.DedupeWindow = 0
	events := &pruneCountingStore{MemoryStore: audit.NewMemoryStore(16)}
	sw := NewSweeper(cfg, &fakeReclaimStore{}, events, audit.NewRecorder(events))

	sw.sweep(context.Background())

	if got := len(events.pruneWindows()); got != 0 {
		t.Errorf("expected no dedup pass, got %d", got)
	}
}

func TestSweepExpiresOldAuditEvents(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.AuditRetention = 24 * time.Hour
	events := &pruneCountingStore{MemoryStore: audit.NewMemoryStore(16)}

	ctx := context.Background()
	record := func(id string, age time.Duration) {
		t.Helper()
		err := events.Record(ctx, &audit.Event{
			ID:        id,
			Type:      audit.EventSyncCompleted,
			Actor:     audit.ActorSystem,
			Outcome:   audit.OutcomeSuccess,
			CreatedAt: time.Now().UTC().Add(-age),
		})
		if err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}
	record("evt-old", 48*time.Hour)
	record("evt-fresh", time.Hour)

	sw := NewSweeper(cfg, &fakeReclaimStore{}, events, audit.NewRecorder(events))
	sw.sweep(ctx)

	listed, err := events.List(ctx, audit.QueryFilter{Limit: 10})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 surviving event, got %d", len(listed))
	}
	if listed[0].ID != "evt-fresh" {
		t.Errorf("surviving event = %s, want evt-fresh", listed[0].ID)
	}
}

func TestSweepZeroRetentionKeepsEvents(t *testing.T) {
	events := &pruneCountingStore{MemoryStore: audit.NewMemoryStore(16)}

	ctx := context.Background()
	err := events.Record(ctx, &audit.Event{
		ID:        "evt-ancient",
		Type:      audit.EventSyncCompleted,
		Actor:     audit.ActorSystem,
		Outcome:   audit.OutcomeSuccess,
		CreatedAt: time.Now().UTC().Add(-365 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	sw := NewSweeper(testSchedulerConfig(), &fakeReclaimStore{}, events, audit.NewRecorder(events))
	sw.sweep(ctx)

	listed, err := events.List(ctx, audit.QueryFilter{Limit: 10})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(listed) != 1 {
		t.Errorf("expected the event kept with retention unset, got %d", len(listed))
	}
}

func TestSweeperServeStopsOnCancel(t *testing.T) {
	sw := NewSweeper(testSchedulerConfig(), &fakeReclaimStore{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- sw.Serve(ctx)
	}()

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop after cancel")
	}
}
