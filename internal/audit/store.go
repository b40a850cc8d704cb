// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package audit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Store persists audit events.
type Store interface {
	// Record persists one event.
	Record(ctx context.Context, event *Event) error

	// Get retrieves an event by ID.
	Get(ctx context.Context, id string) (*Event, error)

	// List retrieves events matching the filter, newest first.
	List(ctx context.Context, filter QueryFilter) ([]Event, error)

	// Count returns the number of events matching the filter.
	Count(ctx context.Context, filter QueryFilter) (int64, error)

	// PruneDuplicates removes trigger events that duplicate a recorded run of
	// the same entity type within the window. Returns the number removed.
	PruneDuplicates(ctx context.Context, window time.Duration) (int64, error)

	// DeleteBefore removes events created before the given time. Returns the
	// number removed.
	DeleteBefore(ctx context.Context, olderThan time.Time) (int64, error)
}

// MemoryStore implements Store in memory. Suitable for tests and dry-run
// tooling; data is lost on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
	maxLen int
}

// NewMemoryStore creates an in-memory audit store holding at most maxLen
// events. Older events are discarded first.
func NewMemoryStore(maxLen int) *MemoryStore {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &MemoryStore{
		events: make([]Event, 0, maxLen),
		maxLen: maxLen,
	}
}

// Record persists one event.
func (s *MemoryStore) Record(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.events) >= s.maxLen {
		drop := s.maxLen / 10
		if drop == 0 {
			drop = 1
		}
		s.events = s.events[drop:]
	}
	s.events = append(s.events, *event)
	return nil
}

// Get retrieves an event by ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.events {
		if s.events[i].ID == id {
			event := s.events[i]
			return &event, nil
		}
	}
	return nil, fmt.Errorf("event not found: %s", id)
}

// List retrieves events matching the filter, newest first.
func (s *MemoryStore) List(ctx context.Context, filter QueryFilter) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultQueryFilter().Limit
	}

	var results []Event
	skipped := 0
	for i := len(s.events) - 1; i >= 0; i-- {
		event := s.events[i]
		if !matchesFilter(&event, &filter) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		results = append(results, event)
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

// Count returns the number of events matching the filter.
func (s *MemoryStore) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for i := range s.events {
		if matchesFilter(&s.events[i], &filter) {
			count++
		}
	}
	return count, nil
}

// PruneDuplicates is a no-op for the in-memory store: it has no run table to
// correlate trigger events against.
func (s *MemoryStore) PruneDuplicates(ctx context.Context, window time.Duration) (int64, error) {
	return 0, nil
}

// DeleteBefore removes events created before the given time.
func (s *MemoryStore) DeleteBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var removed int64
	for i := range s.events {
		if s.events[i].CreatedAt.Before(olderThan) {
			removed++
			continue
		}
		kept = append(kept, s.events[i])
	}
	s.events = kept
	return removed, nil
}

func matchesFilter(event *Event, filter *QueryFilter) bool {
	if len(filter.Types) > 0 {
		found := false
		for _, t := range filter.Types {
			if event.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.EntityType != "" && event.EntityType != filter.EntityType {
		return false
	}
	if filter.RunID != "" && event.RunID != filter.RunID {
		return false
	}
	if filter.Outcome != "" && event.Outcome != filter.Outcome {
		return false
	}
	if filter.Since != nil && event.CreatedAt.Before(*filter.Since) {
		return false
	}
	if filter.Until != nil && event.CreatedAt.After(*filter.Until) {
		return false
	}
	return true
}
