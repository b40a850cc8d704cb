// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package sync

import (
	"errors"
	"testing"

	gobreaker "github.com/sony/gobreaker/v2"
)

// TestCircuitBreaker_OpensAfterFailures verifies the breaker opens once the
// failure ratio crosses the trip threshold
func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	cb := newUpstreamBreaker("test-upstream")

	if state := cb.State(); state != gobreaker.StateClosed {
		t.Errorf("initial state = %v, want Closed", state)
	}

	// Trip threshold: at least 10 requests and a 60% failure ratio.
	// ReadyToTrip only runs when a failure is recorded, so the successes
	// come first; the tenth request is a failure seen with 10 requests and
	// a 70% ratio.
	failures := 0
	for i := 0; i < 10; i++ {
		_, _, err := executeFetch(cb, func() ([]string, int, error) {
			if i >= 3 {
				return nil, 0, errors.New("simulated upstream failure")
			}
			return []string{"ok"}, 1, nil
		})
		if err != nil {
			failures++
		}
	}
	if failures != 7 {
		t.Fatalf("failures = %d, want 7", failures)
	}

	if state := cb.State(); state != gobreaker.StateOpen {
		t.Fatalf("state after 70%% failures = %v, want Open", state)
	}

	// While open, requests are rejected without invoking the fetch.
	invoked := false
	_, _, err := executeFetch(cb, func() ([]string, int, error) {
		invoked = true
		return []string{"should not run"}, 1, nil
	})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("error while open = %v, want ErrOpenState", err)
	}
	if invoked {
		t.Error("fetch ran while the breaker was open")
	}
}

// TestCircuitBreaker_StaysClosedBelowThreshold verifies a 50% failure ratio
// does not trip the breaker
func TestCircuitBreaker_StaysClosedBelowThreshold(t *testing.T) {
	cb := newUpstreamBreaker("test-upstream-below")

	for i := 0; i < 10; i++ {
		_, _, _ = executeFetch(cb, func() ([]string, int, error) {
			if i%2 == 0 {
				return nil, 0, errors.New("simulated upstream failure")
			}
			return []string{"ok"}, 1, nil
		})
	}

	if state := cb.State(); state != gobreaker.StateClosed {
		t.Errorf("state after 50%% failures = %v, want Closed", state)
	}
}

// TestCircuitBreaker_FewRequestsNeverTrip verifies all-failure traffic below
// the minimum request count keeps the breaker closed
func TestCircuitBreaker_FewRequestsNeverTrip(t *testing.T) {
	cb := newUpstreamBreaker("test-upstream-few")

	for i := 0; i < 9; i++ {
		_, _, _ = executeFetch(cb, func() ([]string, int, error) {
			return nil, 0, errors.New("simulated upstream failure")
		})
	}

	if state := cb.State(); state != gobreaker.StateClosed {
		t.Errorf("state after 9 failures = %v, want Closed (minimum is 10 requests)", state)
	}
}

func TestExecuteFetchPassesResultsThrough(t *testing.T) {
	cb := newUpstreamBreaker("test-upstream-results")

	items, total, err := executeFetch(cb, func() ([]int, int, error) {
		return []int{1, 2, 3}, 42, nil
	})
	if err != nil {
		t.Fatalf("executeFetch() error = %v", err)
	}
	if len(items) != 3 {
		t.Errorf("items = %v, want 3 elements", items)
	}
	if total != 42 {
		t.Errorf("total = %d, want 42", total)
	}
}

func TestStateMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state gobreaker.State
		str   string
		code  int
	}{
		{gobreaker.StateClosed, "closed", 0},
		{gobreaker.StateHalfOpen, "half-open", 1},
		{gobreaker.StateOpen, "open", 2},
	}
	for _, tt := range tests {
		if got := stateToString(tt.state); got != tt.str {
			t.Errorf("stateToString(%v) = %q, want %q", tt.state, got, tt.str)
		}
		if got := stateToInt(tt.state); got != tt.code {
			t.Errorf("stateToInt(%v) = %d, want %d", tt.state, got, tt.code)
		}
	}
}
