// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package sync

import (
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/credsync/credsync/internal/logging"
	"github.com/credsync/credsync/internal/metrics"
)

// newUpstreamBreaker builds the circuit breaker wrapping one upstream API.
// The breaker prevents cascading failures when an upstream is unavailable or
// slow.
//
// Configuration:
//   - Max 3 concurrent requests in half-open state
//   - 1 minute measurement window in closed state
//   - 2 minute timeout before attempting recovery
//   - Opens after 60% failure rate with minimum 10 requests
//
// The breaker uses real time for its interval and timeout calculations; the
// timing governs recovery from failures, not data integrity. Tests exercise
// the wrapped fetch functions directly.
func newUpstreamBreaker(name string) *gobreaker.CircuitBreaker[any] {
	metrics.SetCircuitBreakerState(name, 0) // 0 = closed

	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Need at least 10 requests for statistical significance
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			if failureRatio >= 0.6 {
				logging.Warn().
					Str("breaker", name).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("Opening circuit")
				return true
			}
			return false
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("Circuit breaker state transition")
			metrics.SetCircuitBreakerState(name, stateToInt(to))
			metrics.RecordBreakerTransition(name, fromStr, toStr)
		},
	})
}

// executeFetch runs one page fetch through the upstream circuit breaker and
// casts the boxed result back to its page shape.
func executeFetch[T any](cb *gobreaker.CircuitBreaker[any], fn func() ([]T, int, error)) ([]T, int, error) {
	type pageResult struct {
		items []T
		total int
	}

	result, err := cb.Execute(func() (any, error) {
		items, total, err := fn()
		if err != nil {
			return nil, err
		}
		return pageResult{items: items, total: total}, nil
	})
	if err != nil {
		return nil, 0, err
	}

	page, ok := result.(pageResult)
	if !ok {
		return nil, 0, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return page.items, page.total, nil
}

// stateToInt converts a circuit breaker state to its metrics gauge value.
func stateToInt(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts a circuit breaker state to a label for logging and
// metrics.
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
