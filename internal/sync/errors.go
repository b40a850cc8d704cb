// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package sync

import (
	"context"
	"errors"
	"fmt"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/credsync/credsync/internal/models"
)

var (
	// ErrRunInProgress is returned when a sync is triggered for an entity
	// type that already has a running SyncRun. Triggers are rejected, never
	// queued.
	ErrRunInProgress = errors.New("sync run already in progress")

	// ErrUnknownEntityType is returned when a trigger names an entity type
	// outside the closed pipeline set.
	ErrUnknownEntityType = errors.New("unknown entity type")

	// ErrRateLimited is returned when an upstream keeps answering HTTP 429
	// past the configured retry budget.
	ErrRateLimited = errors.New("rate limit exceeded (HTTP 429)")

	// ErrInvalidCRMID is returned for CRM identifiers that are neither the
	// 15- nor the 18-character form. Such identifiers are reported, never
	// guessed at.
	ErrInvalidCRMID = errors.New("invalid CRM identifier")
)

// UpstreamStatusError is a non-2xx upstream response. Body holds at most
// maxErrorBodySize bytes of the response body for diagnostics.
type UpstreamStatusError struct {
	Source     string
	StatusCode int
	Body       string
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("%s request failed with status %d: %s", e.Source, e.StatusCode, e.Body)
}

// AbandonedFetchError reports a page sequence cut short by a non-retryable
// upstream failure. Pages and Items count what was successfully retrieved
// before the failure, so partial progress is never silently discarded.
type AbandonedFetchError struct {
	Source string
	Entity models.EntityType
	Pages  int
	Items  int
	Err    error
}

func (e *AbandonedFetchError) Error() string {
	return fmt.Sprintf("%s %s fetch abandoned after %d pages (%d items): %v",
		e.Source, e.Entity, e.Pages, e.Items, e.Err)
}

func (e *AbandonedFetchError) Unwrap() error { return e.Err }

// abandonReason classifies a fetch failure into a low-cardinality metrics
// label.
func abandonReason(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	}
	var statusErr *UpstreamStatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("http_%d", statusErr.StatusCode)
	}
	return "network"
}
