// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package sync

import (
	"github.com/credsync/credsync/internal/logging"
	"github.com/credsync/credsync/internal/models"
)

// Progress is one pipeline advancement report, emitted after each fetched
// page is processed.
type Progress struct {
	Entity    models.EntityType `json:"entity_type"`
	RunID     string            `json:"run_id"`
	Pages     int               `json:"pages"`
	Processed int               `json:"processed"`

	// Total is the number of matching remote records when the upstream
	// reports one, -1 when unknown. PRM totals are exact; LMS totals are
	// only present when the collection response carries a count wrapper.
	Total int `json:"total"`
}

// ProgressFunc consumes Progress reports. The engine calls it inline between
// pages, so implementations must be fast and must not block.
type ProgressFunc func(Progress)

// logProgress is the built-in progress consumer.
func logProgress(p Progress) {
	event := logging.Debug().
		Str("entity_type", p.Entity.String()).
		Str("run_id", p.RunID).
		Int("pages", p.Pages).
		Int("processed", p.Processed)
	if p.Total >= 0 {
		event = event.Int("total", p.Total)
	}
	event.Msg("Sync progress")
}
