// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// contextKey is a private type for context keys owned by this package.
type contextKey string

const loggerKey contextKey = "logger"

// WithRun returns a context carrying a child logger tagged with the pipeline
// run's identity. Everything logged through Ctx during that run carries the
// entity type and run id, so interleaved pipeline output stays attributable.
//
//	ctx = logging.WithRun(ctx, "enrollments", runID)
//	logging.Ctx(ctx).Info().Int("page", page).Msg("page upserted")
func WithRun(ctx context.Context, entityType, runID string) context.Context {
	l := With().
		Str("entity", entityType).
		Str("run_id", runID).
		Logger()
	return context.WithValue(ctx, loggerKey, l)
}

// Ctx returns the logger stored in ctx, or the global logger when none is.
func Ctx(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(loggerKey).(zerolog.Logger); ok {
		return l
	}
	return Logger()
}
