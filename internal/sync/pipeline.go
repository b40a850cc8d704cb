// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/credsync/credsync/internal/database"
	"github.com/credsync/credsync/internal/logging"
	"github.com/credsync/credsync/internal/metrics"
	"github.com/credsync/credsync/internal/models"
)

// defaultNotFoundLimit bounds the retained not-found sample when config
// leaves the limit unset.
const defaultNotFoundLimit = 50

// maxSkippedIDSample bounds the per-run sample of foreign-key-skipped ids
// kept for diagnostics.
const maxSkippedIDSample = 20

// pipeline is one entity-type sync implementation. Implementations fetch
// remote pages, transform records, and upsert them through the shared page
// loop; the engine owns run lifecycle, cursor bookkeeping, and reporting.
type pipeline interface {
	entity() models.EntityType
	run(ctx context.Context, rc *runContext) error
}

// runContext carries one run's mutable state across pages.
type runContext struct {
	engine   *Engine
	run      *models.SyncRun
	notFound *notFoundList

	// since is the exclusive lower bound for incremental fetches; nil
	// fetches the whole collection.
	since *time.Time

	// maxCursor tracks the highest remote modification timestamp observed in
	// durably upserted batches. cursorFrozen stops advancement after the
	// first page with a hard row failure, so failed records fall inside the
	// next incremental window. deferCursor postpones the durable write to
	// run completion for pipelines whose upstream ordering makes per-page
	// advancement unsafe.
	maxCursor    time.Time
	cursorFrozen bool
	deferCursor  bool
}

func (rc *runContext) dryRun() bool { return rc.run.DryRun }

// batchResult summarizes one processed page.
type batchResult struct {
	stats       models.UpsertStats
	failed      int
	maxModified time.Time
}

// observe folds a remote modification timestamp into the page maximum.
func (r *batchResult) observe(modified time.Time) {
	if modified.After(r.maxModified) {
		r.maxModified = modified
	}
}

// skip counts one foreign-key skip, retaining a bounded id sample.
func (r *batchResult) skip(id string) {
	r.stats.Skipped++
	if len(r.stats.SkippedIDs) < maxSkippedIDSample {
		r.stats.SkippedIDs = append(r.stats.SkippedIDs, id)
	}
}

// runPages drives a pager to exhaustion, folding each page through process.
// It owns the shared per-page bookkeeping: run counters, persisted progress,
// cursor advancement, the progress callback, and the inter-batch pause.
func runPages[T any](ctx context.Context, rc *runContext, pager *Pager[T], process func(context.Context, []T) (batchResult, error)) error {
	pagesBefore := rc.run.Pages

	for {
		batch, ok, err := pager.Next(ctx)
		rc.run.Pages = pagesBefore + pager.Pages()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		result, processErr := process(ctx, batch)
		rc.fold(result, len(batch))
		rc.reportProgress(ctx, pager.Total())
		if processErr != nil {
			return processErr
		}

		rc.advanceCursor(ctx, result.maxModified)

		if err := sleepContext(ctx, rc.engine.cfg.Sync.BatchPause); err != nil {
			return err
		}
	}
}

// fold accumulates one page's outcome into the run counters.
func (rc *runContext) fold(result batchResult, batchLen int) {
	run := rc.run
	run.Processed += batchLen
	run.Created += result.stats.Inserted
	run.Updated += result.stats.Updated
	run.FKSkips += result.stats.Skipped
	run.Failed += result.failed
	metrics.RecordSyncBatch(run.EntityType.String(), batchLen)
	if result.failed > 0 {
		rc.cursorFrozen = true
	}
}

// reportProgress persists the run counters and invokes the progress callback.
// Persisting after every page keeps the run history endpoint live during
// long fetches; a persistence failure is logged, not fatal.
func (rc *runContext) reportProgress(ctx context.Context, total int) {
	if err := rc.engine.db.UpdateRunProgress(ctx, rc.run); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to persist run progress")
	}
	if fn := rc.engine.onProgress; fn != nil {
		fn(Progress{
			Entity:    rc.run.EntityType,
			RunID:     rc.run.ID,
			Pages:     rc.run.Pages,
			Processed: rc.run.Processed,
			Total:     total,
		})
	}
}

// advanceCursor moves the entity cursor to the page's maximum remote
// modification time once the page is durably upserted. Advancement is
// monotonic, skipped entirely for dry runs, and frozen for the rest of the
// run after the first hard row failure. Deferred pipelines accumulate the
// maximum here and write it once at completion.
func (rc *runContext) advanceCursor(ctx context.Context, maxModified time.Time) {
	if rc.dryRun() || rc.cursorFrozen || maxModified.IsZero() {
		return
	}
	if !maxModified.After(rc.maxCursor) {
		return
	}
	rc.maxCursor = maxModified
	if rc.deferCursor {
		return
	}
	rc.writeCursor(ctx, maxModified)
}

// flushCursor durably writes a deferred cursor at run completion.
func (rc *runContext) flushCursor(ctx context.Context) {
	if !rc.deferCursor || rc.dryRun() || rc.cursorFrozen || rc.maxCursor.IsZero() {
		return
	}
	rc.writeCursor(ctx, rc.maxCursor)
}

func (rc *runContext) writeCursor(ctx context.Context, cursor time.Time) {
	if err := rc.engine.db.AdvanceCursor(ctx, rc.run.EntityType, cursor, time.Now().UTC()); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Time("cursor", cursor).Msg("Failed to advance sync cursor")
		return
	}
	metrics.SetSyncCursor(rc.run.EntityType.String(), cursor)
}

// countRowError classifies a row-level store failure. Foreign-key rejections
// become counted skips; context cancellation aborts the run; anything else
// is a hard row failure that freezes cursor advancement but does not abort
// the batch.
func countRowError(ctx context.Context, result *batchResult, id string, err error) error {
	if database.IsForeignKeyViolation(err) {
		result.skip(id)
		logging.Ctx(ctx).Debug().Str("id", id).Msg("Foreign-key skip")
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("row upsert aborted: %w", err)
	}
	result.failed++
	logging.Ctx(ctx).Warn().Err(err).Str("id", id).Msg("Row upsert failed")
	return nil
}

// notFoundList collects identity-resolution misses, deduplicated and bounded
// so a misconfigured upstream cannot balloon the run record. The count keeps
// tracking past the retained sample.
type notFoundList struct {
	limit int
	total int
	items []string
	seen  map[string]bool
}

func newNotFoundList(limit int) *notFoundList {
	if limit <= 0 {
		limit = defaultNotFoundLimit
	}
	return &notFoundList{limit: limit, seen: make(map[string]bool)}
}

// Add records one miss. Duplicate references count once.
func (l *notFoundList) Add(ref string) {
	if ref == "" || l.seen[ref] {
		return
	}
	l.seen[ref] = true
	l.total++
	if len(l.items) < l.limit {
		l.items = append(l.items, ref)
	}
}

// Count returns the number of distinct misses observed.
func (l *notFoundList) Count() int { return l.total }

// Items returns the retained sample.
func (l *notFoundList) Items() []string { return l.items }
