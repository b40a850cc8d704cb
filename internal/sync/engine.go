// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package sync

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/credsync/credsync/internal/audit"
	"github.com/credsync/credsync/internal/config"
	"github.com/credsync/credsync/internal/database"
	"github.com/credsync/credsync/internal/logging"
	"github.com/credsync/credsync/internal/metrics"
	"github.com/credsync/credsync/internal/models"
)

// finalizeTimeout bounds the terminal-state writes of a run whose own
// context was cancelled.
const finalizeTimeout = 10 * time.Second

// RollupRebuilder rebuilds the partner rollup cache. The engine triggers it
// after every successful enrollments or course-properties run; the builder
// records its own metrics and audit events.
type RollupRebuilder interface {
	Rebuild(ctx context.Context, actor string) (int, error)
}

// Engine executes sync pipelines. One Engine serves all entity types;
// pipelines are resolved at construction from the closed models.EntityType
// enum, and per-entity single-flight is enforced in the store so it
// survives process restarts.
//
// An Engine is safe for concurrent use: different entity types may run
// concurrently, a second trigger for a running type is rejected with
// ErrRunInProgress.
type Engine struct {
	cfg      *config.Config
	db       *database.DB
	lms      LMSClientInterface
	prm      PRMClientInterface
	recorder *audit.Recorder
	rollup   RollupRebuilder

	onProgress ProgressFunc
	pipelines  map[models.EntityType]pipeline
}

// NewEngine builds an engine with one pipeline per entity type. The recorder
// and rollup rebuilder may be nil; a nil recorder drops audit events and a
// nil rebuilder skips the post-sync rollup trigger.
func NewEngine(cfg *config.Config, db *database.DB, lmsClient LMSClientInterface, prmClient PRMClientInterface, recorder *audit.Recorder, rollup RollupRebuilder) *Engine {
	e := &Engine{
		cfg:        cfg,
		db:         db,
		lms:        lmsClient,
		prm:        prmClient,
		recorder:   recorder,
		rollup:     rollup,
		onProgress: logProgress,
	}
	e.pipelines = map[models.EntityType]pipeline{
		models.EntityPartners:         &partnersPipeline{engine: e},
		models.EntityUsers:            &usersPipeline{engine: e},
		models.EntityGroups:           &groupsPipeline{engine: e},
		models.EntityGroupMemberships: &membershipsPipeline{engine: e},
		models.EntityCourses:          &coursesPipeline{engine: e},
		models.EntityCourseProperties: &coursePropertiesPipeline{engine: e},
		models.EntityEnrollments:      &enrollmentsPipeline{engine: e},
		models.EntityLeads:            &leadsPipeline{engine: e},
	}
	return e
}

// SetProgressFunc replaces the built-in progress consumer. Call before the
// engine starts running.
func (e *Engine) SetProgressFunc(fn ProgressFunc) {
	e.onProgress = fn
}

// RunOptions selects how one pipeline execution behaves. The zero value is
// an incremental, persisted run.
type RunOptions struct {
	// Mode defaults to incremental when empty.
	Mode models.SyncMode

	// DryRun fetches and transforms but writes nothing: upsert branches are
	// decided by the existing-id probe alone, the cursor does not move, and
	// the schedule is not consumed.
	DryRun bool

	// TriggeredBy records the trigger source on the run
	// (models.TriggerScheduler, TriggerCLI, TriggerAPI).
	TriggeredBy string
}

// Run executes the pipeline for one entity type and returns its summary.
// A trigger for an entity type that already has a running SyncRun fails
// with ErrRunInProgress; an entity type outside the closed set fails with
// ErrUnknownEntityType. On pipeline failure the summary is still returned
// alongside the error, carrying the partial counts.
func (e *Engine) Run(ctx context.Context, entity models.EntityType, opts RunOptions) (*models.RunSummary, error) {
	p, ok := e.pipelines[entity]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, entity)
	}

	mode := opts.Mode
	if mode == "" {
		mode = models.ModeIncremental
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("invalid sync mode %q", mode)
	}
	triggeredBy := opts.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = models.TriggerAPI
	}

	run := &models.SyncRun{
		ID:          uuid.NewString(),
		EntityType:  entity,
		Mode:        mode,
		DryRun:      opts.DryRun,
		Status:      models.RunRunning,
		TriggeredBy: triggeredBy,
		StartedAt:   time.Now().UTC(),
	}

	started, err := e.db.TryStartRun(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("failed to start %s run: %w", entity, err)
	}
	if !started {
		e.recorder.SyncRejected(ctx, entity, triggeredBy)
		return nil, fmt.Errorf("%s: %w", entity, ErrRunInProgress)
	}
	e.recorder.SyncTriggered(ctx, entity, run.ID, triggeredBy)

	ctx = logging.WithRun(ctx, entity.String(), run.ID)
	logging.Ctx(ctx).Info().
		Str("mode", string(mode)).
		Bool("dry_run", opts.DryRun).
		Str("triggered_by", triggeredBy).
		Msg("Sync run started")

	rc := e.newRunContext(ctx, run)
	runErr := e.executePipeline(ctx, p, rc)
	return e.finishRun(ctx, rc, runErr)
}

// RunAll executes every pipeline once in dependency order (partners first so
// later pipelines can resolve partner linkage). One entity type failing does
// not stop the others; the joined error carries every failure.
func (e *Engine) RunAll(ctx context.Context, opts RunOptions) ([]*models.RunSummary, error) {
	entities := models.AllEntityTypes()
	summaries := make([]*models.RunSummary, 0, len(entities))
	var errs []error

	for _, entity := range entities {
		if err := ctx.Err(); err != nil {
			return summaries, err
		}
		summary, err := e.Run(ctx, entity, opts)
		if summary != nil {
			summaries = append(summaries, summary)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entity, err))
		}
	}
	return summaries, errors.Join(errs...)
}

// newRunContext seeds the run state, loading the stored cursor for
// incremental runs. A missing schedule or cursor degrades to a full fetch;
// that is the bootstrap path for a fresh deployment.
func (e *Engine) newRunContext(ctx context.Context, run *models.SyncRun) *runContext {
	rc := &runContext{
		engine:   e,
		run:      run,
		notFound: newNotFoundList(e.cfg.Sync.NotFoundLimit),
	}
	if run.Mode != models.ModeIncremental {
		return rc
	}

	sched, err := e.db.GetSchedule(ctx, run.EntityType)
	switch {
	case err == nil && sched.Cursor != nil:
		since := *sched.Cursor
		rc.since = &since
		rc.maxCursor = since
	case err != nil && !errors.Is(err, database.ErrNotFound):
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to load sync cursor, fetching full collection")
	}
	return rc
}

// executePipeline runs the pipeline behind a panic boundary: a panicking
// pipeline becomes a failed run, never a crashed process.
func (e *Engine) executePipeline(ctx context.Context, p pipeline, rc *runContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Ctx(ctx).Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Pipeline panicked")
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()
	return p.run(ctx, rc)
}

// finishRun records the terminal state exactly once and emits the run's
// metrics, audit event, and schedule bookkeeping. When the run's context is
// already cancelled the terminal writes use a short detached context, so a
// shutdown mid-run leaves a failed run rather than one for the sweeper.
func (e *Engine) finishRun(ctx context.Context, rc *runContext, runErr error) (*models.RunSummary, error) {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
		defer cancel()
	}

	run := rc.run
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.NotFound = rc.notFound.Count()
	if runErr != nil {
		run.Status = models.RunFailed
		run.Error = runErr.Error()
	} else {
		run.Status = models.RunCompleted
		rc.flushCursor(ctx)
	}

	if err := e.db.FinishRun(ctx, run); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Failed to record run completion")
		if runErr == nil {
			runErr = fmt.Errorf("failed to record run completion: %w", err)
			run.Status = models.RunFailed
			run.Error = runErr.Error()
		}
	}

	duration := run.Duration(now)
	metrics.RecordSyncRun(run.EntityType.String(), string(run.Mode), string(run.Status), duration)
	metrics.RecordSyncFailures(run.EntityType.String(), "row_error", run.Failed)
	metrics.RecordSyncFailures(run.EntityType.String(), "fk_skip", run.FKSkips)

	e.updateSchedule(ctx, run, now)
	e.recorder.SyncCompleted(ctx, run, rc.notFound.Items())

	event := logging.Ctx(ctx).Info()
	if runErr != nil {
		event = logging.Ctx(ctx).Error().Err(runErr)
	}
	event.Str("status", string(run.Status)).
		Int("processed", run.Processed).
		Int("created", run.Created).
		Int("updated", run.Updated).
		Int("failed", run.Failed).
		Int("fk_skips", run.FKSkips).
		Int("not_found", run.NotFound).
		Int("pages", run.Pages).
		Dur("duration", duration).
		Msg("Sync run finished")

	summary := &models.RunSummary{
		RunID:       run.ID,
		EntityType:  run.EntityType,
		Mode:        run.Mode,
		DryRun:      run.DryRun,
		Status:      run.Status,
		Processed:   run.Processed,
		Created:     run.Created,
		Updated:     run.Updated,
		Failed:      run.Failed,
		FKSkips:     run.FKSkips,
		Pages:       run.Pages,
		NotFound:    rc.notFound.Items(),
		Duration:    duration,
		DurationMS:  duration.Milliseconds(),
		ErrorDetail: run.Error,
	}
	if runErr != nil {
		return summary, runErr
	}

	e.maybeRebuildRollups(ctx, run)
	return summary, nil
}

// updateSchedule records the run outcome on the entity's schedule and plans
// the next tick. Dry runs do not consume the schedule. Manual runs push the
// next scheduled tick forward too, since the data is equally fresh either
// way.
func (e *Engine) updateSchedule(ctx context.Context, run *models.SyncRun, now time.Time) {
	if run.DryRun {
		return
	}
	sched, err := e.db.GetSchedule(ctx, run.EntityType)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			logging.Ctx(ctx).Warn().Err(err).Msg("Failed to load schedule for run bookkeeping")
		}
		return
	}
	next := now.Add(sched.IntervalDuration())
	if err := e.db.UpdateScheduleRun(ctx, run.EntityType, run.Status, run.StartedAt, next, now); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to update schedule after run")
	}
}

// maybeRebuildRollups triggers the rollup rebuild after runs that change
// credit inputs. A rebuild failure does not fail the completed run; the
// rebuild is independently re-triggerable and the failure is logged and
// audited by the builder.
func (e *Engine) maybeRebuildRollups(ctx context.Context, run *models.SyncRun) {
	if e.rollup == nil || run.DryRun {
		return
	}
	if run.EntityType != models.EntityEnrollments && run.EntityType != models.EntityCourseProperties {
		return
	}
	if _, err := e.rollup.Rebuild(ctx, audit.ActorSystem); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Rollup rebuild after sync failed")
	}
}
