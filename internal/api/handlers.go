// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/credsync/credsync/internal/audit"
	"github.com/credsync/credsync/internal/database"
	"github.com/credsync/credsync/internal/models"
	syncer "github.com/credsync/credsync/internal/sync"
)

// defaultListLimit bounds listings when the client gives no limit.
const defaultListLimit = 100

// Store is the slice of the database layer the read endpoints need.
// Satisfied by *database.DB.
type Store interface {
	Ping(ctx context.Context) error
	GetRun(ctx context.Context, id string) (*models.SyncRun, error)
	ListRuns(ctx context.Context, filter models.RunFilter) ([]*models.SyncRun, error)
	ListSchedules(ctx context.Context) ([]*models.TaskSchedule, error)
	ListPartnerRollups(ctx context.Context) ([]*models.PartnerRollup, error)
}

// Runner starts sync runs. Satisfied by *sync.Engine.
type Runner interface {
	Run(ctx context.Context, entity models.EntityType, opts syncer.RunOptions) (*models.RunSummary, error)
}

// Rebuilder rebuilds the partner rollup cache. Satisfied by *rollup.Builder.
type Rebuilder interface {
	Rebuild(ctx context.Context, actor string) (int, error)
	Attribution() models.Attribution
}

// Handler carries the dependencies the endpoint methods share. The events
// store may be nil; the events listing then answers 503.
type Handler struct {
	store   Store
	runner  Runner
	rollups Rebuilder
	events  audit.Store
	version string
	started time.Time
}

// NewHandler builds the endpoint handler set.
func NewHandler(store Store, runner Runner, rollups Rebuilder, events audit.Store, version string) *Handler {
	return &Handler{
		store:   store,
		runner:  runner,
		rollups: rollups,
		events:  events,
		version: version,
		started: time.Now().UTC(),
	}
}

// listParams is the validated paging window shared by the listing endpoints.
type listParams struct {
	Limit  int `validate:"gte=1,lte=500"`
	Offset int `validate:"gte=0"`
}

// Health is the liveness probe. It answers as long as the process serves
// requests; readiness is the store-aware probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, success(map[string]interface{}{
		"status":         "ok",
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	}))
}

// Ready is the readiness probe. It fails when the store does not answer a
// ping, so load balancers stop routing before requests start erroring.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "STORE_ERROR", "store is not reachable", err)
		return
	}

	respondJSON(w, http.StatusOK, success(map[string]string{"status": "ready"}))
}

// ListRuns returns run history, newest first, filtered by entity, status and
// time window.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	filter := models.RunFilter{
		Limit:  intParam(r, "limit", defaultListLimit),
		Offset: intParam(r, "offset", 0),
	}

	if apiErr := validateRequest(&listParams{Limit: filter.Limit, Offset: filter.Offset}); apiErr != nil {
		respondValidationError(w, apiErr)
		return
	}

	if raw := r.URL.Query().Get("entity"); raw != "" {
		entity, err := models.ParseEntityType(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_ENTITY", err.Error(), nil)
			return
		}
		filter.EntityType = entity
	}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.RunStatus(raw)
		if !status.Valid() {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
				fmt.Sprintf("unknown run status %q", sanitizeLogValue(raw)), nil)
			return
		}
		filter.Status = status
	}

	var err error
	if filter.Since, err = timeParam(r, "since"); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if filter.Until, err = timeParam(r, "until"); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	runs, err := h.store.ListRuns(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "failed to list runs", err)
		return
	}

	respondJSON(w, http.StatusOK, successList(runs, len(runs), &models.Pagination{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}))
}

// GetRun returns a single run by id.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.store.GetRun(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND",
			fmt.Sprintf("no run with id %s", sanitizeLogValue(id)), nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "failed to load run", err)
		return
	}

	respondJSON(w, http.StatusOK, success(run))
}

// ListSchedules returns every per-entity schedule row.
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.store.ListSchedules(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "failed to list schedules", err)
		return
	}

	respondJSON(w, http.StatusOK, successList(schedules, len(schedules), nil))
}

// ListRollups returns the cached per-partner rollups.
func (h *Handler) ListRollups(w http.ResponseWriter, r *http.Request) {
	rollups, err := h.store.ListPartnerRollups(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "failed to list rollups", err)
		return
	}

	respondJSON(w, http.StatusOK, successList(rollups, len(rollups), nil))
}

// ListEvents returns audit events, newest first, filtered by type, entity,
// run, outcome and time window.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		respondError(w, http.StatusServiceUnavailable, "STORE_ERROR", "audit store is not configured", nil)
		return
	}

	filter := audit.DefaultQueryFilter()
	filter.Limit = intParam(r, "limit", filter.Limit)
	filter.Offset = intParam(r, "offset", 0)

	if apiErr := validateRequest(&listParams{Limit: filter.Limit, Offset: filter.Offset}); apiErr != nil {
		respondValidationError(w, apiErr)
		return
	}

	query := r.URL.Query()
	if raw := query.Get("type"); raw != "" {
		filter.Types = []audit.EventType{audit.EventType(raw)}
	}
	if raw := query.Get("entity"); raw != "" {
		entity, err := models.ParseEntityType(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_ENTITY", err.Error(), nil)
			return
		}
		filter.EntityType = entity
	}
	filter.RunID = query.Get("run_id")
	if raw := query.Get("outcome"); raw != "" {
		filter.Outcome = audit.Outcome(raw)
	}

	var err error
	if filter.Since, err = timeParam(r, "since"); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if filter.Until, err = timeParam(r, "until"); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	events, err := h.events.List(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "failed to list audit events", err)
		return
	}

	respondJSON(w, http.StatusOK, successList(events, len(events), &models.Pagination{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}))
}

// TriggerSync starts a synchronous run for one entity type. Query parameters:
// full=true forces a full sync, dry_run=true fetches and diffs without
// writing. The run executes on the request context; the response carries the
// summary even when the run itself failed, with the outcome in the payload.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	entity, err := models.ParseEntityType(chi.URLParam(r, "entity"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ENTITY", err.Error(), nil)
		return
	}

	opts := syncer.RunOptions{
		Mode:        models.ModeIncremental,
		DryRun:      boolParam(r, "dry_run"),
		TriggeredBy: models.TriggerAPI,
	}
	if boolParam(r, "full") {
		opts.Mode = models.ModeFull
	}

	summary, err := h.runner.Run(r.Context(), entity, opts)
	switch {
	case errors.Is(err, syncer.ErrRunInProgress):
		respondError(w, http.StatusConflict, "SYNC_IN_PROGRESS",
			fmt.Sprintf("a %s run is already active", entity), nil)
		return
	case summary == nil && err != nil:
		respondError(w, http.StatusInternalServerError, "TRIGGER_FAILED", "failed to execute sync run", err)
		return
	}

	respondJSON(w, http.StatusOK, success(summary))
}

// TriggerRollup rebuilds the partner rollup cache and reports how many
// partners it covers.
func (h *Handler) TriggerRollup(w http.ResponseWriter, r *http.Request) {
	partners, err := h.rollups.Rebuild(r.Context(), models.TriggerAPI)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "ROLLUP_FAILED", "failed to rebuild rollups", err)
		return
	}

	respondJSON(w, http.StatusOK, success(map[string]interface{}{
		"partners":    partners,
		"attribution": h.rollups.Attribution(),
	}))
}

// respondValidationError sends a 400 carrying the validator's field details.
func respondValidationError(w http.ResponseWriter, apiErr *models.APIError) {
	respondJSON(w, http.StatusBadRequest, &models.APIResponse{
		Status: "error",
		Metadata: models.Metadata{
			Timestamp: time.Now().UTC(),
		},
		Error: apiErr,
	})
}
