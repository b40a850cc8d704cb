// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/credsync/credsync/internal/config"
)

// NewRouter assembles the operational HTTP surface. Probes and metrics sit at
// the root; everything else lives under /api/v1. The POST triggers share a
// per-client rate limit so a runaway caller cannot monopolize run slots.
func NewRouter(cfg *config.ServerConfig, handler *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(telemetry)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         86400,
		}))
	}

	r.Get("/healthz", handler.Health)
	r.Get("/readyz", handler.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/runs", handler.ListRuns)
		r.Get("/runs/{id}", handler.GetRun)
		r.Get("/schedules", handler.ListSchedules)
		r.Get("/rollups", handler.ListRollups)
		r.Get("/events", handler.ListEvents)

		r.Group(func(r chi.Router) {
			if cfg.TriggerRateLimit > 0 {
				r.Use(httprate.LimitByIP(cfg.TriggerRateLimit, time.Minute))
			}
			r.Post("/sync/{entity}", handler.TriggerSync)
			r.Post("/rollup/rebuild", handler.TriggerRollup)
		})
	})

	return r
}

// NewServer builds the http.Server the supervisor runs. Read and write
// timeouts come from config; triggers run synchronously, so the write timeout
// is also the ceiling on a manually triggered run.
func NewServer(cfg *config.ServerConfig, handler *Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           NewRouter(cfg, handler),
		ReadTimeout:       cfg.Timeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Timeout,
		IdleTimeout:       120 * time.Second,
	}
}
