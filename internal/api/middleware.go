// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/credsync/credsync/internal/logging"
	"github.com/credsync/credsync/internal/metrics"
)

// telemetry records per-request metrics and an access log line. Metrics are
// labeled with the chi route pattern, not the raw path, so /api/v1/runs/{id}
// stays one series no matter how many run ids pass through it.
func telemetry(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		metrics.RecordAPIRequest(r.Method, pattern, strconv.Itoa(status), duration)

		evt := logging.Debug()
		if status >= http.StatusInternalServerError {
			evt = logging.Warn()
		}
		evt.
			Str("method", r.Method).
			Str("path", sanitizeLogValue(r.URL.Path)).
			Str("route", pattern).
			Int("status", status).
			Dur("duration", duration).
			Str("remote", r.RemoteAddr).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
