// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/credsync/credsync/internal/config"
	"github.com/credsync/credsync/internal/models"
)

func newLimitedRouter(t *testing.T, cfg *config.ServerConfig) (http.Handler, *fakeRunner) {
	t.Helper()
	store := &fakeStore{runs: map[string]*models.SyncRun{}}
	runner := &fakeRunner{summary: &models.RunSummary{RunID: "run-1", Status: models.RunCompleted}}
	handler := NewHandler(store, runner, &fakeRebuilder{partners: 1}, nil, "test")
	return NewRouter(cfg, handler), runner
}

func TestTriggerRateLimit(t *testing.T) {
	router, runner := newLimitedRouter(t, &config.ServerConfig{
		Timeout:          5 * time.Second,
		TriggerRateLimit: 2,
	})

	for i := 0; i < 2; i++ {
		code, _ := doRequest(t, router, http.MethodPost, "/api/v1/sync/users")
		if code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/users", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: status = %d, want 429", rec.Code)
	}
	if got := runner.callCount(); got != 2 {
		t.Errorf("runner calls = %d, want 2", got)
	}
}

func TestTriggerRateLimitSparesReads(t *testing.T) {
	router, _ := newLimitedRouter(t, &config.ServerConfig{
		Timeout:          5 * time.Second,
		TriggerRateLimit: 1,
	})

	code, _ := doRequest(t, router, http.MethodPost, "/api/v1/sync/users")
	if code != http.StatusOK {
		t.Fatalf("trigger: status = %d, want 200", code)
	}

	// The read side shares no budget with the triggers.
	for i := 0; i < 5; i++ {
		code, _ := doRequest(t, router, http.MethodGet, "/api/v1/runs")
		if code != http.StatusOK {
			t.Fatalf("read %d: status = %d, want 200", i+1, code)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	router, _ := newLimitedRouter(t, &config.ServerConfig{
		Timeout:     5 * time.Second,
		CORSOrigins: []string{"https://ops.example.com"},
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/runs", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://ops.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q, want configured origin", got)
	}
}

func TestCORSDisabledByDefault(t *testing.T) {
	router, _ := newLimitedRouter(t, &config.ServerConfig{Timeout: 5 * time.Second})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want unset", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newLimitedRouter(t, &config.ServerConfig{Timeout: 5 * time.Second})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "# HELP") {
		t.Error("metrics exposition missing HELP lines")
	}
}

func TestUnknownRoute(t *testing.T) {
	router, _ := newLimitedRouter(t, &config.ServerConfig{Timeout: 5 * time.Second})

	code, _ := doRequest(t, router, http.MethodGet, "/api/v1/nope")
	if code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", code)
	}
}

func TestTriggerRequiresPost(t *testing.T) {
	router, runner := newLimitedRouter(t, &config.ServerConfig{Timeout: 5 * time.Second})

	code, _ := doRequest(t, router, http.MethodGet, "/api/v1/sync/users")
	if code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", code)
	}
	if runner.callCount() != 0 {
		t.Error("runner invoked on GET")
	}
}

func TestNewServerAddress(t *testing.T) {
	store := &fakeStore{runs: map[string]*models.SyncRun{}}
	handler := NewHandler(store, &fakeRunner{}, &fakeRebuilder{}, nil, "test")
	srv := NewServer(&config.ServerConfig{
		Host:    "127.0.0.1",
		Port:    8642,
		Timeout: 30 * time.Second,
	}, handler)

	if srv.Addr != "127.0.0.1:8642" {
		t.Errorf("addr = %q, want 127.0.0.1:8642", srv.Addr)
	}
	if srv.ReadTimeout != 30*time.Second || srv.WriteTimeout != 30*time.Second {
		t.Errorf("timeouts = %v/%v, want 30s/30s", srv.ReadTimeout, srv.WriteTimeout)
	}
	if srv.Handler == nil {
		t.Error("handler not attached")
	}
}
