// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/credsync/credsync/internal/config"
	"github.com/credsync/credsync/internal/models/lms"
)

func newTestLMSClient(t *testing.T, serverURL string) *LMSClient {
	t.Helper()
	return NewLMSClient(&config.LMSConfig{
		URL:          serverURL,
		APIKey:       "test-key",
		PageSize:     2,
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
	})
}

func TestLMSClientUsersPaging(t *testing.T) {
	var requests []*http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.Clone(context.Background()))

		page := r.URL.Query().Get("page")
		w.Header().Set("Content-Type", "application/json")
		switch page {
		case "1":
			fmt.Fprint(w, `[
				{"id": "u1", "email": "a@example.com", "first_name": "A", "last_name": "One", "status": "active", "modified_at": "2026-02-01T10:00:00Z"},
				{"id": "u2", "email": "b@example.com", "first_name": "B", "last_name": "Two", "status": "active", "modified_at": "2026-02-01T11:00:00Z"}
			]`)
		case "2":
			fmt.Fprint(w, `[
				{"id": "u3", "email": "c@example.com", "first_name": "C", "last_name": "Three", "status": "deactivated", "modified_at": "2026-02-01T12:00:00Z"}
			]`)
		default:
			fmt.Fprint(w, `[]`)
		}
	}))
	defer server.Close()

	client := newTestLMSClient(t, server.URL)
	pager := client.Users(nil)

	var users []lms.UserRecord
	for {
		batch, ok, err := pager.Next(context.Background())
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if !ok {
			break
		}
		users = append(users, batch...)
	}

	if len(users) != 3 {
		t.Fatalf("got %d users, want 3", len(users))
	}
	if users[2].ID != "u3" {
		t.Errorf("last user = %q, want u3", users[2].ID)
	}
	// Page 2 was short, so no page 3 request is made.
	if len(requests) != 2 {
		t.Fatalf("got %d requests, want 2", len(requests))
	}

	first := requests[0]
	if got := first.Header.Get("X-Api-Key"); got != "test-key" {
		t.Errorf("X-Api-Key = %q, want test-key", got)
	}
	q := first.URL.Query()
	if q.Get("page") != "1" || q.Get("limit") != "2" {
		t.Errorf("first request query = %v, want page=1 limit=2", q)
	}
	if q.Get("sort") != "modified" {
		t.Errorf("sort = %q, want modified", q.Get("sort"))
	}
	if q.Has("modified_since") {
		t.Error("full fetch should not send modified_since")
	}
	if requests[1].URL.Query().Get("page") != "2" {
		t.Errorf("second request page = %q, want 2", requests[1].URL.Query().Get("page"))
	}
}

func TestLMSClientIncrementalWindow(t *testing.T) {
	var gotSince string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSince = r.URL.Query().Get("modified_since")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	client := newTestLMSClient(t, server.URL)
	since := time.Date(2026, 2, 1, 10, 30, 0, 0, time.FixedZone("CET", 3600))

	_, _, err := client.Courses(&since).Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if gotSince != "2026-02-01T09:30:00Z" {
		t.Errorf("modified_since = %q, want UTC RFC3339 form", gotSince)
	}
}

func TestLMSClientDecodesWrappedCollection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"count": 57, "items": [
			{"id": "c1", "name": "Intro", "active": true, "modified_at": "2026-02-01T10:00:00Z"}
		]}`)
	}))
	defer server.Close()

	client := newTestLMSClient(t, server.URL)
	pager := client.Courses(nil)

	batch, ok, err := pager.Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if !ok || len(batch) != 1 || batch[0].ID != "c1" {
		t.Fatalf("batch = %+v, want single course c1", batch)
	}
	if pager.Total() != 57 {
		t.Errorf("Total() = %d, want 57 from the wrapper", pager.Total())
	}
}

func TestLMSClientRetriesOn429(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"id": "u1", "email": "a@example.com", "status": "active", "modified_at": "2026-02-01T10:00:00Z"}]`)
	}))
	defer server.Close()

	client := newTestLMSClient(t, server.URL)
	batch, ok, err := client.Users(nil).Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if !ok || len(batch) != 1 {
		t.Fatalf("batch = %+v, want one user after retries", batch)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestLMSClientGivesUpAfterMaxRetries(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestLMSClient(t, server.URL)
	_, _, err := client.Users(nil).Next(context.Background())
	if err == nil {
		t.Fatal("Next() error = nil, want rate-limit exhaustion")
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("error = %v, want ErrRateLimited", err)
	}
	var abandoned *AbandonedFetchError
	if !errors.As(err, &abandoned) {
		t.Fatalf("error = %v, want AbandonedFetchError", err)
	}
	if abandoned.Pages != 0 {
		t.Errorf("Pages = %d, want 0", abandoned.Pages)
	}
	// maxRetries of 3 means the initial attempt plus three retries.
	if attempts != 4 {
		t.Errorf("attempts = %d, want 4", attempts)
	}
}

func TestLMSClientServerErrorAbandons(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "upstream exploded")
	}))
	defer server.Close()

	client := newTestLMSClient(t, server.URL)
	_, _, err := client.Enrollments(nil).Next(context.Background())
	if err == nil {
		t.Fatal("Next() error = nil, want upstream status error")
	}

	var statusErr *UpstreamStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error = %v, want UpstreamStatusError", err)
	}
	if statusErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", statusErr.StatusCode)
	}
	if statusErr.Body != "upstream exploded" {
		t.Errorf("Body = %q, want the response body", statusErr.Body)
	}
}

func TestLMSClientPing(t *testing.T) {
	t.Run("healthy upstream", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Api-Key") != "test-key" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `[]`)
		}))
		defer server.Close()

		client := newTestLMSClient(t, server.URL)
		if err := client.Ping(context.Background()); err != nil {
			t.Errorf("Ping() error = %v", err)
		}
	})

	t.Run("bad credentials", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error": "invalid api key"}`)
		}))
		defer server.Close()

		client := newTestLMSClient(t, server.URL)
		err := client.Ping(context.Background())
		var statusErr *UpstreamStatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
			t.Errorf("Ping() error = %v, want 401 UpstreamStatusError", err)
		}
	})
}

func TestDecodeLMSCollection(t *testing.T) {
	t.Parallel()

	type row struct {
		ID string `json:"id"`
	}

	tests := []struct {
		name      string
		body      string
		wantIDs   []string
		wantTotal int
		wantErr   bool
	}{
		{
			name:      "bare array",
			body:      `[{"id": "a"}, {"id": "b"}]`,
			wantIDs:   []string{"a", "b"},
			wantTotal: -1,
		},
		{
			name:      "wrapped with count",
			body:      `{"count": 9, "items": [{"id": "a"}]}`,
			wantIDs:   []string{"a"},
			wantTotal: 9,
		},
		{
			name:      "wrapped with empty items",
			body:      `{"count": 0, "items": []}`,
			wantIDs:   nil,
			wantTotal: 0,
		},
		{
			name:    "empty body rejected",
			body:    ``,
			wantErr: true,
		},
		{
			name:    "object without items rejected",
			body:    `{"status": "ok"}`,
			wantErr: true,
		},
		{
			name:    "malformed json",
			body:    `{"count": `,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			items, total, err := decodeLMSCollection[row](strings.NewReader(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Fatal("decode error = nil, want failure")
				}
				return
			}
			if err != nil {
				t.Fatalf("decode error = %v", err)
			}
			if total != tt.wantTotal {
				t.Errorf("total = %d, want %d", total, tt.wantTotal)
			}
			if len(items) != len(tt.wantIDs) {
				t.Fatalf("items = %v, want ids %v", items, tt.wantIDs)
			}
			for i, want := range tt.wantIDs {
				if items[i].ID != want {
					t.Errorf("items[%d].ID = %q, want %q", i, items[i].ID, want)
				}
			}
		})
	}
}
