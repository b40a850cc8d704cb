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
	"github.com/credsync/credsync/internal/models/prm"
)

func newTestPRMClient(t *testing.T, serverURL string) *PRMClient {
	t.Helper()
	return NewPRMClient(&config.PRMConfig{
		URL:          serverURL,
		AccessKey:    "test-access-key",
		TenantID:     "tenant-9",
		PageSize:     2,
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
	})
}

func TestPRMClientAccountsPaging(t *testing.T) {
	var requests []*http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.Clone(context.Background()))

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("skip") {
		case "0":
			fmt.Fprint(w, `{"success": true, "data": {"count": 3, "results": [
				{"Id": "acc-1", "CrmId": "0019000000vGdeJAAS", "Name": "Northwind", "IsActive": true, "ModifiedDate": "2026-02-01T10:00:00Z"},
				{"Id": "acc-2", "CrmId": "0015000000aaaaaBBB", "Name": "Contoso", "IsActive": true, "ModifiedDate": "2026-02-01T11:00:00Z"}
			]}}`)
		case "2":
			fmt.Fprint(w, `{"success": true, "data": {"count": 3, "results": [
				{"Id": "acc-3", "CrmId": "0013000000cccccDDD", "Name": "Fabrikam", "IsActive": false, "ModifiedDate": "2026-02-01T12:00:00Z"}
			]}}`)
		default:
			fmt.Fprint(w, `{"success": true, "data": {"count": 3, "results": []}}`)
		}
	}))
	defer server.Close()

	client := newTestPRMClient(t, server.URL)
	pager := client.Accounts(nil)

	var accounts []prm.Account
	for {
		batch, ok, err := pager.Next(context.Background())
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if !ok {
			break
		}
		accounts = append(accounts, batch...)
	}

	if len(accounts) != 3 {
		t.Fatalf("got %d accounts, want 3", len(accounts))
	}
	if accounts[2].ID != "acc-3" {
		t.Errorf("last account = %q, want acc-3", accounts[2].ID)
	}
	if pager.Total() != 3 {
		t.Errorf("Total() = %d, want 3 from the envelope count", pager.Total())
	}
	if len(requests) != 2 {
		t.Fatalf("got %d requests, want 2 (second window was short)", len(requests))
	}

	first := requests[0]
	if !strings.HasSuffix(first.URL.Path, "/objects/Account") {
		t.Errorf("path = %q, want /objects/Account", first.URL.Path)
	}
	if got := first.Header.Get("X-Access-Key"); got != "test-access-key" {
		t.Errorf("X-Access-Key = %q, want test-access-key", got)
	}
	if got := first.Header.Get("X-Tenant-Id"); got != "tenant-9" {
		t.Errorf("X-Tenant-Id = %q, want tenant-9", got)
	}
	q := first.URL.Query()
	if q.Get("skip") != "0" || q.Get("take") != "2" {
		t.Errorf("first window query = %v, want skip=0 take=2", q)
	}
	if !strings.Contains(q.Get("fields"), "CrmId") {
		t.Errorf("fields = %q, want the account projection", q.Get("fields"))
	}
	if q.Has("filter") {
		t.Error("full fetch should not send a filter")
	}
	if requests[1].URL.Query().Get("skip") != "2" {
		t.Errorf("second window skip = %q, want 2", requests[1].URL.Query().Get("skip"))
	}
}

func TestPRMClientSendsFilter(t *testing.T) {
	var gotFilter string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFilter = r.URL.Query().Get("filter")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success": true, "data": {"count": 0, "results": []}}`)
	}))
	defer server.Close()

	client := newTestPRMClient(t, server.URL)
	since := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	_, _, err := client.Leads(incrementalFilter(&since)).Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	want := "ModifiedDate gt '2026-02-01T10:00:00Z'"
	if gotFilter != want {
		t.Errorf("filter = %q, want %q", gotFilter, want)
	}
}

func TestPRMClientRejectedEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success": false, "message": "invalid filter syntax"}`)
	}))
	defer server.Close()

	client := newTestPRMClient(t, server.URL)
	_, _, err := client.Accounts(nil).Next(context.Background())
	if err == nil {
		t.Fatal("Next() error = nil, want envelope rejection")
	}
	if !strings.Contains(err.Error(), "invalid filter syntax") {
		t.Errorf("error = %v, want the envelope message", err)
	}
}

func TestPRMClientMissingDataEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success": true}`)
	}))
	defer server.Close()

	client := newTestPRMClient(t, server.URL)
	_, _, err := client.Users(nil).Next(context.Background())
	if err == nil {
		t.Fatal("Next() error = nil, want missing-envelope error")
	}
	if !strings.Contains(err.Error(), "missing data envelope") {
		t.Errorf("error = %v, want missing data envelope", err)
	}
}

func TestPRMClientRetriesOn429(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success": true, "data": {"count": 1, "results": [
			{"Id": "lead-1", "FirstName": "Ana", "LastName": "Silva", "Email": "ana@example.com", "Status": "new", "ModifiedDate": "2026-02-01T10:00:00Z"}
		]}}`)
	}))
	defer server.Close()

	client := newTestPRMClient(t, server.URL)
	batch, ok, err := client.Leads(nil).Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if !ok || len(batch) != 1 || batch[0].ID != "lead-1" {
		t.Fatalf("batch = %+v, want lead-1 after retry", batch)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestPRMClientServerErrorAbandons(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "gateway timeout")
	}))
	defer server.Close()

	client := newTestPRMClient(t, server.URL)
	_, _, err := client.Accounts(nil).Next(context.Background())

	var statusErr *UpstreamStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error = %v, want UpstreamStatusError", err)
	}
	if statusErr.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want 502", statusErr.StatusCode)
	}
	var abandoned *AbandonedFetchError
	if !errors.As(err, &abandoned) {
		t.Fatalf("error = %v, want AbandonedFetchError wrapper", err)
	}
	if abandoned.Source != sourcePRM {
		t.Errorf("Source = %q, want prm", abandoned.Source)
	}
}

func TestPRMClientPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Access-Key") == "" || r.Header.Get("X-Tenant-Id") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success": true, "data": {"count": 0, "results": []}}`)
	}))
	defer server.Close()

	client := newTestPRMClient(t, server.URL)
	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
