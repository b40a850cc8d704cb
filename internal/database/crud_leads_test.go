// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package database

import (
	"context"
	"testing"
	"time"

	"github.com/credsync/credsync/internal/models"
)

func TestUpsertLeadReattribution(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := testTime()

	// First pass: the CRM reference does not resolve yet, the lead is kept
	// unattributed with its key preserved.
	l := &models.Lead{
		ID:         "l-1",
		CRMKey:     "0019000000AaBbC",
		Name:       "Jordan Reyes",
		Email:      "jordan@example.com",
		Company:    "Example Corp",
		Status:     "new",
		Source:     "webinar",
		CreatedAt:  now,
		ModifiedAt: now,
		UpdatedAt:  now,
	}
	if err := db.UpsertLead(ctx, l); err != nil {
		t.Fatalf("UpsertLead failed: %v", err)
	}

	got, err := db.GetLead(ctx, "l-1")
	if err != nil {
		t.Fatalf("GetLead failed: %v", err)
	}
	if got.PartnerID != nil {
		t.Errorf("expected unattributed lead, got partner %v", *got.PartnerID)
	}
	if got.CRMKey != "0019000000AaBbC" {
		t.Errorf("crm_key not preserved: %q", got.CRMKey)
	}

	// Second pass after the partner arrives: the same lead id resolves.
	insertTestPartner(t, db, "p-1", "0019000000AaBbC", "Acme Partner")
	partnerID := "p-1"
	l.PartnerID = &partnerID
	l.Status = "qualified"
	l.ModifiedAt = now.Add(time.Hour)
	if err := db.UpsertLead(ctx, l); err != nil {
		t.Fatalf("UpsertLead (reattribution) failed: %v", err)
	}

	got, err = db.GetLead(ctx, "l-1")
	if err != nil {
		t.Fatalf("GetLead after reattribution failed: %v", err)
	}
	if got.PartnerID == nil || *got.PartnerID != "p-1" {
		t.Errorf("expected partner link p-1, got %v", got.PartnerID)
	}
	if got.Status != "qualified" {
		t.Errorf("status not merged: %q", got.Status)
	}

	counts, err := db.TableCounts(ctx)
	if err != nil {
		t.Fatalf("TableCounts failed: %v", err)
	}
	if counts["leads"] != 1 {
		t.Errorf("expected 1 lead row after upserts, got %d", counts["leads"])
	}
}

func TestExistingLeadIDs(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := testTime()

	l := &models.Lead{ID: "l-1", Name: "A", Email: "a@example.com", Status: "new", CreatedAt: now, ModifiedAt: now, UpdatedAt: now}
	if err := db.UpsertLead(ctx, l); err != nil {
		t.Fatalf("UpsertLead failed: %v", err)
	}

	existing, err := db.ExistingLeadIDs(ctx, []string{"l-1", "l-2"})
	if err != nil {
		t.Fatalf("ExistingLeadIDs failed: %v", err)
	}
	if !existing["l-1"] || existing["l-2"] {
		t.Errorf("unexpected probe result: %v", existing)
	}
}
