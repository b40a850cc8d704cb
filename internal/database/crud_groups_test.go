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

func TestUpsertGroupLinkLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := testTime()

	insertTestPartner(t, db, "p-1", "0019000000AaBbC", "Acme Partner")

	partnerID := "p-1"
	g := &models.Group{
		ID:         "g-1",
		Name:       "Acme Engineers",
		PartnerID:  &partnerID,
		ModifiedAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := db.UpsertGroup(ctx, g); err != nil {
		t.Fatalf("UpsertGroup failed: %v", err)
	}

	got, err := db.GetGroup(ctx, "g-1")
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if got.PartnerID == nil || *got.PartnerID != "p-1" {
		t.Errorf("expected partner link p-1, got %v", got.PartnerID)
	}

	// A re-sync where the CRM reference no longer resolves clears the link.
	g.PartnerID = nil
	g.ModifiedAt = now.Add(time.Hour)
	if err := db.UpsertGroup(ctx, g); err != nil {
		t.Fatalf("UpsertGroup (relink) failed: %v", err)
	}

	got, err = db.GetGroup(ctx, "g-1")
	if err != nil {
		t.Fatalf("GetGroup after relink failed: %v", err)
	}
	if got.PartnerID != nil {
		t.Errorf("expected cleared partner link, got %v", *got.PartnerID)
	}

	counts, err := db.TableCounts(ctx)
	if err != nil {
		t.Fatalf("TableCounts failed: %v", err)
	}
	if counts["lms_groups"] != 1 {
		t.Errorf("expected 1 group row after upserts, got %d", counts["lms_groups"])
	}
}

func TestGroupMembershipProbeAndUpsert(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := testTime()

	g := &models.Group{ID: "g-1", Name: "Team", ModifiedAt: now, CreatedAt: now, UpdatedAt: now}
	if err := db.UpsertGroup(ctx, g); err != nil {
		t.Fatalf("UpsertGroup failed: %v", err)
	}

	exists, err := db.HasGroupMembership(ctx, "g-1", "u-1")
	if err != nil {
		t.Fatalf("HasGroupMembership failed: %v", err)
	}
	if exists {
		t.Error("membership should not exist before upsert")
	}

	m := &models.GroupMembership{GroupID: "g-1", UserID: "u-1", ModifiedAt: now, CreatedAt: now}
	if err := db.UpsertGroupMembership(ctx, m); err != nil {
		t.Fatalf("UpsertGroupMembership failed: %v", err)
	}

	exists, err = db.HasGroupMembership(ctx, "g-1", "u-1")
	if err != nil {
		t.Fatalf("HasGroupMembership after upsert failed: %v", err)
	}
	if !exists {
		t.Error("membership should exist after upsert")
	}

	// Same pair again merges rather than duplicating.
	m.ModifiedAt = now.Add(time.Hour)
	if err := db.UpsertGroupMembership(ctx, m); err != nil {
		t.Fatalf("UpsertGroupMembership (repeat) failed: %v", err)
	}

	counts, err := db.TableCounts(ctx)
	if err != nil {
		t.Fatalf("TableCounts failed: %v", err)
	}
	if counts["group_members"] != 1 {
		t.Errorf("expected 1 membership row, got %d", counts["group_members"])
	}
}
