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

func insertLinkedContact(t *testing.T, db *DB, id, partnerID, email string, lmsUserID *string) {
	t.Helper()

	now := testTime()
	c := &models.Contact{
		ID:         id,
		PartnerID:  partnerID,
		LMSUserID:  lmsUserID,
		Email:      email,
		Name:       "Contact " + id,
		Active:     true,
		ModifiedAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := db.InsertContact(context.Background(), c); err != nil {
		t.Fatalf("InsertContact(%s) failed: %v", id, err)
	}
}

func rollupByPartner(t *testing.T, rollups []*models.PartnerRollup, partnerID string) *models.PartnerRollup {
	t.Helper()

	for _, r := range rollups {
		if r.PartnerID == partnerID {
			return r
		}
	}
	t.Fatalf("no rollup row for partner %s", partnerID)
	return nil
}

func TestRebuildRollupsContactAttribution(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := testTime()

	insertTestPartner(t, db, "p-1", "0019000000AaBbC", "Acme Partner")
	insertTestPartner(t, db, "p-2", "0019000000DdEeF", "Idle Partner")

	insertTestCourse(t, db, "c-a", "Foundations", 5)
	insertTestCourse(t, db, "c-b", "Deployment", 10)
	insertTestCourse(t, db, "c-exp", "Legacy Cert", 3)
	insertTestCourse(t, db, "c-zero", "Webinar Replay", 0)

	userID := "u-1"
	insertLinkedContact(t, db, "ct-1", "p-1", "one@example.com", &userID)
	// Second contact reaching the same user must not double-count anything.
	insertLinkedContact(t, db, "ct-2", "p-1", "one.alias@example.com", &userID)

	insertTestEnrollment(t, db, "e-1", "u-1", "c-a", models.EnrollmentCompleted)
	insertTestEnrollment(t, db, "e-2", "u-1", "c-b", models.EnrollmentCompleted)
	insertTestEnrollment(t, db, "e-3", "u-1", "c-b", models.EnrollmentInProgress)
	insertTestEnrollment(t, db, "e-4", "u-1", "c-zero", models.EnrollmentCompleted)

	expired := insertTestEnrollment(t, db, "e-5", "u-1", "c-exp", models.EnrollmentCompleted)
	past := now.Add(-time.Hour)
	expired.ExpiresAt = &past
	if err := db.UpdateEnrollment(ctx, expired); err != nil {
		t.Fatalf("UpdateEnrollment failed: %v", err)
	}

	written, err := db.RebuildPartnerRollups(ctx, models.AttributionContact, now)
	if err != nil {
		t.Fatalf("RebuildPartnerRollups failed: %v", err)
	}
	if written != 2 {
		t.Errorf("expected 2 rollup rows, got %d", written)
	}

	rollups, err := db.ListPartnerRollups(ctx)
	if err != nil {
		t.Fatalf("ListPartnerRollups failed: %v", err)
	}

	acme := rollupByPartner(t, rollups, "p-1")
	if acme.ActiveCredits != 15 {
		t.Errorf("active_credits = %v, want 15", acme.ActiveCredits)
	}
	if acme.ExpiredCredits != 3 {
		t.Errorf("expired_credits = %v, want 3", acme.ExpiredCredits)
	}
	if acme.CertCount != 3 {
		t.Errorf("certification_count = %d, want 3", acme.CertCount)
	}
	if acme.CertifiedUsers != 1 {
		t.Errorf("certified_users = %d, want 1", acme.CertifiedUsers)
	}
	if acme.Attribution != models.AttributionContact {
		t.Errorf("attribution = %q, want contact", acme.Attribution)
	}

	// A partner with no attributable activity still gets a row of zeros.
	idle := rollupByPartner(t, rollups, "p-2")
	if idle.ActiveCredits != 0 || idle.ExpiredCredits != 0 || idle.CertCount != 0 || idle.CertifiedUsers != 0 {
		t.Errorf("expected zero rollup for idle partner, got %+v", idle)
	}
}

func TestRebuildRollupsGroupAttribution(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := testTime()

	insertTestPartner(t, db, "p-1", "0019000000AaBbC", "Acme Partner")
	insertTestCourse(t, db, "c-a", "Foundations", 5)

	partnerID := "p-1"
	for _, gid := range []string{"g-1", "g-2"} {
		g := &models.Group{ID: gid, Name: "Team " + gid, PartnerID: &partnerID, ModifiedAt: now, CreatedAt: now, UpdatedAt: now}
		if err := db.UpsertGroup(ctx, g); err != nil {
			t.Fatalf("UpsertGroup(%s) failed: %v", gid, err)
		}
		m := &models.GroupMembership{GroupID: gid, UserID: "u-1", ModifiedAt: now, CreatedAt: now}
		if err := db.UpsertGroupMembership(ctx, m); err != nil {
			t.Fatalf("UpsertGroupMembership(%s) failed: %v", gid, err)
		}
	}

	insertTestEnrollment(t, db, "e-1", "u-1", "c-a", models.EnrollmentCompleted)

	// A contact link for a different user must not leak into group mode.
	otherUser := "u-2"
	insertLinkedContact(t, db, "ct-1", "p-1", "two@example.com", &otherUser)
	insertTestEnrollment(t, db, "e-2", "u-2", "c-a", models.EnrollmentCompleted)

	if _, err := db.RebuildPartnerRollups(ctx, models.AttributionGroup, now); err != nil {
		t.Fatalf("RebuildPartnerRollups failed: %v", err)
	}

	rollups, err := db.ListPartnerRollups(ctx)
	if err != nil {
		t.Fatalf("ListPartnerRollups failed: %v", err)
	}

	acme := rollupByPartner(t, rollups, "p-1")
	if acme.ActiveCredits != 5 {
		t.Errorf("active_credits = %v, want 5", acme.ActiveCredits)
	}
	// Membership in two groups of the same partner counts the user once.
	if acme.CertifiedUsers != 1 {
		t.Errorf("certified_users = %d, want 1", acme.CertifiedUsers)
	}
	if acme.Attribution != models.AttributionGroup {
		t.Errorf("attribution = %q, want group", acme.Attribution)
	}
}

func TestRebuildRollupsExcludesSoftDeleted(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := testTime()

	insertTestPartner(t, db, "p-1", "0019000000AaBbC", "Acme Partner")
	insertTestCourse(t, db, "c-a", "Foundations", 5)
	insertTestEnrollment(t, db, "e-1", "u-1", "c-a", models.EnrollmentCompleted)

	// The only path from p-1 to u-1 is a soft-deleted contact.
	userID := "u-1"
	deleted := now.Add(-time.Hour)
	c := &models.Contact{
		ID:         "ct-1",
		PartnerID:  "p-1",
		LMSUserID:  &userID,
		Email:      "gone@example.com",
		Name:       "Former Contact",
		ModifiedAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
		DeletedAt:  &deleted,
	}
	if err := db.InsertContact(ctx, c); err != nil {
		t.Fatalf("InsertContact failed: %v", err)
	}

	// Soft-deleted partners disappear from the rollup entirely.
	gone := &models.Partner{
		ID: "p-gone", CRMKey: "0019000000GgGgG", CRMIDRaw: "0019000000GgGgG",
		Name: "Departed Partner", Active: false,
		CreatedAt: now, UpdatedAt: now, DeletedAt: &deleted,
	}
	if err := db.InsertPartner(ctx, gone); err != nil {
		t.Fatalf("InsertPartner failed: %v", err)
	}

	written, err := db.RebuildPartnerRollups(ctx, models.AttributionContact, now)
	if err != nil {
		t.Fatalf("RebuildPartnerRollups failed: %v", err)
	}
	if written != 1 {
		t.Errorf("expected 1 rollup row, got %d", written)
	}

	rollups, err := db.ListPartnerRollups(ctx)
	if err != nil {
		t.Fatalf("ListPartnerRollups failed: %v", err)
	}
	acme := rollupByPartner(t, rollups, "p-1")
	if acme.ActiveCredits != 0 {
		t.Errorf("soft-deleted contact link contributed credits: %v", acme.ActiveCredits)
	}
}

func TestRebuildRollupsIsRepeatable(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := testTime()

	insertTestPartner(t, db, "p-1", "0019000000AaBbC", "Acme Partner")
	insertTestCourse(t, db, "c-a", "Foundations", 5)
	userID := "u-1"
	insertLinkedContact(t, db, "ct-1", "p-1", "one@example.com", &userID)
	insertTestEnrollment(t, db, "e-1", "u-1", "c-a", models.EnrollmentCompleted)

	if _, err := db.RebuildPartnerRollups(ctx, models.AttributionContact, now); err != nil {
		t.Fatalf("first rebuild failed: %v", err)
	}
	first, err := db.ListPartnerRollups(ctx)
	if err != nil {
		t.Fatalf("ListPartnerRollups failed: %v", err)
	}

	// Rebuilding from unchanged inputs is a full replace, not an append.
	if _, err := db.RebuildPartnerRollups(ctx, models.AttributionContact, now); err != nil {
		t.Fatalf("second rebuild failed: %v", err)
	}
	second, err := db.ListPartnerRollups(ctx)
	if err != nil {
		t.Fatalf("ListPartnerRollups failed: %v", err)
	}

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected exactly one row per rebuild, got %d then %d", len(first), len(second))
	}
	if first[0].ActiveCredits != second[0].ActiveCredits ||
		first[0].CertCount != second[0].CertCount ||
		first[0].CertifiedUsers != second[0].CertifiedUsers {
		t.Errorf("rebuild not repeatable: %+v vs %+v", first[0], second[0])
	}
}

func TestRebuildRollupsRejectsUnknownAttribution(t *testing.T) {
	db := setupTestDB(t)

	if _, err := db.RebuildPartnerRollups(context.Background(), models.Attribution("both"), testTime()); err == nil {
		t.Error("expected error for unknown attribution path")
	}
}
