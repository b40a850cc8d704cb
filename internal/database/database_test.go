// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package database

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/credsync/credsync/internal/config"
	"github.com/credsync/credsync/internal/models"
)

// testDBSemaphore limits concurrent database creation to prevent resource
// exhaustion in CI. DuckDB CGO calls can hang when many connections operate
// concurrently, so database access is fully serialized across tests.
var testDBSemaphore = make(chan struct{}, 1)

// testDBMutex serializes the New call itself.
var testDBMutex sync.Mutex

// setupTestDB creates an in-memory test database with timeout protection.
// The semaphore is held for the entire test lifecycle, released via
// t.Cleanup, so only one test has an active DuckDB connection at a time.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	cfg := &config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "1GB",
	}

	type result struct {
		db  *DB
		err error
	}

	resultCh := make(chan result, 1)
	go func() {
		testDBMutex.Lock()
		db, err := New(cfg)
		testDBMutex.Unlock()
		resultCh <- result{db: db, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			t.Fatalf("Failed to create test database: %v", res.err)
		}
		t.Cleanup(func() {
			if err := res.db.Close(); err != nil {
				t.Errorf("Failed to close test database: %v", err)
			}
		})
		return res.db
	case <-time.After(120 * time.Second):
		t.Fatalf("Timeout: database creation took longer than 120s")
		return nil
	}
}

// testTime returns a fixed reference instant so cursor and expiry assertions
// are deterministic.
func testTime() time.Time {
	return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
}

// insertTestPartner writes a partner row and fails the test on error.
func insertTestPartner(t *testing.T, db *DB, id, crmKey, name string) *models.Partner {
	t.Helper()

	now := testTime()
	p := &models.Partner{
		ID:        id,
		CRMKey:    crmKey,
		CRMIDRaw:  crmKey,
		Name:      name,
		Tier:      "gold",
		Region:    "emea",
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.InsertPartner(context.Background(), p); err != nil {
		t.Fatalf("InsertPartner(%s) failed: %v", crmKey, err)
	}
	return p
}

// insertTestCourse writes a course row and fails the test on error.
func insertTestCourse(t *testing.T, db *DB, id, name string, credits float64) *models.Course {
	t.Helper()

	now := testTime()
	c := &models.Course{
		ID:         id,
		Name:       name,
		Credits:    credits,
		Active:     true,
		ModifiedAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := db.InsertCourse(context.Background(), c); err != nil {
		t.Fatalf("InsertCourse(%s) failed: %v", id, err)
	}
	return c
}

func TestNewDatabase(t *testing.T) {
	db := setupTestDB(t)

	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	version, err := db.GetCurrentSchemaVersion()
	if err != nil {
		t.Fatalf("GetCurrentSchemaVersion failed: %v", err)
	}
	if version != 0 {
		t.Errorf("expected schema version 0 for fresh database, got %d", version)
	}
}

func TestTableCounts(t *testing.T) {
	db := setupTestDB(t)

	counts, err := db.TableCounts(context.Background())
	if err != nil {
		t.Fatalf("TableCounts failed: %v", err)
	}

	for _, table := range countedTables {
		count, ok := counts[table]
		if !ok {
			t.Errorf("TableCounts missing table %s", table)
			continue
		}
		if count != 0 {
			t.Errorf("expected empty %s, got %d rows", table, count)
		}
	}
}

func TestCheckpoint(t *testing.T) {
	db := setupTestDB(t)

	if err := db.Checkpoint(context.Background()); err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}
}

func TestGetStmtCachesStatements(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	const query = `SELECT COUNT(*) FROM partners`

	first, err := db.getStmt(ctx, query)
	if err != nil {
		t.Fatalf("getStmt failed: %v", err)
	}
	second, err := db.getStmt(ctx, query)
	if err != nil {
		t.Fatalf("getStmt (cached) failed: %v", err)
	}
	if first != second {
		t.Error("expected the same prepared statement from the cache")
	}

	var count int
	if err := first.QueryRowContext(ctx).Scan(&count); err != nil {
		t.Fatalf("cached statement query failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 partners, got %d", count)
	}
}

func TestExistingIDs(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	insertTestPartner(t, db, "p-1", "001ABCDEFGHIJKL", "Acme Partner")

	existing, err := db.ExistingPartnerIDs(ctx, []string{"p-1", "p-missing"})
	if err != nil {
		t.Fatalf("ExistingPartnerIDs failed: %v", err)
	}
	if !existing["p-1"] {
		t.Error("expected p-1 to be reported as existing")
	}
	if existing["p-missing"] {
		t.Error("did not expect p-missing to be reported as existing")
	}

	empty, err := db.ExistingPartnerIDs(ctx, nil)
	if err != nil {
		t.Fatalf("ExistingPartnerIDs(nil) failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty probe result, got %v", empty)
	}
}
