// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package models

import (
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestAllEntityTypesOrder(t *testing.T) {
	entities := AllEntityTypes()
	if len(entities) != 8 {
		t.Fatalf("entity count = %d, want 8", len(entities))
	}
	if entities[0] != EntityPartners {
		t.Errorf("first entity = %q, want partners (later pipelines resolve partner linkage)", entities[0])
	}

	seen := make(map[EntityType]bool, len(entities))
	for _, entity := range entities {
		if seen[entity] {
			t.Errorf("duplicate entity %q", entity)
		}
		seen[entity] = true
		if !entity.Valid() {
			t.Errorf("entity %q not valid against its own set", entity)
		}
	}
}

func TestParseEntityType(t *testing.T) {
	tests := []struct {
		input   string
		want    EntityType
		wantErr bool
	}{
		{input: "partners", want: EntityPartners},
		{input: "group-memberships", want: EntityGroupMemberships},
		{input: "course-properties", want: EntityCourseProperties},
		{input: "leads", want: EntityLeads},
		{input: "Partners", wantErr: true},
		{input: "users ", wantErr: true},
		{input: "", wantErr: true},
		{input: "martians", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseEntityType(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseEntityType(%q) = %q, want error", tt.input, got)
				}
				if !strings.Contains(err.Error(), "unknown entity type") {
					t.Errorf("error %q should name the unknown type", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEntityType(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseEntityType(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSyncModeValid(t *testing.T) {
	for _, mode := range []SyncMode{ModeIncremental, ModeFull} {
		if !mode.Valid() {
			t.Errorf("mode %q should be valid", mode)
		}
	}
	for _, mode := range []SyncMode{"", "partial", "Full"} {
		if mode.Valid() {
			t.Errorf("mode %q should be invalid", mode)
		}
	}
}

func TestRunStatusTerminal(t *testing.T) {
	if RunRunning.Terminal() {
		t.Error("running must not be terminal")
	}
	for _, status := range []RunStatus{RunCompleted, RunFailed, RunStale, RunCancelled} {
		if !status.Terminal() {
			t.Errorf("status %q should be terminal", status)
		}
		if !status.Valid() {
			t.Errorf("status %q should be valid", status)
		}
	}
	if !RunRunning.Valid() {
		t.Error("running should be valid")
	}
	if RunStatus("exploded").Valid() {
		t.Error("unknown status should be invalid")
	}
}

func TestScheduleDue(t *testing.T) {
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name     string
		schedule TaskSchedule
		want     bool
	}{
		{name: "never run", schedule: TaskSchedule{Enabled: true}, want: true},
		{name: "next run passed", schedule: TaskSchedule{Enabled: true, NextRunAt: &past}, want: true},
		{name: "next run exactly now", schedule: TaskSchedule{Enabled: true, NextRunAt: &now}, want: true},
		{name: "next run ahead", schedule: TaskSchedule{Enabled: true, NextRunAt: &future}, want: false},
		{name: "disabled overrides due", schedule: TaskSchedule{Enabled: false, NextRunAt: &past}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.schedule.Due(now); got != tt.want {
				t.Errorf("Due = %t, want %t", got, tt.want)
			}
		})
	}
}

func TestScheduleIntervalDuration(t *testing.T) {
	sched := TaskSchedule{Interval: 3600}
	if got := sched.IntervalDuration(); got != time.Hour {
		t.Errorf("IntervalDuration = %v, want 1h", got)
	}
}

func TestSyncRunDuration(t *testing.T) {
	started := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	finished := started.Add(90 * time.Second)
	now := started.Add(5 * time.Minute)

	run := SyncRun{StartedAt: started, FinishedAt: &finished}
	if got := run.Duration(now); got != 90*time.Second {
		t.Errorf("finished run duration = %v, want 90s", got)
	}

	open := SyncRun{StartedAt: started}
	if got := open.Duration(now); got != 5*time.Minute {
		t.Errorf("open run duration = %v, want 5m", got)
	}
}

func TestAttributionValid(t *testing.T) {
	for _, a := range []Attribution{AttributionContact, AttributionGroup} {
		if !a.Valid() {
			t.Errorf("attribution %q should be valid", a)
		}
	}
	for _, a := range []Attribution{"", "both", "Contact"} {
		if a.Valid() {
			t.Errorf("attribution %q should be invalid", a)
		}
	}
}

func TestAPIResponseMarshalling(t *testing.T) {
	resp := APIResponse{
		Status: "success",
		Data:   map[string]int{"partners": 3},
		Metadata: Metadata{
			Timestamp:  time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC),
			Count:      3,
			Pagination: &Pagination{Limit: 100, Offset: 0},
		},
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got := string(data)
	for _, want := range []string{`"status":"success"`, `"count":3`, `"limit":100`} {
		if !strings.Contains(got, want) {
			t.Errorf("payload %s missing %s", got, want)
		}
	}
	if strings.Contains(got, `"error"`) {
		t.Errorf("payload %s carries an error field for a success response", got)
	}
}

func TestSyncRunJSONOmitsEmptyError(t *testing.T) {
	run := SyncRun{
		ID:         "run-1",
		EntityType: EntityUsers,
		Status:     RunCompleted,
		StartedAt:  time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(run)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), `"error"`) {
		t.Errorf("payload %s should omit empty error", data)
	}
	if strings.Contains(string(data), `"finished_at"`) {
		t.Errorf("payload %s should omit nil finished_at", data)
	}
}
