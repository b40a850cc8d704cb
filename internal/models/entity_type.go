// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package models

import "fmt"

// EntityType identifies one sync pipeline. The set is closed: pipelines are
// resolved from these tags at startup, never from free-form strings.
type EntityType string

const (
	EntityPartners         EntityType = "partners"
	EntityUsers            EntityType = "users"
	EntityGroups           EntityType = "groups"
	EntityGroupMemberships EntityType = "group-memberships"
	EntityCourses          EntityType = "courses"
	EntityCourseProperties EntityType = "course-properties"
	EntityEnrollments      EntityType = "enrollments"
	EntityLeads            EntityType = "leads"
)

// AllEntityTypes returns every syncable entity type in pipeline order.
// Partners come first so later pipelines can resolve partner linkage.
func AllEntityTypes() []EntityType {
	return []EntityType{
		EntityPartners,
		EntityUsers,
		EntityGroups,
		EntityGroupMemberships,
		EntityCourses,
		EntityCourseProperties,
		EntityEnrollments,
		EntityLeads,
	}
}

// Valid reports whether t is a member of the closed entity-type set.
func (t EntityType) Valid() bool {
	switch t {
	case EntityPartners, EntityUsers, EntityGroups, EntityGroupMemberships,
		EntityCourses, EntityCourseProperties, EntityEnrollments, EntityLeads:
		return true
	default:
		return false
	}
}

// String returns the wire/storage form of the entity type.
func (t EntityType) String() string {
	return string(t)
}

// ParseEntityType converts a user-supplied name into an EntityType.
// It accepts only exact members of the closed set.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown entity type %q (valid: %v)", s, AllEntityTypes())
	}
	return t, nil
}
