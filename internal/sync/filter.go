// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package sync

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Filter builds the SQL-like expression the PRM object API accepts in its
// filter query parameter: a conjunction of "Field op value" clauses joined
// by "and". Values render by type - strings single-quoted with embedded
// quotes doubled, timestamps RFC 3339 in UTC, numbers and booleans bare.
//
// A nil *Filter is valid and renders empty, so callers can pass the result
// of incrementalFilter straight through.
type Filter struct {
	clauses []string
}

// NewFilter returns an empty filter.
func NewFilter() *Filter { return &Filter{} }

// Eq appends "field eq value".
func (f *Filter) Eq(field string, value any) *Filter { return f.add(field, "eq", value) }

// Ne appends "field ne value".
func (f *Filter) Ne(field string, value any) *Filter { return f.add(field, "ne", value) }

// Gt appends "field gt value". The strict inequality makes Gt the cursor
// operator: records modified exactly at the cursor are never refetched.
func (f *Filter) Gt(field string, value any) *Filter { return f.add(field, "gt", value) }

// Ge appends "field ge value".
func (f *Filter) Ge(field string, value any) *Filter { return f.add(field, "ge", value) }

// Lt appends "field lt value".
func (f *Filter) Lt(field string, value any) *Filter { return f.add(field, "lt", value) }

// Le appends "field le value".
func (f *Filter) Le(field string, value any) *Filter { return f.add(field, "le", value) }

func (f *Filter) add(field, op string, value any) *Filter {
	f.clauses = append(f.clauses, fmt.Sprintf("%s %s %s", field, op, renderFilterValue(value)))
	return f
}

// Empty reports whether the filter has no clauses.
func (f *Filter) Empty() bool { return f == nil || len(f.clauses) == 0 }

// String renders the filter expression.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return strings.Join(f.clauses, " and ")
}

func renderFilterValue(value any) string {
	switch v := value.(type) {
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case time.Time:
		return "'" + v.UTC().Format(time.RFC3339) + "'"
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// incrementalFilter returns the PRM filter selecting records modified
// strictly after since, or nil for a full fetch.
func incrementalFilter(since *time.Time) *Filter {
	if since == nil {
		return nil
	}
	return NewFilter().Gt("ModifiedDate", *since)
}
