// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package sync

import (
	"context"
	"fmt"
	"sort"

	"github.com/credsync/credsync/internal/database"
)

// CRM identifier lengths. The 18-character form appends a 3-character
// case-recovery suffix to the 15-character case-sensitive identifier; both
// encode the same identity, so the first 15 characters are the canonical key.
const (
	crmKeyCanonicalLen = 15
	crmKeyExtendedLen  = 18
)

// CanonicalCRMKey maps a CRM identifier of either accepted length to its
// canonical 15-character key. The mapping is idempotent:
// CanonicalCRMKey(CanonicalCRMKey(x)) == CanonicalCRMKey(x). Identifiers of
// any other length are rejected with ErrInvalidCRMID.
func CanonicalCRMKey(id string) (string, error) {
	switch len(id) {
	case crmKeyCanonicalLen:
		return id, nil
	case crmKeyExtendedLen:
		return id[:crmKeyCanonicalLen], nil
	default:
		return "", fmt.Errorf("%w: %q has length %d, want 15 or 18", ErrInvalidCRMID, id, len(id))
	}
}

// PartnerIndex maps canonical CRM keys to partner ids. One index is built
// per reconciliation pass, either from the remote account collection or from
// the local partners table. Lookups are exact-match only; the resolver never
// falls back to name matching.
type PartnerIndex struct {
	byKey map[string]string
}

// NewPartnerIndex returns an empty index.
func NewPartnerIndex() *PartnerIndex {
	return &PartnerIndex{byKey: make(map[string]string)}
}

// NewPartnerIndexFromStore loads the canonical-key index from the local
// partners table. Soft-deleted partners are excluded by the store query.
func NewPartnerIndexFromStore(ctx context.Context, db *database.DB) (*PartnerIndex, error) {
	keys, err := db.PartnerKeyIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load partner key index: %w", err)
	}
	return &PartnerIndex{byKey: keys}, nil
}

// Add registers a canonical key for a partner id. Later adds win, matching
// last-write-wins upsert semantics.
func (ix *PartnerIndex) Add(canonicalKey, partnerID string) {
	ix.byKey[canonicalKey] = partnerID
}

// Resolve maps a raw CRM identifier to a partner id. The boolean is false
// when the identifier is valid but no partner carries its canonical key; an
// identifier of invalid length is an error.
func (ix *PartnerIndex) Resolve(rawID string) (string, bool, error) {
	key, err := CanonicalCRMKey(rawID)
	if err != nil {
		return "", false, err
	}
	id, ok := ix.byKey[key]
	return id, ok, nil
}

// Contains reports whether the canonical key is present.
func (ix *PartnerIndex) Contains(canonicalKey string) bool {
	_, ok := ix.byKey[canonicalKey]
	return ok
}

// Len returns the number of indexed keys.
func (ix *PartnerIndex) Len() int { return len(ix.byKey) }

// Keys returns the canonical keys in sorted order, for deterministic
// reporting.
func (ix *PartnerIndex) Keys() []string {
	keys := make([]string, 0, len(ix.byKey))
	for key := range ix.byKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
