// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package sync

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// maxErrorBodySize caps how much of an upstream error response body is read
// for error messages. Error bodies past this size are truncated.
const maxErrorBodySize = 64 * 1024 // 64KB

// readBodyForError reads an HTTP response body for inclusion in an error
// message, limited to maxErrorBodySize bytes. Bodies that exceed the limit
// get a truncation marker appended.
func readBodyForError(r io.Reader) []byte {
	limited := io.LimitReader(r, maxErrorBodySize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return []byte(fmt.Sprintf("<failed to read response body: %v>", err))
	}
	if len(body) > maxErrorBodySize {
		body = body[:maxErrorBodySize]
		body = append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// sleepContext waits for d or until the context is cancelled, whichever comes
// first. A non-positive duration returns immediately.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// joinName builds a single display name from first/last parts, tolerating
// either being empty.
func joinName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}

// normalizeEmail lowercases and trims an email address so matching is
// case-insensitive everywhere.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// splitDomains splits a semicolon-separated domain list into lowercased,
// trimmed entries, dropping empties. Returns nil for an empty list.
func splitDomains(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
