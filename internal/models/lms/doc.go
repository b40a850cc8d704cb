// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

// Package lms defines the wire format of the remote LMS collection API.
//
// Every collection endpoint returns a plain JSON array of records, paginated
// with page/limit query parameters. The API reports no total count; callers
// detect the end of a collection when a page comes back with fewer items than
// requested. Records carry a modified_at timestamp used as the incremental
// sync cursor; the modified_since query parameter is exclusive and results
// are ordered by modified_at ascending.
package lms
