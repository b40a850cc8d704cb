// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package models

import (
	"time"
)

// APIResponse is the envelope every ops endpoint returns. Status is
// "success" or "error"; Data carries the payload and Error is set only when
// Status is "error".
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata stamps a response with the server time and, for listings, the
// result count and the paging window that produced it.
type Metadata struct {
	Timestamp  time.Time   `json:"timestamp"`
	Count      int         `json:"count,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Pagination echoes the limit/offset window a listing was served with.
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// APIError is a machine-readable error code with a human-readable message.
//
// Codes in use: VALIDATION_ERROR, INVALID_ENTITY, NOT_FOUND,
// SYNC_IN_PROGRESS, TRIGGER_FAILED, ROLLUP_FAILED, STORE_ERROR.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
