// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/credsync/credsync/internal/logging"
	"github.com/credsync/credsync/internal/models"
	"github.com/credsync/credsync/internal/validation"
)

// sanitizeLogValue replaces control characters so request-derived strings
// cannot forge log lines.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON sends a JSON response. Operational state goes stale the moment
// it is read, so every response is marked uncacheable.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondError sends an error envelope and logs the underlying error when one
// is attached.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().
			Str("code", sanitizeLogValue(code)).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("API error")
	}

	respondJSON(w, status, &models.APIResponse{
		Status: "error",
		Metadata: models.Metadata{
			Timestamp: time.Now().UTC(),
		},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	})
}

// success wraps a payload in the standard envelope.
func success(data interface{}) *models.APIResponse {
	return &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp: time.Now().UTC(),
		},
	}
}

// successList wraps a collection payload with its count and paging window.
func successList(data interface{}, count int, page *models.Pagination) *models.APIResponse {
	return &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:  time.Now().UTC(),
			Count:      count,
			Pagination: page,
		},
	}
}

// validateRequest runs the struct validators and converts failures into the
// VALIDATION_ERROR envelope shape. Returns nil when the struct passes.
func validateRequest(v interface{}) *models.APIError {
	validationErr := validation.ValidateStruct(v)
	if validationErr == nil {
		return nil
	}

	apiErr := validationErr.ToAPIError()
	return &models.APIError{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	}
}

// intParam extracts an integer query parameter, falling back to defaultValue
// when absent or unparseable. Range enforcement belongs to validateRequest.
func intParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

// boolParam reports whether a query parameter parses as true. Absent or
// malformed values read as false.
func boolParam(r *http.Request, key string) bool {
	value := r.URL.Query().Get(key)
	if value == "" {
		return false
	}

	parsed, err := strconv.ParseBool(value)
	return err == nil && parsed
}

// timeParam parses an RFC 3339 query parameter. Absent is (nil, nil); a
// malformed value is an error the handler turns into a 400.
func timeParam(r *http.Request, key string) (*time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return nil, nil
	}

	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("%s must be an RFC 3339 timestamp: %w", key, err)
	}

	utc := parsed.UTC()
	return &utc, nil
}
