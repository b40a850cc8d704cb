// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package database

import (
	"database/sql"
	"errors"
	"io"
	"strings"

	"github.com/credsync/credsync/internal/logging"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("database: not found")

// closeWithLog closes a resource and logs any error at debug level.
// Used in defer statements where the error cannot change the outcome.
func closeWithLog(closer io.Closer, resourceType string) {
	if err := closer.Close(); err != nil {
		logging.Debug().
			Err(err).
			Str("resource", resourceType).
			Msg("Failed to close database resource")
	}
}

// closeQuietly closes a resource ignoring any error. Only for paths where
// the connection is already known to be unusable.
func closeQuietly(closer io.Closer) {
	_ = closer.Close()
}

// rollbackQuietly rolls back a transaction, ignoring sql.ErrTxDone from
// transactions that already committed.
func rollbackQuietly(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		logging.Debug().
			Err(err).
			Msg("Failed to roll back transaction")
	}
}

// IsUniqueViolation reports whether err came from a unique or primary key
// constraint violation. DuckDB does not expose structured error codes through
// database/sql, so this matches on message text. Pipelines use it to fall
// back to an update when a row probed as absent turns out to exist.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}

// IsForeignKeyViolation reports whether err came from a foreign key
// constraint violation, which sync pipelines record as a skipped row
// rather than a failure.
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "violates foreign key constraint") ||
		strings.Contains(msg, "foreign key constraint")
}

// IsNotFound reports whether err is the package's not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
