// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

/*
Package logging provides the zerolog-based logging facade used by every
Credsync package.

The package maintains one global logger configured once at startup via Init.
Call sites use the package-level constructors (Info, Warn, Error, Err, ...)
rather than passing logger instances around; components that need default
fields derive a child logger with With:

	syncLog := logging.With().Str("component", "sync").Logger()

Three pieces of supporting machinery:

  - WithRun / Ctx attach a run-scoped child logger (entity type + run id) to
    a context so concurrent pipeline output stays attributable.
  - NewSlogLogger bridges zerolog into log/slog for libraries that require
    an *slog.Logger, currently the suture supervisor's event handler.
  - RedactSecret formats credentials for logs without disclosing them.

Output is JSON by default; the console format is intended for local
development only.
*/
package logging
