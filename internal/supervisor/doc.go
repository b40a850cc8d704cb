// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

// Package supervisor owns the suture service tree for the daemon.
//
// The tree has two layers under the root: workers (the scheduler loop and
// the recovery sweeper) and api (the ops HTTP server). A crashing service
// is restarted with backoff inside its layer without disturbing the other
// layer. Supervisor events are bridged into the structured logger through
// sutureslog.
package supervisor
