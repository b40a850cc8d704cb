// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

// Package prm defines the wire format of the remote PRM/CRM API.
//
// Objects (Account, User, Lead) are fetched from object-style endpoints that
// accept a SQL-like filter query parameter plus fields/skip/take paging, and
// respond with a { success, data: { count, results } } envelope. Field names
// on the wire are PascalCase, following the upstream system's convention.
package prm
