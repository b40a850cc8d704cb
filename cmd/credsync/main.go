// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

// Package main is the credsync entry point. All behavior lives in
// internal/cli; this file only stamps build metadata and maps command
// failure to a non-zero exit.
//
// Build with:
//
//	go build -ldflags "-X main.version=$(git describe --tags) \
//	  -X main.commit=$(git rev-parse --short HEAD) \
//	  -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/credsync
package main

import (
	"os"

	"github.com/credsync/credsync/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	err := cli.Execute(cli.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	})
	if err != nil {
		os.Exit(1)
	}
}
