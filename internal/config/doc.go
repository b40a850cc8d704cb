// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

/*
Package config provides layered configuration management for all Credsync components.

Configuration is loaded with Koanf v2 from three sources, later sources overriding
earlier ones:

 1. Built-in defaults (defaultConfig)
 2. An optional YAML config file (config.yaml, config.yml, /etc/credsync/config.yaml,
    or the path named by CREDSYNC_CONFIG)
 3. Environment variables (see envMappings for the full list)

Environment variables use flat names that map onto the nested configuration tree:

	LMS_URL                -> lms.url
	PRM_ACCESS_KEY         -> prm.access_key
	SCHEDULER_STALE_AFTER  -> scheduler.stale_after

Slice-valued settings (CORS_ORIGINS, SCHEDULER_DISABLED) accept comma-separated
strings in environment variables and real lists in YAML.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}
	db, err := database.New(cfg.Database)

Load validates the result before returning it. Required settings are the upstream
API endpoints and credentials: LMS_URL, LMS_API_KEY, PRM_URL, PRM_ACCESS_KEY and
PRM_TENANT_ID. Everything else carries a working default.

The returned Config is immutable and safe for concurrent reads.
*/
package config
