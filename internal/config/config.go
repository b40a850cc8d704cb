// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration loaded from environment variables and config files.
// Provides centralized configuration for every component: upstream API clients (LMS, PRM),
// the DuckDB store, sync pipelines, rollup builder, task scheduler and the HTTP trigger surface.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting via environment variables
//
// Configuration Categories:
//
//  1. Upstream APIs:
//     - LMS: Learning management API (page/limit pagination, X-Api-Key auth)
//     - PRM: Partner relationship API (filter/skip/take pagination, access key + tenant auth)
//
//  2. Infrastructure:
//     - Database: DuckDB configuration (path, memory, threads)
//     - Sync: Pipeline batching and pacing
//     - Rollup: Partner aggregate attribution mode
//     - Scheduler: Interval triggers, staleness sweeping, duplicate-run cleanup
//     - Server: HTTP trigger/health surface (host, port, CORS, rate limits)
//
//  3. Observability:
//     - Logging: Log levels and output formats
//
// Example - Load configuration from environment:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal("Failed to load config:", err)
//	}
//	// cfg.LMS.URL, cfg.Database.Path, etc. are now populated
//
// Validation:
// Load() validates all fields and returns an error if required environment variables are
// missing (LMS_URL, LMS_API_KEY, PRM_URL, PRM_ACCESS_KEY, PRM_TENANT_ID), values are
// malformed, or numeric settings fall outside their allowed ranges.
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access from multiple goroutines.
type Config struct {
	LMS       LMSConfig       `koanf:"lms"`
	PRM       PRMConfig       `koanf:"prm"`
	Database  DatabaseConfig  `koanf:"database"`
	Sync      SyncConfig      `koanf:"sync"`
	Rollup    RollupConfig    `koanf:"rollup"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// LMSConfig holds connection settings for the learning management system API.
// The LMS serves users, groups, group memberships, courses, course properties
// and enrollments over paginated JSON endpoints.
//
// Environment Variables:
//   - LMS_URL: Base URL of the LMS API (e.g., https://lms.example.com)
//   - LMS_API_KEY: API key sent in the X-Api-Key request header
//   - LMS_PAGE_SIZE: Records requested per page (default: 200)
//   - LMS_REQUEST_INTERVAL: Pause between successive page requests (default: 250ms)
//   - LMS_MAX_RETRIES: Retry attempts for a rate-limited page (default: 5)
//   - LMS_RETRY_BACKOFF: Fixed wait before retrying a rate-limited page (default: 5s)
//   - LMS_TIMEOUT: Per-request HTTP timeout (default: 30s)
type LMSConfig struct {
	URL             string        `koanf:"url"`
	APIKey          string        `koanf:"api_key"`
	PageSize        int           `koanf:"page_size"`
	RequestInterval time.Duration `koanf:"request_interval"`
	MaxRetries      int           `koanf:"max_retries"`
	RetryBackoff    time.Duration `koanf:"retry_backoff"`
	Timeout         time.Duration `koanf:"timeout"`
}

// PRMConfig holds connection settings for the partner relationship management API.
// The PRM serves accounts, users and leads through filter/skip/take queries wrapped
// in a success envelope.
//
// Environment Variables:
//   - PRM_URL: Base URL of the PRM API (e.g., https://prm.example.com)
//   - PRM_ACCESS_KEY: Static key sent in the X-Access-Key request header
//   - PRM_TENANT_ID: Tenant identifier sent in the X-Tenant-Id request header
//   - PRM_PAGE_SIZE: Records requested per take window (default: 100)
//   - PRM_REQUEST_INTERVAL: Pause between successive page requests (default: 250ms)
//   - PRM_MAX_RETRIES: Retry attempts for a rate-limited page (default: 5)
//   - PRM_RETRY_BACKOFF: Fixed wait before retrying a rate-limited page (default: 5s)
//   - PRM_TIMEOUT: Per-request HTTP timeout (default: 30s)
type PRMConfig struct {
	URL             string        `koanf:"url"`
	AccessKey       string        `koanf:"access_key"`
	TenantID        string        `koanf:"tenant_id"`
	PageSize        int           `koanf:"page_size"`
	RequestInterval time.Duration `koanf:"request_interval"`
	MaxRetries      int           `koanf:"max_retries"`
	RetryBackoff    time.Duration `koanf:"retry_backoff"`
	Timeout         time.Duration `koanf:"timeout"`
}

// DatabaseConfig holds DuckDB settings.
//
// Environment Variables:
//   - DATABASE_PATH: Path to the DuckDB database file (default: /data/credsync.duckdb)
//   - DATABASE_MAX_MEMORY: DuckDB memory limit, e.g. 2GB (default: 2GB)
//   - DATABASE_THREADS: DuckDB thread count, 0 = automatic (default: 0)
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// SyncConfig holds pipeline execution settings shared by all entity types.
//
// Environment Variables:
//   - SYNC_BATCH_PAUSE: Pause between successive upsert batches (default: 100ms)
//   - SYNC_NOT_FOUND_LIMIT: Maximum unresolved source keys reported per run (default: 50)
type SyncConfig struct {
	BatchPause    time.Duration `koanf:"batch_pause"`
	NotFoundLimit int           `koanf:"not_found_limit"`
}

// RollupConfig controls the partner aggregate builder.
//
// Environment Variables:
//   - ROLLUP_ATTRIBUTION: How enrollments attribute to partners, contact or group (default: contact)
//   - ROLLUP_REBUILD_ON_START: Rebuild aggregates once at process start (default: false)
type RollupConfig struct {
	Attribution    string `koanf:"attribution"`
	RebuildOnStart bool   `koanf:"rebuild_on_start"`
}

// SchedulerConfig controls interval triggering and run recovery.
//
// Environment Variables:
//   - SCHEDULER_ENABLED: Master toggle for the background scheduler (default: true)
//   - SCHEDULER_TICK_INTERVAL: How often due schedules are checked (default: 15s)
//   - SCHEDULER_STALE_AFTER: Age after which a running sync is marked stale (default: 30m)
//   - SCHEDULER_DEDUPE_WINDOW: Window for collapsing duplicate run records (default: 10s)
//   - SCHEDULER_DEFAULT_INTERVAL: Interval seeded for new schedules (default: 1h)
//   - SCHEDULER_DISABLED: Comma-separated entity types seeded disabled (default: none)
//   - SCHEDULER_AUDIT_RETENTION: Age after which audit events are deleted, 0 keeps forever (default: 2160h)
type SchedulerConfig struct {
	Enabled         bool          `koanf:"enabled"`
	TickInterval    time.Duration `koanf:"tick_interval"`
	StaleAfter      time.Duration `koanf:"stale_after"`
	DedupeWindow    time.Duration `koanf:"dedupe_window"`
	DefaultInterval time.Duration `koanf:"default_interval"`
	Disabled        []string      `koanf:"disabled"`
	AuditRetention  time.Duration `koanf:"audit_retention"`
}

// ServerConfig holds settings for the HTTP trigger and health surface.
//
// Environment Variables:
//   - SERVER_ENABLED: Master toggle for the HTTP server (default: true)
//   - HTTP_HOST: Bind address (default: 127.0.0.1)
//   - HTTP_PORT: Bind port (default: 8642)
//   - SERVER_TIMEOUT: Read/write timeout for HTTP requests (default: 30s)
//   - CORS_ORIGINS: Comma-separated allowed CORS origins (default: none)
//   - TRIGGER_RATE_LIMIT: Trigger requests allowed per minute per client (default: 30)
type ServerConfig struct {
	Enabled          bool          `koanf:"enabled"`
	Host             string        `koanf:"host"`
	Port             int           `koanf:"port"`
	Timeout          time.Duration `koanf:"timeout"`
	CORSOrigins      []string      `koanf:"cors_origins"`
	TriggerRateLimit int           `koanf:"trigger_rate_limit"`
}

// LoggingConfig holds logging settings.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, or error (default: info)
//   - LOG_FORMAT: json or console (default: json)
//   - LOG_CALLER: Include caller file:line in log output (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// ListenAddr returns the host:port address the HTTP server binds to.
func (s ServerConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads configuration from environment variables and optional config file.
// Configuration is loaded in the following order (later sources override earlier ones):
//  1. Built-in defaults
//  2. Config file (config.yaml if exists, or path specified in CREDSYNC_CONFIG env var)
//  3. Environment variables
//
// See LoadWithKoanf() for the underlying implementation.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
