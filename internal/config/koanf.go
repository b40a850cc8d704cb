// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/credsync/config.yaml",
}

// ConfigPathEnvVar overrides the config file search when set to an existing file path.
const ConfigPathEnvVar = "CREDSYNC_CONFIG"

// defaultConfig returns the built-in defaults applied before any config file
// or environment variable is consulted. Required credentials (LMS_URL,
// LMS_API_KEY, PRM_URL, PRM_ACCESS_KEY, PRM_TENANT_ID) deliberately default
// to empty so validation fails loudly rather than syncing against nothing.
func defaultConfig() *Config {
	return &Config{
		LMS: LMSConfig{
			URL:             "",
			APIKey:          "",
			PageSize:        200,
			RequestInterval: 250 * time.Millisecond,
			MaxRetries:      5,
			RetryBackoff:    5 * time.Second,
			Timeout:         30 * time.Second,
		},
		PRM: PRMConfig{
			URL:             "",
			AccessKey:       "",
			TenantID:        "",
			PageSize:        100,
			RequestInterval: 250 * time.Millisecond,
			MaxRetries:      5,
			RetryBackoff:    5 * time.Second,
			Timeout:         30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:      "/data/credsync.duckdb",
			MaxMemory: "2GB",
			Threads:   0,
		},
		Sync: SyncConfig{
			BatchPause:    100 * time.Millisecond,
			NotFoundLimit: 50,
		},
		Rollup: RollupConfig{
			Attribution:    "contact",
			RebuildOnStart: false,
		},
		Scheduler: SchedulerConfig{
			Enabled:         true,
			TickInterval:    15 * time.Second,
			StaleAfter:      30 * time.Minute,
			DedupeWindow:    10 * time.Second,
			DefaultInterval: time.Hour,
			Disabled:        nil,
			AuditRetention:  90 * 24 * time.Hour,
		},
		Server: ServerConfig{
			Enabled:          true,
			Host:             "127.0.0.1",
			Port:             8642,
			Timeout:          30 * time.Second,
			CORSOrigins:      nil,
			TriggerRateLimit: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// Transform environment variable names to koanf paths:
	// LMS_API_KEY -> lms.api_key
	// SCHEDULER_STALE_AFTER -> scheduler.stale_after
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	// Unmarshal into Config struct
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file that exists, or empty string.
// The CREDSYNC_CONFIG environment variable takes precedence over default paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths lists configuration paths whose environment variable form is a
// comma-separated string that must be converted to a string slice before unmarshaling.
var sliceConfigPaths = []string{
	"server.cors_origins",
	"scheduler.disabled",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// YAML config files provide real lists; only environment variables need this conversion.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		if !k.Exists(path) {
			continue
		}

		raw := k.Get(path)
		str, ok := raw.(string)
		if !ok {
			continue
		}

		parts := strings.Split(str, ",")
		values := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				values = append(values, trimmed)
			}
		}

		if err := k.Set(path, values); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}

	return nil
}

// envMappings maps environment variable names to koanf configuration paths.
// Only listed variables participate in configuration; everything else in the
// process environment is ignored.
var envMappings = map[string]string{
	// LMS API
	"LMS_URL":              "lms.url",
	"LMS_API_KEY":          "lms.api_key",
	"LMS_PAGE_SIZE":        "lms.page_size",
	"LMS_REQUEST_INTERVAL": "lms.request_interval",
	"LMS_MAX_RETRIES":      "lms.max_retries",
	"LMS_RETRY_BACKOFF":    "lms.retry_backoff",
	"LMS_TIMEOUT":          "lms.timeout",

	// PRM API
	"PRM_URL":              "prm.url",
	"PRM_ACCESS_KEY":       "prm.access_key",
	"PRM_TENANT_ID":        "prm.tenant_id",
	"PRM_PAGE_SIZE":        "prm.page_size",
	"PRM_REQUEST_INTERVAL": "prm.request_interval",
	"PRM_MAX_RETRIES":      "prm.max_retries",
	"PRM_RETRY_BACKOFF":    "prm.retry_backoff",
	"PRM_TIMEOUT":          "prm.timeout",

	// Database
	"DATABASE_PATH":       "database.path",
	"DATABASE_MAX_MEMORY": "database.max_memory",
	"DATABASE_THREADS":    "database.threads",

	// Sync pipelines
	"SYNC_BATCH_PAUSE":     "sync.batch_pause",
	"SYNC_NOT_FOUND_LIMIT": "sync.not_found_limit",

	// Rollup builder
	"ROLLUP_ATTRIBUTION":      "rollup.attribution",
	"ROLLUP_REBUILD_ON_START": "rollup.rebuild_on_start",

	// Scheduler
	"SCHEDULER_ENABLED":          "scheduler.enabled",
	"SCHEDULER_TICK_INTERVAL":    "scheduler.tick_interval",
	"SCHEDULER_STALE_AFTER":      "scheduler.stale_after",
	"SCHEDULER_DEDUPE_WINDOW":    "scheduler.dedupe_window",
	"SCHEDULER_DEFAULT_INTERVAL": "scheduler.default_interval",
	"SCHEDULER_DISABLED":         "scheduler.disabled",
	"SCHEDULER_AUDIT_RETENTION":  "scheduler.audit_retention",

	// HTTP server
	"SERVER_ENABLED":     "server.enabled",
	"HTTP_HOST":          "server.host",
	"HTTP_PORT":          "server.port",
	"SERVER_TIMEOUT":     "server.timeout",
	"CORS_ORIGINS":       "server.cors_origins",
	"TRIGGER_RATE_LIMIT": "server.trigger_rate_limit",

	// Logging
	"LOG_LEVEL":  "logging.level",
	"LOG_FORMAT": "logging.format",
	"LOG_CALLER": "logging.caller",
}

// envTransformFunc maps an environment variable name to its koanf path.
// Returning an empty string tells the env provider to skip the variable,
// which keeps unrelated process environment out of the configuration tree.
func envTransformFunc(s string) string {
	if mapped, ok := envMappings[s]; ok {
		return mapped
	}
	return ""
}
