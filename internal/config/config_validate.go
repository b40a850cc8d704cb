// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateLMS(); err != nil {
		return err
	}

	if err := c.validatePRM(); err != nil {
		return err
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateSync(); err != nil {
		return err
	}

	if err := c.validateRollup(); err != nil {
		return err
	}

	if err := c.validateScheduler(); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	return c.validateLogging()
}

// Page size and retry limits shared by both upstream clients
const (
	pageSizeMin     = 1
	pageSizeMax     = 1000
	maxRetriesLimit = 20
	minTimeout      = time.Second
	maxTimeout      = 10 * time.Minute
	maxInterval     = time.Minute
	maxBackoff      = 10 * time.Minute
)

// validateLMS validates the LMS API client configuration
func (c *Config) validateLMS() error {
	if c.LMS.URL == "" {
		return fmt.Errorf("LMS_URL is required")
	}
	if err := validateHTTPURL(c.LMS.URL, "LMS_URL"); err != nil {
		return fmt.Errorf("LMS_URL is invalid: %w", err)
	}

	if err := c.validateLMSAPIKey(); err != nil {
		return err
	}

	return validatePagingLimits("LMS", c.LMS.PageSize, c.LMS.RequestInterval,
		c.LMS.MaxRetries, c.LMS.RetryBackoff, c.LMS.Timeout)
}

// validateLMSAPIKey validates the LMS API key
func (c *Config) validateLMSAPIKey() error {
	if c.LMS.APIKey == "" {
		return fmt.Errorf("LMS_API_KEY is required")
	}
	if containsPlaceholder(c.LMS.APIKey) {
		return fmt.Errorf("LMS_API_KEY contains a placeholder value, set a real API key")
	}
	return nil
}

// validatePRM validates the PRM API client configuration
func (c *Config) validatePRM() error {
	if c.PRM.URL == "" {
		return fmt.Errorf("PRM_URL is required")
	}
	if err := validateHTTPURL(c.PRM.URL, "PRM_URL"); err != nil {
		return fmt.Errorf("PRM_URL is invalid: %w", err)
	}

	if err := c.validatePRMCredentials(); err != nil {
		return err
	}

	return validatePagingLimits("PRM", c.PRM.PageSize, c.PRM.RequestInterval,
		c.PRM.MaxRetries, c.PRM.RetryBackoff, c.PRM.Timeout)
}

// validatePRMCredentials validates the PRM access key and tenant identifier
func (c *Config) validatePRMCredentials() error {
	if c.PRM.AccessKey == "" {
		return fmt.Errorf("PRM_ACCESS_KEY is required")
	}
	if containsPlaceholder(c.PRM.AccessKey) {
		return fmt.Errorf("PRM_ACCESS_KEY contains a placeholder value, set a real access key")
	}
	if c.PRM.TenantID == "" {
		return fmt.Errorf("PRM_TENANT_ID is required")
	}
	return nil
}

// validatePagingLimits validates the shared pagination and retry settings of an upstream client.
// The prefix names the environment variable family in error messages (LMS or PRM).
func validatePagingLimits(prefix string, pageSize int, interval time.Duration,
	maxRetries int, backoff, timeout time.Duration) error {
	if pageSize < pageSizeMin || pageSize > pageSizeMax {
		return fmt.Errorf("%s_PAGE_SIZE must be between %d and %d", prefix, pageSizeMin, pageSizeMax)
	}
	if interval < 0 || interval > maxInterval {
		return fmt.Errorf("%s_REQUEST_INTERVAL must be between 0 and 1m", prefix)
	}
	if maxRetries < 0 || maxRetries > maxRetriesLimit {
		return fmt.Errorf("%s_MAX_RETRIES must be between 0 and %d", prefix, maxRetriesLimit)
	}
	if backoff <= 0 || backoff > maxBackoff {
		return fmt.Errorf("%s_RETRY_BACKOFF must be between 1ms and 10m", prefix)
	}
	if timeout < minTimeout || timeout > maxTimeout {
		return fmt.Errorf("%s_TIMEOUT must be between 1s and 10m", prefix)
	}
	return nil
}

// validateDatabase validates DuckDB configuration
func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("DATABASE_THREADS must be 0 (automatic) or a positive thread count")
	}
	return c.validateDatabaseMemory()
}

// validateDatabaseMemory validates the DuckDB memory limit format (e.g. 512MB, 2GB)
func (c *Config) validateDatabaseMemory() error {
	if c.Database.MaxMemory == "" {
		return nil
	}
	upper := strings.ToUpper(c.Database.MaxMemory)
	if !strings.HasSuffix(upper, "MB") && !strings.HasSuffix(upper, "GB") {
		return fmt.Errorf("DATABASE_MAX_MEMORY must end in MB or GB (e.g. 512MB, 2GB)")
	}
	return nil
}

// Sync pipeline limits
const (
	maxBatchPause    = time.Minute
	maxNotFoundLimit = 1000
)

// validateSync validates pipeline pacing configuration
func (c *Config) validateSync() error {
	if c.Sync.BatchPause < 0 || c.Sync.BatchPause > maxBatchPause {
		return fmt.Errorf("SYNC_BATCH_PAUSE must be between 0 and 1m")
	}
	if c.Sync.NotFoundLimit < 0 || c.Sync.NotFoundLimit > maxNotFoundLimit {
		return fmt.Errorf("SYNC_NOT_FOUND_LIMIT must be between 0 and %d", maxNotFoundLimit)
	}
	return nil
}

// validAttributions defines the allowed rollup attribution modes
var validAttributions = map[string]bool{
	"contact": true,
	"group":   true,
}

// validateRollup validates the rollup builder configuration
func (c *Config) validateRollup() error {
	if !validAttributions[c.Rollup.Attribution] {
		return fmt.Errorf("ROLLUP_ATTRIBUTION must be one of: contact, group")
	}
	return nil
}

// Scheduler limits
const (
	minTickInterval    = time.Second
	maxTickInterval    = 10 * time.Minute
	minStaleAfter      = time.Minute
	maxDedupeWindow    = time.Minute
	minDefaultInterval = time.Minute
)

// validateScheduler validates the scheduler configuration (only if enabled)
func (c *Config) validateScheduler() error {
	if !c.Scheduler.Enabled {
		return nil
	}

	if c.Scheduler.TickInterval < minTickInterval || c.Scheduler.TickInterval > maxTickInterval {
		return fmt.Errorf("SCHEDULER_TICK_INTERVAL must be between 1s and 10m")
	}
	if c.Scheduler.StaleAfter < minStaleAfter {
		return fmt.Errorf("SCHEDULER_STALE_AFTER must be at least 1m")
	}
	if c.Scheduler.DedupeWindow < 0 || c.Scheduler.DedupeWindow > maxDedupeWindow {
		return fmt.Errorf("SCHEDULER_DEDUPE_WINDOW must be between 0 and 1m")
	}
	if c.Scheduler.DefaultInterval < minDefaultInterval {
		return fmt.Errorf("SCHEDULER_DEFAULT_INTERVAL must be at least 1m")
	}
	if c.Scheduler.AuditRetention < 0 {
		return fmt.Errorf("SCHEDULER_AUDIT_RETENTION must be 0 (keep forever) or a positive duration")
	}
	return nil
}

// validateServer validates the HTTP server configuration (only if enabled)
func (c *Config) validateServer() error {
	if !c.Server.Enabled {
		return nil
	}

	if c.Server.Host == "" {
		return fmt.Errorf("HTTP_HOST is required when SERVER_ENABLED=true")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout < time.Second || c.Server.Timeout > 5*time.Minute {
		return fmt.Errorf("SERVER_TIMEOUT must be between 1s and 5m")
	}
	if c.Server.TriggerRateLimit < 1 {
		return fmt.Errorf("TRIGGER_RATE_LIMIT must be at least 1 request per minute")
	}
	return c.validateCORSOrigins()
}

// validateCORSOrigins validates each configured CORS origin
func (c *Config) validateCORSOrigins() error {
	for _, origin := range c.Server.CORSOrigins {
		if origin == "*" {
			continue
		}
		if err := validateHTTPURL(origin, "CORS_ORIGINS"); err != nil {
			return fmt.Errorf("CORS_ORIGINS entry %q is invalid: %w", origin, err)
		}
	}
	return nil
}

// validLogLevels defines the allowed log levels
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats defines the allowed log formats
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// placeholderPatterns defines common placeholder patterns that indicate
// the user forgot to set a real value. This prevents accidental deployment
// with template credentials still in place.
var placeholderPatterns = []string{
	"REPLACE",
	"CHANGEME",
	"CHANGE_ME",
	"YOUR_KEY",
	"YOUR_SECRET",
	"PLACEHOLDER",
	"EXAMPLE",
}

// containsPlaceholder checks if a credential value still carries a template placeholder
func containsPlaceholder(value string) bool {
	upperValue := strings.ToUpper(value)
	for _, pattern := range placeholderPatterns {
		if strings.Contains(upperValue, pattern) {
			return true
		}
	}
	return false
}
