// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package sync

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/credsync/credsync/internal/logging"
	"github.com/credsync/credsync/internal/metrics"
)

// doGetWithRetry performs an HTTP GET with client-side rate limiting and a
// capped fixed-backoff retry loop for HTTP 429. The limiter enforces the
// configured inter-request delay on every attempt, independent of the 429
// suspension; a Retry-After header (RFC 6585) overrides the fixed backoff
// when present. The same URL is retried, so no page is ever skipped.
// Exhausting the retry budget surfaces ErrRateLimited.
func doGetWithRetry(ctx context.Context, hc *http.Client, limiter *rate.Limiter, reqURL string, header http.Header, maxRetries int, backoff time.Duration, source string) (*http.Response, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		for key, values := range header {
			for _, value := range values {
				req.Header.Add(key, value)
			}
		}

		resp, err := hc.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		// Rate limited - close body and retry the same page with backoff
		_ = resp.Body.Close()
		metrics.RecordRateLimited(source)

		if attempt == maxRetries {
			lastErr = fmt.Errorf("%s: %w after %d retries", source, ErrRateLimited, maxRetries)
			break
		}

		delay := backoff
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				delay = seconds
			}
		}
		logging.Debug().Str("source", source).Int("attempt", attempt+1).Dur("delay", delay).Msg("Rate limited, backing off")

		select {
		case <-time.After(delay):
			// Continue to next attempt
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}
