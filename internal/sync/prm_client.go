// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package sync

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/credsync/credsync/internal/config"
	"github.com/credsync/credsync/internal/models"
	"github.com/credsync/credsync/internal/models/prm"
)

// sourcePRM labels PRM traffic in logs, metrics, and errors.
const sourcePRM = "prm"

// Per-object field projections. Fetching only the fields the transforms read
// keeps PRM payloads small.
const (
	accountFields = "Id,CrmId,Name,Tier,Region,IsActive,WebDomains,ModifiedDate"
	userFields    = "Id,AccountId,Email,FirstName,LastName,Title,IsActive,ModifiedDate"
	leadFields    = "Id,CrmAccountId,FirstName,LastName,Email,Company,Status,Source,CreatedDate,ModifiedDate"
)

// PRMClientInterface is the PRM surface the pipelines consume. A nil filter
// fetches the whole object collection.
type PRMClientInterface interface {
	Ping(ctx context.Context) error
	Accounts(filter *Filter) *Pager[prm.Account]
	Users(filter *Filter) *Pager[prm.User]
	Leads(filter *Filter) *Pager[prm.Lead]
}

// PRMClient talks to the PRM object API.
//
// Request shape: GET {base}/objects/{Object}?filter=...&fields=...&skip=N&take=M
// with X-Access-Key and X-Tenant-Id headers. Every response is wrapped in
// {success, data: {count, results}}; the client checks success, unwraps the
// envelope, and decodes results into the caller's record type. A false
// success or a missing data envelope is an error. Count is the exact number
// of objects matching the filter, so pager totals from the PRM are exact.
//
// Thread safety: safe for concurrent use; each request builds its own
// http.Request.
type PRMClient struct {
	baseURL      string
	accessKey    string
	tenantID     string
	pageSize     int
	client       *http.Client
	limiter      *rate.Limiter
	breaker      *gobreaker.CircuitBreaker[any]
	maxRetries   int
	retryBackoff time.Duration
}

var _ PRMClientInterface = (*PRMClient)(nil)

// NewPRMClient creates a PRM API client from configuration. Zero-valued
// tuning fields fall back to safe defaults.
func NewPRMClient(cfg *config.PRMConfig) *PRMClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	retryBackoff := cfg.RetryBackoff
	if retryBackoff <= 0 {
		retryBackoff = time.Second
	}

	return &PRMClient{
		baseURL:      strings.TrimRight(cfg.URL, "/"),
		accessKey:    cfg.AccessKey,
		tenantID:     cfg.TenantID,
		pageSize:     pageSize,
		client:       &http.Client{Timeout: timeout},
		limiter:      newIntervalLimiter(cfg.RequestInterval),
		breaker:      newUpstreamBreaker("prm-api"),
		maxRetries:   cfg.MaxRetries,
		retryBackoff: retryBackoff,
	}
}

// Ping verifies connectivity and credentials with a minimal Account request.
func (c *PRMClient) Ping(ctx context.Context) error {
	_, _, err := fetchPRMPage[prm.Account](ctx, c, "Account", "Id", nil, 0, 1)
	if err != nil {
		return fmt.Errorf("prm ping failed: %w", err)
	}
	return nil
}

// Accounts pages the Account object collection.
func (c *PRMClient) Accounts(filter *Filter) *Pager[prm.Account] {
	return objectPager[prm.Account](c, models.EntityPartners, "Account", accountFields, filter)
}

// Users pages the User object collection.
func (c *PRMClient) Users(filter *Filter) *Pager[prm.User] {
	return objectPager[prm.User](c, models.EntityPartners, "User", userFields, filter)
}

// Leads pages the Lead object collection.
func (c *PRMClient) Leads(filter *Filter) *Pager[prm.Lead] {
	return objectPager[prm.Lead](c, models.EntityLeads, "Lead", leadFields, filter)
}

func (c *PRMClient) header() http.Header {
	header := http.Header{}
	header.Set("X-Access-Key", c.accessKey)
	header.Set("X-Tenant-Id", c.tenantID)
	header.Set("Accept", "application/json")
	return header
}

// objectPager builds a pager over one PRM object collection. Every page
// fetch runs through the client's circuit breaker.
func objectPager[T any](c *PRMClient, entity models.EntityType, object, fields string, filter *Filter) *Pager[T] {
	return newPager(sourcePRM, entity, c.pageSize, func(ctx context.Context, page int) ([]T, int, error) {
		return executeFetch(c.breaker, func() ([]T, int, error) {
			return fetchPRMPage[T](ctx, c, object, fields, filter, page*c.pageSize, c.pageSize)
		})
	})
}

// fetchPRMPage retrieves one window of a PRM object collection and unwraps
// the response envelope.
func fetchPRMPage[T any](ctx context.Context, c *PRMClient, object, fields string, filter *Filter, skip, take int) ([]T, int, error) {
	params := url.Values{}
	params.Set("skip", strconv.Itoa(skip))
	params.Set("take", strconv.Itoa(take))
	if fields != "" {
		params.Set("fields", fields)
	}
	if !filter.Empty() {
		params.Set("filter", filter.String())
	}
	reqURL := fmt.Sprintf("%s/objects/%s?%s", c.baseURL, object, params.Encode())

	resp, err := doGetWithRetry(ctx, c.client, c.limiter, reqURL, c.header(), c.maxRetries, c.retryBackoff, sourcePRM)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch %s (skip=%d): %w", object, skip, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, &UpstreamStatusError{Source: sourcePRM, StatusCode: resp.StatusCode, Body: string(readBodyForError(resp.Body))}
	}

	var envelope prm.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, 0, fmt.Errorf("failed to decode %s response: %w", object, err)
	}
	if !envelope.Success {
		message := envelope.Message
		if message == "" {
			message = "no message"
		}
		return nil, 0, fmt.Errorf("%s request rejected by PRM: %s", object, message)
	}
	if envelope.Data == nil {
		return nil, 0, fmt.Errorf("%s response missing data envelope", object)
	}

	var items []T
	if len(envelope.Data.Results) > 0 {
		if err := json.Unmarshal(envelope.Data.Results, &items); err != nil {
			return nil, 0, fmt.Errorf("failed to decode %s results: %w", object, err)
		}
	}
	return items, envelope.Data.Count, nil
}
