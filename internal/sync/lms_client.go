// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package sync

import (
	"bytes"
	"context"
	"fmt"
	"io"
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
	"github.com/credsync/credsync/internal/models/lms"
)

// sourceLMS labels LMS traffic in logs, metrics, and errors.
const sourceLMS = "lms"

// LMSClientInterface is the LMS surface the pipelines consume. Methods
// return pagers rather than slices so the engine controls fetch pacing; a
// nil since fetches the entire collection, a non-nil since fetches records
// modified strictly after it.
type LMSClientInterface interface {
	Ping(ctx context.Context) error
	Users(since *time.Time) *Pager[lms.UserRecord]
	Groups(since *time.Time) *Pager[lms.GroupRecord]
	GroupMembers(since *time.Time) *Pager[lms.GroupMemberRecord]
	Courses(since *time.Time) *Pager[lms.CourseRecord]
	CourseProperties(since *time.Time) *Pager[lms.CoursePropertyRecord]
	Enrollments(since *time.Time) *Pager[lms.EnrollmentRecord]
}

// LMSClient talks to the LMS reporting API: flat paginated collections under
// a static API key.
//
// Request shape: GET {base}/{collection}?page=N&limit=M&sort=modified with an
// X-Api-Key header. Responses are either a bare JSON array or a
// {count, items} wrapper; pages are served in ascending modified order so
// per-page cursor advancement is safe. The client includes built-in rate
// limiting (fixed inter-request delay), fixed-backoff retries for HTTP 429,
// and a circuit breaker.
//
// Thread safety: safe for concurrent use; each request builds its own
// http.Request.
type LMSClient struct {
	baseURL      string
	apiKey       string
	pageSize     int
	client       *http.Client
	limiter      *rate.Limiter
	breaker      *gobreaker.CircuitBreaker[any]
	maxRetries   int
	retryBackoff time.Duration
}

var _ LMSClientInterface = (*LMSClient)(nil)

// NewLMSClient creates an LMS API client from configuration. Zero-valued
// tuning fields fall back to safe defaults.
func NewLMSClient(cfg *config.LMSConfig) *LMSClient {
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

	return &LMSClient{
		baseURL:      strings.TrimRight(cfg.URL, "/"),
		apiKey:       cfg.APIKey,
		pageSize:     pageSize,
		client:       &http.Client{Timeout: timeout},
		limiter:      newIntervalLimiter(cfg.RequestInterval),
		breaker:      newUpstreamBreaker("lms-api"),
		maxRetries:   cfg.MaxRetries,
		retryBackoff: retryBackoff,
	}
}

// newIntervalLimiter builds a limiter enforcing one request per interval. A
// non-positive interval disables client-side pacing.
func newIntervalLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Ping verifies connectivity and credentials with a minimal users request.
func (c *LMSClient) Ping(ctx context.Context) error {
	params := url.Values{}
	params.Set("page", "1")
	params.Set("limit", "1")

	resp, err := doGetWithRetry(ctx, c.client, c.limiter, c.collectionURL("users", params), c.header(), c.maxRetries, c.retryBackoff, sourceLMS)
	if err != nil {
		return fmt.Errorf("lms ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &UpstreamStatusError{Source: sourceLMS, StatusCode: resp.StatusCode, Body: string(readBodyForError(resp.Body))}
	}
	return nil
}

// Users pages the /users collection.
func (c *LMSClient) Users(since *time.Time) *Pager[lms.UserRecord] {
	return collectionPager[lms.UserRecord](c, models.EntityUsers, "users", since)
}

// Groups pages the /groups collection.
func (c *LMSClient) Groups(since *time.Time) *Pager[lms.GroupRecord] {
	return collectionPager[lms.GroupRecord](c, models.EntityGroups, "groups", since)
}

// GroupMembers pages the /group-members collection.
func (c *LMSClient) GroupMembers(since *time.Time) *Pager[lms.GroupMemberRecord] {
	return collectionPager[lms.GroupMemberRecord](c, models.EntityGroupMemberships, "group-members", since)
}

// Courses pages the /courses collection.
func (c *LMSClient) Courses(since *time.Time) *Pager[lms.CourseRecord] {
	return collectionPager[lms.CourseRecord](c, models.EntityCourses, "courses", since)
}

// CourseProperties pages the /course-properties collection.
func (c *LMSClient) CourseProperties(since *time.Time) *Pager[lms.CoursePropertyRecord] {
	return collectionPager[lms.CoursePropertyRecord](c, models.EntityCourseProperties, "course-properties", since)
}

// Enrollments pages the /enrollments collection (the transcript export).
func (c *LMSClient) Enrollments(since *time.Time) *Pager[lms.EnrollmentRecord] {
	return collectionPager[lms.EnrollmentRecord](c, models.EntityEnrollments, "enrollments", since)
}

func (c *LMSClient) header() http.Header {
	header := http.Header{}
	header.Set("X-Api-Key", c.apiKey)
	header.Set("Accept", "application/json")
	return header
}

func (c *LMSClient) collectionURL(path string, params url.Values) string {
	return fmt.Sprintf("%s/%s?%s", c.baseURL, path, params.Encode())
}

// collectionPager builds a pager over one LMS collection path. Every page
// fetch runs through the client's circuit breaker.
func collectionPager[T any](c *LMSClient, entity models.EntityType, path string, since *time.Time) *Pager[T] {
	return newPager(sourceLMS, entity, c.pageSize, func(ctx context.Context, page int) ([]T, int, error) {
		return executeFetch(c.breaker, func() ([]T, int, error) {
			return fetchLMSPage[T](ctx, c, path, page, since)
		})
	})
}

// fetchLMSPage retrieves one page of an LMS collection. Pages are 1-based on
// the wire; the pager's zero-based page index converts here.
func fetchLMSPage[T any](ctx context.Context, c *LMSClient, path string, page int, since *time.Time) ([]T, int, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page+1))
	params.Set("limit", strconv.Itoa(c.pageSize))
	params.Set("sort", "modified")
	if since != nil {
		params.Set("modified_since", since.UTC().Format(time.RFC3339))
	}

	resp, err := doGetWithRetry(ctx, c.client, c.limiter, c.collectionURL(path, params), c.header(), c.maxRetries, c.retryBackoff, sourceLMS)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch %s page %d: %w", path, page+1, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, &UpstreamStatusError{Source: sourceLMS, StatusCode: resp.StatusCode, Body: string(readBodyForError(resp.Body))}
	}

	items, total, err := decodeLMSCollection[T](resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return items, total, nil
}

// lmsCollectionEnvelope is the optional wrapped form of an LMS collection
// response: {"count": N, "items": [...]}. Bare arrays are equally valid.
type lmsCollectionEnvelope struct {
	Count int             `json:"count"`
	Items json.RawMessage `json:"items"`
}

// decodeLMSCollection decodes either a bare JSON array or the {count, items}
// wrapper. The second return is the remote total when the wrapper carries
// one, -1 otherwise.
func decodeLMSCollection[T any](r io.Reader) ([]T, int, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, -1, fmt.Errorf("failed to read response body: %w", err)
	}
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, -1, fmt.Errorf("empty response body")
	}

	var items []T
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, -1, err
		}
		return items, -1, nil
	}

	var envelope lmsCollectionEnvelope
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, -1, err
	}
	if envelope.Items == nil {
		return nil, -1, fmt.Errorf("response is neither a collection array nor a count/items wrapper")
	}
	if err := json.Unmarshal(envelope.Items, &items); err != nil {
		return nil, -1, err
	}
	return items, envelope.Count, nil
}
