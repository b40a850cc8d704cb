// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package sync

import (
	"context"
	"time"

	"github.com/credsync/credsync/internal/metrics"
	"github.com/credsync/credsync/internal/models"
)

// defaultPageSize guards against a zero page size from config; pagers fall
// back to it so termination detection (short page) stays well-defined.
const defaultPageSize = 100

// pageFetchFunc fetches the zero-based page of a remote collection. It
// returns the page's records and the total number of matching records when
// the upstream reports one, or a negative total when it does not.
type pageFetchFunc[T any] func(ctx context.Context, page int) (items []T, total int, err error)

// Pager is a lazy, finite iterator over a paginated remote collection. Each
// Next call issues at most one HTTP request. Pagination ends when a page
// comes back with strictly fewer items than the requested page size.
//
// A Pager is single-use and not safe for concurrent use; pipelines drive one
// pager at a time.
type Pager[T any] struct {
	source string
	entity models.EntityType
	limit  int
	fetch  pageFetchFunc[T]

	page  int
	pages int
	items int
	total int
	done  bool
}

func newPager[T any](source string, entity models.EntityType, limit int, fetch pageFetchFunc[T]) *Pager[T] {
	if limit <= 0 {
		limit = defaultPageSize
	}
	return &Pager[T]{source: source, entity: entity, limit: limit, fetch: fetch, total: -1}
}

// Next advances to the next page. It returns (batch, true, nil) while pages
// remain, (nil, false, nil) once the collection is exhausted, and a non-nil
// error when the fetch fails. Failures wrap the cause in an
// AbandonedFetchError carrying the pages and items already retrieved; after
// an error the pager is exhausted, and restarting from the stored cursor is
// the recovery path.
func (p *Pager[T]) Next(ctx context.Context) ([]T, bool, error) {
	if p.done {
		return nil, false, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	start := time.Now()
	batch, total, err := p.fetch(ctx, p.page)
	if err != nil {
		p.done = true
		metrics.RecordFetchAbandoned(p.source, p.entity.String(), abandonReason(err))
		return nil, false, &AbandonedFetchError{
			Source: p.source,
			Entity: p.entity,
			Pages:  p.pages,
			Items:  p.items,
			Err:    err,
		}
	}
	metrics.RecordFetchPage(p.source, p.entity.String(), len(batch), time.Since(start))

	p.page++
	p.pages++
	p.items += len(batch)
	if total >= 0 {
		p.total = total
	}
	if len(batch) < p.limit {
		p.done = true
	}
	if len(batch) == 0 {
		return nil, false, nil
	}
	return batch, true, nil
}

// Pages returns the number of pages successfully retrieved so far.
func (p *Pager[T]) Pages() int { return p.pages }

// Items returns the number of records retrieved so far.
func (p *Pager[T]) Items() int { return p.items }

// Total returns the upstream-reported total for the collection, or -1 when
// the upstream does not report one.
func (p *Pager[T]) Total() int { return p.total }
