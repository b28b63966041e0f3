// Package crawler implements the crawl engine: the shared scheduling state,
// the worker loop, the retry decorators and the parallel supervisor.
package crawler

import (
	"context"

	"ghcrawler.bearhuddleston/internal/models"
)

// Crawler runs one bounded crawl over the given seed requests until at least
// totalRepositories distinct repositories have been persisted.
type Crawler interface {
	Crawl(ctx context.Context, requests []models.Request, totalRepositories uint32) error
}

// Fetcher retrieves one page of data for a request. A nil response with a
// nil error means the server returned no edges: the request is exhausted and
// is never fetched again. Otherwise the response's repositories (possibly
// empty) are to be persisted and nextRequests — pagination continuations and
// expansion requests — enqueued.
type Fetcher interface {
	Fetch(ctx context.Context, request models.Request) (*models.Response, []models.Request, error)
}

// Persister upserts a batch of repositories and reports how many rows were
// newly inserted; updates of already-present pairs do not count.
type Persister interface {
	Persist(ctx context.Context, repositories []models.Repository) (uint32, error)
}
