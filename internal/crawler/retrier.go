package crawler

import (
	"context"
	"fmt"
	"time"

	"ghcrawler.bearhuddleston/internal/logger"
	"ghcrawler.bearhuddleston/internal/models"
)

// backoffDelay is the exponential backoff schedule shared by both retriers:
// baseDelay doubled per attempt, with the shift capped to keep the
// multiplication sane.
func backoffDelay(baseDelay time.Duration, attempt uint32) time.Duration {
	if attempt > 31 {
		attempt = 31
	}
	return baseDelay * time.Duration(uint64(1)<<attempt)
}

// FetcherRetrier retries a failing inner fetcher with exponential backoff,
// bounded by maxRetries and gated by the crawl verdict: once the crawl is
// already won or lost there is no point hammering the API, so the retrier
// abandons with an empty result and lets the worker loop surface the
// verdict.
type FetcherRetrier struct {
	fetcher    Fetcher
	maxRetries uint32
	baseDelay  time.Duration
	state      *State
	log        *logger.Logger
}

// NewFetcherRetrier wraps a fetcher with bounded exponential-backoff retry.
func NewFetcherRetrier(fetcher Fetcher, maxRetries uint32, baseDelay time.Duration, state *State, log *logger.Logger) *FetcherRetrier {
	return &FetcherRetrier{
		fetcher:    fetcher,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		state:      state,
		log:        log,
	}
}

// Fetch delegates to the inner fetcher, retrying failures until maxRetries
// attempts have been spent or the crawl completes.
func (r *FetcherRetrier) Fetch(ctx context.Context, request models.Request) (*models.Response, []models.Request, error) {
	var attempts uint32

	for {
		done, verdictErr := r.state.HasCompleted()
		if done || verdictErr != nil {
			return nil, nil, nil
		}

		response, nextRequests, err := r.fetcher.Fetch(ctx, request)
		if err == nil {
			return response, nextRequests, nil
		}
		r.log.Warn("Fetch attempt #%d failed: %v", attempts+1, err)
		attempts++
		if attempts >= r.maxRetries {
			return nil, nil, fmt.Errorf("failed after %d attempts: %w", attempts, err)
		}
		time.Sleep(backoffDelay(r.baseDelay, attempts))
	}
}

// PersisterRetrier retries a failing inner persister with the same
// exponential schedule. There is no completion gate: persistence races do
// not interact with the API budget, so failures are always retried up to
// maxRetries and then surfaced.
type PersisterRetrier struct {
	persister  Persister
	maxRetries uint32
	baseDelay  time.Duration
	log        *logger.Logger
}

// NewPersisterRetrier wraps a persister with bounded exponential-backoff
// retry.
func NewPersisterRetrier(persister Persister, maxRetries uint32, baseDelay time.Duration, log *logger.Logger) *PersisterRetrier {
	return &PersisterRetrier{
		persister:  persister,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		log:        log,
	}
}

// Persist delegates to the inner persister, retrying failures until
// maxRetries attempts have been spent.
func (r *PersisterRetrier) Persist(ctx context.Context, repositories []models.Repository) (uint32, error) {
	var attempts uint32

	for {
		persisted, err := r.persister.Persist(ctx, repositories)
		if err == nil {
			return persisted, nil
		}
		r.log.Warn("Persist attempt #%d failed: %v", attempts+1, err)
		attempts++
		if attempts >= r.maxRetries {
			return 0, fmt.Errorf("failed after %d attempts: %w", attempts, err)
		}
		time.Sleep(backoffDelay(r.baseDelay, attempts))
	}
}
