package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ghcrawler.bearhuddleston/internal/logger"
	"ghcrawler.bearhuddleston/internal/models"
)

// popIdleDelay is how long a worker waits before polling again when the
// queue is momentarily empty but the crawl is not complete.
const popIdleDelay = 50 * time.Millisecond

// WorkerCrawler is one worker's view of a crawl: it pops requests from the
// shared state, fetches, persists and enqueues expansion requests until the
// shared state reports completion. Several workers may run over the same
// State; the pushed set makes duplicate work impossible across them.
type WorkerCrawler struct {
	fetcher   Fetcher
	persister Persister
	state     *State
	log       *logger.Logger
}

// NewWorkerCrawler creates a worker bound to the given shared state.
func NewWorkerCrawler(fetcher Fetcher, persister Persister, state *State, log *logger.Logger) *WorkerCrawler {
	return &WorkerCrawler{
		fetcher:   fetcher,
		persister: persister,
		state:     state,
		log:       log,
	}
}

// Crawl seeds the shared queue and processes requests until the target is
// reached or the queue drains short of it.
func (w *WorkerCrawler) Crawl(ctx context.Context, requests []models.Request, totalRepositories uint32) error {
	if len(requests) == 0 {
		return errors.New("at least one request is required")
	}
	w.state.SetTarget(totalRepositories)
	w.state.PushRequests(requests)

	for {
		done, err := w.state.HasCompleted()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		request, ok := w.state.PopRequest()
		if !ok {
			// Another worker may still enqueue expansion requests.
			time.Sleep(popIdleDelay)
			continue
		}
		w.log.Info("Processing request: %s", request)
		w.state.IncrementFetcherCalls(1)

		response, nextRequests, err := w.fetcher.Fetch(ctx, request)
		if err != nil {
			return fmt.Errorf("fetching %s: %w", request, err)
		}
		if response != nil {
			if err := w.processResponse(ctx, response, request); err != nil {
				return err
			}
			w.state.PushRequests(nextRequests)
		}
		// Requeue the processed request. The pushed set makes this a no-op
		// for anything already seen, so the queue still drains toward the
		// failure verdict; the set itself is the terminal record.
		w.state.PushRequest(request)
		w.log.Info("%s", w.state.Summary())
	}
}

func (w *WorkerCrawler) processResponse(ctx context.Context, response *models.Response, request models.Request) error {
	w.state.UpdateRateLimit(response.RateLimit)
	if len(response.Repositories) == 0 {
		w.log.Debug("No repositories found for request: %s", request)
	}
	for _, repository := range response.Repositories {
		w.log.Debug("Fetched %s", repository)
	}
	persisted, err := w.persister.Persist(ctx, response.Repositories)
	if err != nil {
		return fmt.Errorf("persisting %d repositories: %w", len(response.Repositories), err)
	}
	w.state.IncrementPersisted(persisted)
	w.state.IncrementCollisions(uint32(len(response.Repositories)) - persisted)
	return nil
}
