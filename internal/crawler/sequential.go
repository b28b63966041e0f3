package crawler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"

	"ghcrawler.bearhuddleston/internal/logger"
	"ghcrawler.bearhuddleston/internal/models"
)

// SequentialCrawler processes requests one at a time over a queue it owns
// exclusively, with no duplicate suppression. It predates the shared-state
// workers and remains the simplest complete rendition of the crawl loop.
type SequentialCrawler struct {
	fetcher   Fetcher
	persister Persister
	log       *logger.Logger

	mu               sync.Mutex
	queue            requestHeap
	fetcherCalls     uint32
	persisted        uint32
	collisions       uint32
	currentRateLimit models.RateLimit
}

// NewSequentialCrawler creates a crawler with its own private queue.
func NewSequentialCrawler(fetcher Fetcher, persister Persister, log *logger.Logger) *SequentialCrawler {
	return &SequentialCrawler{
		fetcher:   fetcher,
		persister: persister,
		log:       log,
	}
}

// Crawl drains the queue in priority order, stopping as soon as the target
// is reached or erroring when the queue runs dry short of it.
func (c *SequentialCrawler) Crawl(ctx context.Context, requests []models.Request, totalRepositories uint32) error {
	if len(requests) == 0 {
		return errors.New("at least one request is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, request := range requests {
		heap.Push(&c.queue, request)
	}

	for len(c.queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		request := heap.Pop(&c.queue).(models.Request)
		c.log.Info("Processing request: %s", request)
		c.fetcherCalls++

		response, nextRequests, err := c.fetcher.Fetch(ctx, request)
		if err != nil {
			return fmt.Errorf("fetching %s: %w", request, err)
		}
		if response != nil {
			if err := c.processResponse(ctx, response, request); err != nil {
				return err
			}
			for _, next := range nextRequests {
				heap.Push(&c.queue, next)
			}
			if c.persisted >= totalRepositories {
				break
			}
		}

		c.log.Info("Repositories: done=%d/%d, collisions=%d, Requests: done=%d, buffered=%d, %s",
			c.persisted, totalRepositories, c.collisions, c.fetcherCalls, len(c.queue), c.currentRateLimit)
	}

	if c.persisted < totalRepositories {
		return fmt.Errorf("not enough repositories crawled, expected: %d, crawled: %d",
			totalRepositories, c.persisted)
	}
	return nil
}

func (c *SequentialCrawler) processResponse(ctx context.Context, response *models.Response, request models.Request) error {
	c.currentRateLimit = response.RateLimit
	if len(response.Repositories) == 0 {
		c.log.Debug("No repositories found for request: %s", request)
	}
	persisted, err := c.persister.Persist(ctx, response.Repositories)
	if err != nil {
		return fmt.Errorf("persisting %d repositories: %w", len(response.Repositories), err)
	}
	c.persisted += persisted
	c.collisions += uint32(len(response.Repositories)) - persisted
	return nil
}
