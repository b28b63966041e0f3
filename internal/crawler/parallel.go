package crawler

import (
	"context"
	"errors"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"ghcrawler.bearhuddleston/internal/logger"
	"ghcrawler.bearhuddleston/internal/models"
)

// ParallelCrawler fans a crawl out over child crawlers, starting them with a
// fixed delay between starts to smooth the initial burst against the API.
// The children are expected to share one State through their construction,
// which makes duplicate suppression span all of them.
type ParallelCrawler struct {
	crawlers             []Crawler
	delayBetweenCrawlers time.Duration
	log                  *logger.Logger
}

// NewParallelCrawler creates a supervisor over the given child crawlers.
func NewParallelCrawler(crawlers []Crawler, delayBetweenCrawlers time.Duration, log *logger.Logger) *ParallelCrawler {
	return &ParallelCrawler{
		crawlers:             crawlers,
		delayBetweenCrawlers: delayBetweenCrawlers,
		log:                  log,
	}
}

// Crawl starts every child with its own copy of the seed list and waits for
// all of them; the first error observed is returned.
func (p *ParallelCrawler) Crawl(ctx context.Context, requests []models.Request, totalRepositories uint32) error {
	if len(requests) == 0 {
		return errors.New("at least one request is required")
	}

	group, ctx := errgroup.WithContext(ctx)
	for i, child := range p.crawlers {
		if i > 0 {
			time.Sleep(p.delayBetweenCrawlers)
		}
		child := child
		seeds := slices.Clone(requests)
		group.Go(func() error {
			return child.Crawl(ctx, seeds, totalRepositories)
		})
		p.log.Info("Started crawler %d/%d", i+1, len(p.crawlers))
	}

	return group.Wait()
}
