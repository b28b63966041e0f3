// Main entry point for the GitHub repository crawler.
package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"ghcrawler.bearhuddleston/internal/config"
	"ghcrawler.bearhuddleston/internal/crawler"
	"ghcrawler.bearhuddleston/internal/db"
	"ghcrawler.bearhuddleston/internal/github"
	"ghcrawler.bearhuddleston/internal/logger"
	"ghcrawler.bearhuddleston/internal/models"
)

const (
	fetcherMaxRetries       = 5
	fetcherRetryBaseDelay   = 10 * time.Second
	persisterMaxRetries     = 3
	persisterRetryBaseDelay = 100 * time.Millisecond
	delayBetweenCrawlers    = time.Second
)

func main() {
	log.SetFlags(log.LstdFlags)

	configPath := flag.String("config", "", "Optional JSON config file path")
	totalRepositories := flag.Int("total-repositories", 0, "Total repositories to crawl")
	seedQueries := flag.String("seed-queries", "", "Comma-separated seed queries")
	numberWorkers := flag.Int("number-workers", 0, "Number of parallel workers")
	maxFetched := flag.Int("max-repository-fetched-per-request", 0, "Repositories fetched per request (max 100)")
	postgres := flag.String("postgres-connection-string", "", "PostgreSQL connection string")
	verbose := flag.Bool("verbose", false, "Enable verbose logging")
	flag.Parse()

	cfg, err := config.New(*configPath)
	if err != nil {
		log.Fatalf("Loading configuration: %v", err)
	}
	if *totalRepositories > 0 {
		cfg.TotalRepositories = totalRepositories
	}
	if *seedQueries != "" {
		cfg.SeedQueries = strings.Split(*seedQueries, ",")
	}
	if *numberWorkers > 0 {
		cfg.NumberWorkers = numberWorkers
	}
	if *maxFetched > 0 {
		cfg.MaxRepositoryFetchedPerRequest = maxFetched
	}
	if *postgres != "" {
		cfg.PostgresConnectionString = *postgres
	}
	if *verbose {
		cfg.Verbose = verbose
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	appLogger := logger.New(*cfg.Verbose)
	appLogger.Info("Starting GitHub crawling")

	persister, err := db.New(cfg.PostgresConnectionString, appLogger)
	if err != nil {
		appLogger.Fatal("Initializing database: %v", err)
	}
	defer func() {
		if err := persister.Close(); err != nil {
			appLogger.Error("Closing database: %v", err)
		}
	}()

	state := crawler.NewState(appLogger)
	parallel, err := buildParallelCrawler(cfg, state, persister, appLogger)
	if err != nil {
		appLogger.Fatal("Building crawler: %v", err)
	}

	seeds := prepareSeedRequests(cfg)
	appLogger.Info("Seed requests: %v", seeds)

	if err := parallel.Crawl(context.Background(), seeds, uint32(*cfg.TotalRepositories)); err != nil {
		appLogger.Fatal("Crawling failed: %v", err)
	}
	appLogger.Info("Crawling completed")
}

// buildWorkerCrawler assembles one worker's decorator stack:
// retrier → rate-limit enforcer → GraphQL fetcher on the fetch side,
// retrier → PostgreSQL on the persist side.
func buildWorkerCrawler(state *crawler.State, persister crawler.Persister, appLogger *logger.Logger) (crawler.Crawler, error) {
	graphQL, err := github.NewFetcher(github.DefaultEndpoint, appLogger)
	if err != nil {
		return nil, err
	}
	fetcher := crawler.NewFetcherRetrier(
		github.NewRateLimitEnforcer(graphQL, appLogger),
		fetcherMaxRetries, fetcherRetryBaseDelay, state, appLogger)
	retriedPersister := crawler.NewPersisterRetrier(
		persister, persisterMaxRetries, persisterRetryBaseDelay, appLogger)
	return crawler.NewWorkerCrawler(fetcher, retriedPersister, state, appLogger), nil
}

func buildParallelCrawler(cfg *config.Config, state *crawler.State, persister crawler.Persister, appLogger *logger.Logger) (crawler.Crawler, error) {
	crawlers := make([]crawler.Crawler, 0, *cfg.NumberWorkers)
	for i := 0; i < *cfg.NumberWorkers; i++ {
		worker, err := buildWorkerCrawler(state, persister, appLogger)
		if err != nil {
			return nil, err
		}
		crawlers = append(crawlers, worker)
	}
	return crawler.NewParallelCrawler(crawlers, delayBetweenCrawlers, appLogger), nil
}

func prepareSeedRequests(cfg *config.Config) []models.Request {
	seeds := make([]models.Request, 0, len(cfg.SeedQueries))
	for _, query := range cfg.SeedQueries {
		seeds = append(seeds, models.NewSearchOrganization(
			strings.TrimSpace(query), *cfg.MaxRepositoryFetchedPerRequest, ""))
	}
	return seeds
}
