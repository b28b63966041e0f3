package github

import (
	"context"
	"time"

	"ghcrawler.bearhuddleston/internal/crawler"
	"ghcrawler.bearhuddleston/internal/logger"
	"ghcrawler.bearhuddleston/internal/models"
)

// RateLimitEnforcer wraps a fetcher and honors the server-reported budget:
// when a response arrives with the budget exhausted it sleeps until the
// reset instant before handing the response back, so the caller keeps the
// page it paid for but its next call lands in a fresh window. Empty and
// error results pass through without sleeping.
type RateLimitEnforcer struct {
	fetcher crawler.Fetcher
	log     *logger.Logger
}

// NewRateLimitEnforcer wraps a fetcher with rate-limit enforcement.
func NewRateLimitEnforcer(fetcher crawler.Fetcher, log *logger.Logger) *RateLimitEnforcer {
	return &RateLimitEnforcer{fetcher: fetcher, log: log}
}

// Fetch delegates and sleeps out the rate-limit window when the response
// reports an exhausted budget.
func (e *RateLimitEnforcer) Fetch(ctx context.Context, request models.Request) (*models.Response, []models.Request, error) {
	response, nextRequests, err := e.fetcher.Fetch(ctx, request)
	if err != nil || response == nil {
		return response, nextRequests, err
	}
	if response.RateLimit.Exceeded() {
		wait := response.RateLimit.DurationUntilReset(time.Now())
		e.log.Warn("Fetcher rate limit exceeded, waiting %v", wait)
		time.Sleep(wait)
	}
	return response, nextRequests, nil
}
