package crawler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghcrawler.bearhuddleston/internal/logger"
	"ghcrawler.bearhuddleston/internal/models"
)

// runningState is a state mid-crawl: target unmet and work still queued, so
// the completion gate stays open.
func runningState() *State {
	state := newTestState()
	state.SetTarget(10)
	state.PushRequest(models.NewSearchOrganization("is:public", 100, ""))
	return state
}

func newFetcherRetrier(fetcher Fetcher, maxRetries uint32, baseDelay time.Duration, state *State) *FetcherRetrier {
	return NewFetcherRetrier(fetcher, maxRetries, baseDelay, state, logger.New(false))
}

func TestFetcherRetrierSuccessOnFirstAttempt(t *testing.T) {
	fetcher := &stubFetcher{results: []fetchResult{{
		response: &models.Response{
			Repositories: []models.Repository{models.NewRepository("r1", "o1", 10)},
			RateLimit:    dummyRateLimit(),
		},
	}}}
	retrier := newFetcherRetrier(fetcher, 3, 10*time.Millisecond, runningState())

	response, _, err := retrier.Fetch(context.Background(), models.NewSearchOrganization("is:public", 100, ""))

	require.NoError(t, err)
	require.NotNil(t, response)
	assert.Equal(t, 1, fetcher.callCount())
}

func TestFetcherRetrierSuccessAfterRetries(t *testing.T) {
	fetcher := &stubFetcher{results: []fetchResult{
		{err: errors.New("error fetching data")},
		{err: errors.New("error fetching data")},
		{
			response: &models.Response{
				Repositories: []models.Repository{models.NewRepository("r1", "o1", 10)},
				RateLimit:    dummyRateLimit(),
			},
		},
	}}
	retrier := newFetcherRetrier(fetcher, 3, 10*time.Millisecond, runningState())

	start := time.Now()
	response, _, err := retrier.Fetch(context.Background(), models.NewSearchOrganization("is:public", 100, ""))
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.NotNil(t, response)
	assert.Equal(t, 3, fetcher.callCount())
	// Two backoff intervals: 10ms*2 and 10ms*4.
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
}

func TestFetcherRetrierFailureAfterMaxRetries(t *testing.T) {
	fetcher := &stubFetcher{results: []fetchResult{
		{err: errors.New("error fetching data")},
		{err: errors.New("error fetching data")},
		{err: errors.New("error fetching data")},
	}}
	retrier := newFetcherRetrier(fetcher, 3, 10*time.Millisecond, runningState())

	_, _, err := retrier.Fetch(context.Background(), models.NewSearchOrganization("is:public", 100, ""))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, 3, fetcher.callCount())
}

func TestFetcherRetrierAbandonsWhenCrawlAlreadyDone(t *testing.T) {
	state := newTestState()
	state.SetTarget(1)
	state.IncrementPersisted(1)
	fetcher := &stubFetcher{results: []fetchResult{{err: errors.New("error fetching data")}}}
	retrier := newFetcherRetrier(fetcher, 3, 10*time.Millisecond, state)

	response, nextRequests, err := retrier.Fetch(context.Background(), models.NewSearchOrganization("is:public", 100, ""))

	require.NoError(t, err)
	assert.Nil(t, response)
	assert.Nil(t, nextRequests)
	assert.Zero(t, fetcher.callCount())
}

func TestFetcherRetrierAbandonsWhenCrawlAlreadyFailed(t *testing.T) {
	state := newTestState()
	state.SetTarget(10)
	state.PushRequest(models.NewSearchOrganization("is:public", 100, ""))
	_, ok := state.PopRequest()
	require.True(t, ok)
	fetcher := &stubFetcher{results: []fetchResult{{err: errors.New("error fetching data")}}}
	retrier := newFetcherRetrier(fetcher, 3, 10*time.Millisecond, state)

	response, _, err := retrier.Fetch(context.Background(), models.NewSearchOrganization("is:public", 100, ""))

	require.NoError(t, err)
	assert.Nil(t, response)
	assert.Zero(t, fetcher.callCount())
}

func TestBackoffDelayDoublesPerAttempt(t *testing.T) {
	base := 10 * time.Millisecond

	assert.Equal(t, 20*time.Millisecond, backoffDelay(base, 1))
	assert.Equal(t, 40*time.Millisecond, backoffDelay(base, 2))
	assert.Equal(t, 80*time.Millisecond, backoffDelay(base, 3))
}

func TestPersisterRetrierSuccessOnFirstAttempt(t *testing.T) {
	persister := &stubPersister{returns: []uint32{10}}
	retrier := NewPersisterRetrier(persister, 3, 10*time.Millisecond, logger.New(false))

	persisted, err := retrier.Persist(context.Background(), []models.Repository{models.NewRepository("r1", "o1", 100)})

	require.NoError(t, err)
	assert.Equal(t, uint32(10), persisted)
}

func TestPersisterRetrierSuccessAfterRetries(t *testing.T) {
	persister := &stubPersister{
		errs:    []error{errors.New("temporary failure"), errors.New("temporary failure")},
		returns: []uint32{0, 0, 10},
	}
	retrier := NewPersisterRetrier(persister, 3, 10*time.Millisecond, logger.New(false))

	persisted, err := retrier.Persist(context.Background(), []models.Repository{models.NewRepository("r1", "o1", 100)})

	require.NoError(t, err)
	assert.Equal(t, uint32(10), persisted)
}

func TestPersisterRetrierFailureAfterMaxRetries(t *testing.T) {
	persister := &stubPersister{errs: []error{
		errors.New("temporary failure"),
		errors.New("temporary failure"),
		errors.New("temporary failure"),
	}}
	retrier := NewPersisterRetrier(persister, 3, 10*time.Millisecond, logger.New(false))

	_, err := retrier.Persist(context.Background(), []models.Repository{models.NewRepository("r1", "o1", 100)})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
}
