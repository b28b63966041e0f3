package crawler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghcrawler.bearhuddleston/internal/logger"
	"ghcrawler.bearhuddleston/internal/models"
)

func newTestState() *State {
	return NewState(logger.New(false))
}

func TestStatePopOrderAcrossVariantsAndCursors(t *testing.T) {
	state := newTestState()
	state.PushRequests([]models.Request{
		models.NewSearchOrganization("is:public", 100, ""),
		models.NewSearchOrganization("is:public", 100, "c"),
		models.NewRepositoriesFromOrganization("org-1", 100, ""),
		models.NewRepositoriesFromOrganization("org-1", 100, "c"),
	})

	want := []models.Request{
		models.NewRepositoriesFromOrganization("org-1", 100, "c"),
		models.NewSearchOrganization("is:public", 100, "c"),
		models.NewRepositoriesFromOrganization("org-1", 100, ""),
		models.NewSearchOrganization("is:public", 100, ""),
	}
	for i, expected := range want {
		popped, ok := state.PopRequest()
		require.True(t, ok, "pop %d", i)
		assert.Equal(t, expected, popped, "pop %d", i)
	}
	_, ok := state.PopRequest()
	assert.False(t, ok)
}

func TestStatePushDuplicateIsSuppressed(t *testing.T) {
	state := newTestState()
	request := models.NewSearchOrganization("is:public", 100, "")

	state.PushRequest(request)
	state.PushRequest(request)

	_, ok := state.PopRequest()
	assert.True(t, ok)
	_, ok = state.PopRequest()
	assert.False(t, ok)
}

func TestStatePushRequestsTwiceYieldsEachOnce(t *testing.T) {
	state := newTestState()
	requests := []models.Request{
		models.NewSearchOrganization("is:public", 100, ""),
		models.NewRepositoriesFromOrganization("org-1", 100, ""),
	}

	state.PushRequests(requests)
	state.PushRequests(requests)

	var popped int
	for {
		if _, ok := state.PopRequest(); !ok {
			break
		}
		popped++
	}
	assert.Equal(t, len(requests), popped)
}

func TestStatePoppedRequestNeverReenters(t *testing.T) {
	state := newTestState()
	request := models.NewSearchOrganization("is:public", 100, "")
	state.PushRequest(request)

	popped, ok := state.PopRequest()
	require.True(t, ok)
	state.PushRequest(popped)

	_, ok = state.PopRequest()
	assert.False(t, ok)
}

func TestStateHasCompletedWhenTargetReached(t *testing.T) {
	state := newTestState()
	state.SetTarget(10)
	state.IncrementPersisted(10)

	done, err := state.HasCompleted()
	require.NoError(t, err)
	assert.True(t, done)
}

func TestStateHasNotCompletedWhileQueueHasWork(t *testing.T) {
	state := newTestState()
	state.SetTarget(10)
	state.IncrementPersisted(5)
	state.PushRequest(models.NewSearchOrganization("is:public", 100, ""))

	done, err := state.HasCompleted()
	require.NoError(t, err)
	assert.False(t, done)
}

func TestStateHasNotCompletedBeforeAnyPush(t *testing.T) {
	state := newTestState()
	state.SetTarget(10)

	done, err := state.HasCompleted()
	require.NoError(t, err)
	assert.False(t, done)
}

func TestStateFailsWhenQueueDrainsShortOfTarget(t *testing.T) {
	state := newTestState()
	state.SetTarget(10)
	state.IncrementPersisted(5)
	state.PushRequest(models.NewSearchOrganization("is:public", 100, ""))
	_, ok := state.PopRequest()
	require.True(t, ok)

	_, err := state.HasCompleted()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected: 10")
	assert.Contains(t, err.Error(), "persisted: 5")
}

func TestStateCounters(t *testing.T) {
	state := newTestState()

	state.IncrementFetcherCalls(1)
	state.IncrementFetcherCalls(4)
	state.IncrementPersisted(10)
	state.IncrementPersisted(5)
	state.IncrementCollisions(3)
	state.IncrementCollisions(2)

	assert.Equal(t, uint32(5), state.FetcherCalls())
	assert.Equal(t, uint32(15), state.Persisted())
	assert.Equal(t, uint32(5), state.Collisions())
}

func TestStateRateLimitRoundTrip(t *testing.T) {
	state := newTestState()
	rl := models.RateLimit{
		Limit:     5000,
		Cost:      1,
		Remaining: 4999,
		ResetAt:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	state.UpdateRateLimit(rl)

	assert.Equal(t, rl, state.CurrentRateLimit())
}

func TestStateSummary(t *testing.T) {
	state := newTestState()
	state.SetTarget(100)
	state.IncrementPersisted(40)
	state.IncrementCollisions(3)
	state.IncrementFetcherCalls(7)

	summary := state.Summary()

	assert.Contains(t, summary, "done=40/100")
	assert.Contains(t, summary, "collisions=3")
	assert.Contains(t, summary, "done=7")
}
