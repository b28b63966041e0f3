package crawler

import (
	"container/heap"
	"fmt"
	"sync"

	"ghcrawler.bearhuddleston/internal/logger"
	"ghcrawler.bearhuddleston/internal/models"
)

// requestHeap is a max-heap over the request total order: the greatest
// request is popped first.
type requestHeap []models.Request

func (h requestHeap) Len() int           { return len(h) }
func (h requestHeap) Less(i, j int) bool { return models.CompareRequests(h[i], h[j]) > 0 }
func (h requestHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *requestHeap) Push(x any) {
	*h = append(*h, x.(models.Request))
}

func (h *requestHeap) Pop() any {
	old := *h
	n := len(old)
	request := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return request
}

// State is the scheduling state shared by every worker of one crawl: the
// request priority queue, the set of requests ever enqueued, the progress
// counters and the most recently reported rate limit. All methods are safe
// for concurrent use. Construct one State per crawl; it is not a singleton.
type State struct {
	mu sync.Mutex

	queue  requestHeap
	pushed map[models.Request]struct{}

	targetRepositories uint32
	totalFetcherCalls  uint32
	totalPersisted     uint32
	totalCollisions    uint32
	currentRateLimit   models.RateLimit

	log *logger.Logger
}

// NewState creates an empty crawl state.
func NewState(log *logger.Logger) *State {
	return &State{
		pushed: make(map[models.Request]struct{}),
		log:    log,
	}
}

// PushRequest enqueues a request unless it was ever enqueued before. The
// pushed set never shrinks, so a request that has been popped and processed
// can never re-enter the queue.
func (s *State) PushRequest(request models.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushLocked(request)
}

// PushRequests enqueues each request in order, applying the same duplicate
// suppression as PushRequest.
func (s *State) PushRequests(requests []models.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, request := range requests {
		s.pushLocked(request)
	}
}

func (s *State) pushLocked(request models.Request) {
	if _, ok := s.pushed[request]; ok {
		s.log.Debug("Request already pushed: %s", request)
		return
	}
	s.pushed[request] = struct{}{}
	heap.Push(&s.queue, request)
}

// PopRequest removes and returns the greatest request, or false when the
// queue is empty.
func (s *State) PopRequest() (models.Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, false
	}
	return heap.Pop(&s.queue).(models.Request), true
}

// SetTarget sets the number of distinct repositories the crawl must persist.
func (s *State) SetTarget(totalRepositories uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targetRepositories = totalRepositories
}

// Target returns the crawl target.
func (s *State) Target() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetRepositories
}

// IncrementFetcherCalls adds to the count of fetcher invocations.
func (s *State) IncrementFetcherCalls(n uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalFetcherCalls += n
}

// FetcherCalls returns the count of fetcher invocations.
func (s *State) FetcherCalls() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalFetcherCalls
}

// IncrementPersisted adds newly inserted rows to the persisted total.
func (s *State) IncrementPersisted(n uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalPersisted += n
}

// Persisted returns the number of distinct repositories persisted so far.
func (s *State) Persisted() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalPersisted
}

// IncrementCollisions adds to the count of batch entries whose pair already
// existed in the store.
func (s *State) IncrementCollisions(n uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalCollisions += n
}

// Collisions returns the collision count.
func (s *State) Collisions() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalCollisions
}

// UpdateRateLimit records the rate limit reported by the latest response.
func (s *State) UpdateRateLimit(rateLimit models.RateLimit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentRateLimit = rateLimit
}

// CurrentRateLimit returns the most recently reported rate limit.
func (s *State) CurrentRateLimit() models.RateLimit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentRateLimit
}

// HasCompleted reports the crawl verdict. It returns true once the persisted
// total has reached the target, an error once the queue has drained with
// work recorded but the target unmet (nothing more is coming), and
// (false, nil) otherwise. All fields are read under a single lock hold so a
// failure verdict always comes from one consistent snapshot.
func (s *State) HasCompleted() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.totalPersisted >= s.targetRepositories {
		return true, nil
	}
	if len(s.queue) == 0 && len(s.pushed) > 0 {
		return false, fmt.Errorf("not enough repositories persisted, expected: %d, persisted: %d",
			s.targetRepositories, s.totalPersisted)
	}
	return false, nil
}

// Summary returns a human-readable snapshot of the counters and the current
// rate limit.
func (s *State) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("Repositories: done=%d/%d, collisions=%d, Requests: done=%d, buffered=%d, %s",
		s.totalPersisted, s.targetRepositories, s.totalCollisions,
		s.totalFetcherCalls, len(s.queue), s.currentRateLimit)
}
