package sched

import (
	"sync"
	"time"
)

// Priority orders queued requests.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// rank maps priority to sort order; lower ranks drain first.
func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

type outcome struct {
	value any
	err   error
}

// queuedRequest is one request parked until rate-limit capacity returns.
// The caller blocks on done, a future-style handle resolved exactly once.
type queuedRequest struct {
	id         string
	key        string
	op         string
	params     map[string]any
	category   Category
	priority   Priority
	ttl        time.Duration
	exec       Executor
	enqueuedAt time.Time
	seq        uint64
	done       chan outcome
}

// requestQueue holds parked requests ordered by priority, then arrival.
type requestQueue struct {
	mu    sync.Mutex
	items []*queuedRequest
	seq   uint64
}

func newRequestQueue() *requestQueue {
	return &requestQueue{}
}

func (q *requestQueue) push(r *queuedRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()
	r.seq = q.seq
	q.seq++
	q.items = append(q.items, r)
}

// before reports whether a drains ahead of b: higher priority first,
// arrival order within a priority.
func before(a, b *queuedRequest) bool {
	if a.priority.rank() != b.priority.rank() {
		return a.priority.rank() < b.priority.rank()
	}
	return a.seq < b.seq
}

// popEligible removes and returns the frontmost request accepted by
// eligible, skipping categories the predicate has rejected. Returns nil
// when nothing eligible is queued.
func (q *requestQueue) popEligible(eligible func(*queuedRequest) bool) *queuedRequest {
	q.mu.Lock()
	defer q.mu.Unlock()

	rejected := make(map[Category]bool)
	for {
		best := -1
		for i, r := range q.items {
			if rejected[r.category] {
				continue
			}
			if best == -1 || before(r, q.items[best]) {
				best = i
			}
		}
		if best == -1 {
			return nil
		}

		r := q.items[best]
		if !eligible(r) {
			rejected[r.category] = true
			continue
		}

		q.items = append(q.items[:best], q.items[best+1:]...)
		return r
	}
}

// drainAll removes and returns every queued request.
func (q *requestQueue) drainAll() []*queuedRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

func (q *requestQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
