package sched

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loqalabs/loqa-coordinator/internal/errors"
	"github.com/loqalabs/loqa-coordinator/internal/log"
	"github.com/loqalabs/loqa-coordinator/internal/metrics"
)

// Executor performs one remote operation on behalf of the scheduler.
// Supplied by the provider integration; the scheduler owns no transport.
type Executor func(ctx context.Context, op string, params map[string]any) (any, error)

// Options tune a single scheduled request.
type Options struct {
	// TTL bounds how long a fresh result stays cached; zero selects the default
	TTL time.Duration
	// Priority orders the request if it has to queue for capacity
	Priority Priority
	// ForceRefresh bypasses the cache read, never the cache write
	ForceRefresh bool
	// Category selects the rate-limit window; empty selects core
	Category Category
}

// Scheduler deduplicates, caches, prioritizes, and rate-limit-gates
// outbound requests. Requests that would overrun the reserve buffer are
// parked on a priority queue and resolved as capacity returns.
type Scheduler struct {
	cache   *Cache
	limiter *Limiter
	queue   *requestQueue
	logger  *log.Logger
	metrics *metrics.Metrics

	drainInterval time.Duration
	stop          chan struct{}
	stopOnce      sync.Once
}

// SchedulerOption customizes a Scheduler.
type SchedulerOption func(*Scheduler)

// WithCache replaces the default cache store.
func WithCache(c *Cache) SchedulerOption {
	return func(s *Scheduler) { s.cache = c }
}

// WithLimiter replaces the default rate limiter.
func WithLimiter(l *Limiter) SchedulerOption {
	return func(s *Scheduler) { s.limiter = l }
}

// WithLogger sets the scheduler's logger.
func WithLogger(logger *log.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = logger }
}

// WithMetrics wires Prometheus metrics into the scheduler.
func WithMetrics(m *metrics.Metrics) SchedulerOption {
	return func(s *Scheduler) { s.metrics = m }
}

// WithDrainInterval sets how often the queue is checked for capacity.
func WithDrainInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.drainInterval = d }
}

// NewScheduler creates a running scheduler. Close releases its drain
// goroutine and rejects anything still queued.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		cache:         NewCache(0),
		limiter:       NewLimiter(),
		queue:         newRequestQueue(),
		logger:        log.DefaultLogger(),
		drainInterval: time.Second,
		stop:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics != nil {
		m := s.metrics
		s.cache.onEvict = func() { m.CacheEvictions.Inc() }
	}
	go s.drainLoop()
	return s
}

// Get resolves one request: cache first, then immediate dispatch when the
// category has capacity, otherwise the request queues and the caller
// blocks on its handle until the scheduler resolves or rejects it.
func (s *Scheduler) Get(ctx context.Context, op string, params map[string]any, exec Executor, opts Options) (any, error) {
	if opts.Category == "" {
		opts.Category = CategoryCore
	}
	if opts.Priority == "" {
		opts.Priority = PriorityMedium
	}

	key, err := Key(op, params)
	if err != nil {
		return nil, err
	}

	if !opts.ForceRefresh {
		if value, ok := s.cache.Get(key); ok {
			if s.metrics != nil {
				s.metrics.CacheHits.Inc()
			}
			return value, nil
		}
	}
	if s.metrics != nil {
		s.metrics.CacheMisses.Inc()
	}

	if s.limiter.Acquire(opts.Category) {
		return s.dispatch(ctx, key, op, params, exec, opts.TTL)
	}

	req := &queuedRequest{
		id:         uuid.NewString(),
		key:        key,
		op:         op,
		params:     params,
		category:   opts.Category,
		priority:   opts.Priority,
		ttl:        opts.TTL,
		exec:       exec,
		enqueuedAt: time.Now(),
		done:       make(chan outcome, 1),
	}
	s.queue.push(req)
	if s.metrics != nil {
		s.metrics.QueueDepth.Inc()
		s.metrics.QueuedRequests.WithLabelValues(string(opts.Priority)).Inc()
	}
	s.logger.Debug("rate limit buffer reached, request queued",
		"operation", op,
		"category", string(opts.Category),
		"priority", string(opts.Priority),
		"request_id", req.id)

	select {
	case o := <-req.done:
		return o.value, o.err
	case <-s.stop:
		return nil, errors.New(errors.ErrCodeSchedQueueClosed, "scheduler closed while request was queued")
	case <-ctx.Done():
		// The abandoned request stays queued; it resolves into its
		// handle later with nobody listening.
		return nil, ctx.Err()
	}
}

// dispatch executes the request and caches a successful result.
func (s *Scheduler) dispatch(ctx context.Context, key, op string, params map[string]any, exec Executor, ttl time.Duration) (any, error) {
	value, err := exec(ctx, op, params)
	if err != nil {
		return nil, err
	}
	s.cache.Put(key, value, ttl)
	return value, nil
}

// drainLoop periodically moves queued requests into execution as
// rate-limit capacity returns.
func (s *Scheduler) drainLoop() {
	ticker := time.NewTicker(s.drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			s.rejectPending()
			return
		case <-ticker.C:
			s.drainOnce(context.Background())
		}
	}
}

// drainOnce dispatches eligible queued requests until capacity runs out
// or the queue is empty. Priority order, arrival order within priority.
func (s *Scheduler) drainOnce(ctx context.Context) {
	for {
		req := s.queue.popEligible(func(r *queuedRequest) bool {
			return s.limiter.Acquire(r.category)
		})
		if req == nil {
			return
		}
		if s.metrics != nil {
			s.metrics.QueueDepth.Dec()
		}
		go func(r *queuedRequest) {
			value, err := s.dispatch(ctx, r.key, r.op, r.params, r.exec, r.ttl)
			r.done <- outcome{value: value, err: err}
		}(req)
	}
}

// rejectPending resolves every still-queued handle with a closed error.
func (s *Scheduler) rejectPending() {
	for _, r := range s.queue.drainAll() {
		if s.metrics != nil {
			s.metrics.QueueDepth.Dec()
		}
		r.done <- outcome{err: errors.New(errors.ErrCodeSchedQueueClosed,
			"scheduler closed while request "+r.id+" was queued")}
	}
}

// Close stops the drain loop and rejects queued requests.
func (s *Scheduler) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// CacheStats returns a snapshot of the cache counters.
func (s *Scheduler) CacheStats() CacheStats {
	return s.cache.Stats()
}

// RateLimitStatus returns a snapshot of every rate-limit window.
func (s *Scheduler) RateLimitStatus() map[Category]Window {
	return s.limiter.Status()
}

// UpdateRateLimit feeds remote response metadata into the limiter.
func (s *Scheduler) UpdateRateLimit(cat Category, limit, remaining int, reset time.Time) {
	s.limiter.Update(cat, limit, remaining, reset)
}

// QueueDepth reports how many requests are parked for capacity.
func (s *Scheduler) QueueDepth() int {
	return s.queue.len()
}
