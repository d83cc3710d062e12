package sched

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loqalabs/loqa-coordinator/internal/errors"
	"github.com/loqalabs/loqa-coordinator/internal/metrics"
)

// countingExecutor counts invocations per operation.
type countingExecutor struct {
	mu    sync.Mutex
	calls map[string]int
	fn    Executor
}

func newCountingExecutor(fn Executor) *countingExecutor {
	return &countingExecutor{calls: make(map[string]int), fn: fn}
}

func (e *countingExecutor) exec(ctx context.Context, op string, params map[string]any) (any, error) {
	e.mu.Lock()
	e.calls[op]++
	e.mu.Unlock()
	if e.fn != nil {
		return e.fn(ctx, op, params)
	}
	return "result:" + op, nil
}

func (e *countingExecutor) count(op string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[op]
}

func TestSchedulerCachesResults(t *testing.T) {
	s := NewScheduler()
	defer s.Close()
	exec := newCountingExecutor(nil)
	ctx := context.Background()
	params := map[string]any{"repo": "loqa-hub"}

	first, err := s.Get(ctx, "listIssues", params, exec.exec, Options{TTL: time.Minute})
	require.NoError(t, err)
	second, err := s.Get(ctx, "listIssues", params, exec.exec, Options{TTL: time.Minute})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, exec.count("listIssues"))
	assert.Equal(t, 1, s.CacheStats().Hits)
}

func TestSchedulerExpiredEntryReinvokes(t *testing.T) {
	s := NewScheduler()
	defer s.Close()
	exec := newCountingExecutor(nil)
	ctx := context.Background()
	params := map[string]any{"repo": "loqa-hub"}

	_, err := s.Get(ctx, "listIssues", params, exec.exec, Options{TTL: 20 * time.Millisecond})
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	_, err = s.Get(ctx, "listIssues", params, exec.exec, Options{TTL: 20 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 2, exec.count("listIssues"))
}

func TestSchedulerForceRefreshBypassesCacheRead(t *testing.T) {
	s := NewScheduler()
	defer s.Close()
	exec := newCountingExecutor(nil)
	ctx := context.Background()
	params := map[string]any{"repo": "loqa-hub"}

	_, err := s.Get(ctx, "listIssues", params, exec.exec, Options{TTL: time.Minute})
	require.NoError(t, err)
	_, err = s.Get(ctx, "listIssues", params, exec.exec, Options{TTL: time.Minute, ForceRefresh: true})
	require.NoError(t, err)

	assert.Equal(t, 2, exec.count("listIssues"))
}

func TestSchedulerPropagatesExecutorError(t *testing.T) {
	s := NewScheduler()
	defer s.Close()
	boom := fmt.Errorf("remote exploded")
	exec := newCountingExecutor(func(ctx context.Context, op string, params map[string]any) (any, error) {
		return nil, boom
	})

	_, err := s.Get(context.Background(), "createIssue", nil, exec.exec, Options{})
	require.ErrorIs(t, err, boom)

	// Failures are never cached.
	assert.Equal(t, 0, s.CacheStats().Entries)
}

func TestSchedulerQueuesWhenBufferReached(t *testing.T) {
	s := NewScheduler(WithDrainInterval(10 * time.Millisecond))
	defer s.Close()
	exec := newCountingExecutor(nil)
	ctx := context.Background()

	// Remaining capacity sits exactly on the 10% buffer, so the next
	// request must queue.
	s.UpdateRateLimit(CategoryCore, 100, 10, time.Now().Add(time.Hour))

	done := make(chan error, 1)
	go func() {
		_, err := s.Get(ctx, "listIssues", nil, exec.exec, Options{Priority: PriorityHigh})
		done <- err
	}()

	require.Eventually(t, func() bool { return s.QueueDepth() == 1 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, exec.count("listIssues"))

	// Fresh capacity lets the drain loop resolve the parked request.
	s.UpdateRateLimit(CategoryCore, 100, 100, time.Now().Add(time.Hour))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("queued request was never resolved")
	}
	assert.Equal(t, 1, exec.count("listIssues"))
}

func TestSchedulerCloseRejectsQueued(t *testing.T) {
	s := NewScheduler(WithDrainInterval(time.Hour))
	exec := newCountingExecutor(nil)

	s.UpdateRateLimit(CategoryCore, 100, 5, time.Now().Add(time.Hour))

	done := make(chan error, 1)
	go func() {
		_, err := s.Get(context.Background(), "listIssues", nil, exec.exec, Options{})
		done <- err
	}()

	require.Eventually(t, func() bool { return s.QueueDepth() == 1 },
		time.Second, 5*time.Millisecond)

	s.Close()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeSchedQueueClosed, errors.CodeOf(err))
	case <-time.After(2 * time.Second):
		t.Fatal("queued request was not rejected on close")
	}
}

func TestBatchCollapsesDuplicates(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	var invocations atomic.Int64
	exec := func(ctx context.Context, op string, params map[string]any) (any, error) {
		invocations.Add(1)
		return "result", nil
	}

	params := map[string]any{"repo": "loqa-hub"}
	requests := []BatchRequest{
		{Op: "getIssue", Params: params},
		{Op: "getIssue", Params: params},
		{Op: "getIssue", Params: map[string]any{"repo": "loqa-hub"}},
	}

	results, err := s.ExecuteBatch(context.Background(), requests, exec, StrategySequential)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, int64(1), invocations.Load())
	for _, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, "result", r.Value)
	}
}

func TestBatchParallelReturnsAllResults(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	exec := func(ctx context.Context, op string, params map[string]any) (any, error) {
		return params["repo"], nil
	}

	var requests []BatchRequest
	for _, repo := range []string{"loqa-proto", "loqa-hub", "loqa-skills", "loqa-commander"} {
		requests = append(requests, BatchRequest{
			Op:     "getRepo",
			Params: map[string]any{"repo": repo},
		})
	}

	results, err := s.ExecuteBatch(context.Background(), requests, exec, StrategyParallel)
	require.NoError(t, err)
	require.Len(t, results, 4)

	for i, repo := range []string{"loqa-proto", "loqa-hub", "loqa-skills", "loqa-commander"} {
		require.NoError(t, results[i].Err)
		assert.Equal(t, repo, results[i].Value)
	}
}

func TestBatchPerRequestFailuresDoNotAbort(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	exec := func(ctx context.Context, op string, params map[string]any) (any, error) {
		if params["repo"] == "loqa-hub" {
			return nil, fmt.Errorf("HTTP 404 Not Found")
		}
		return "ok", nil
	}

	requests := []BatchRequest{
		{Op: "getRepo", Params: map[string]any{"repo": "loqa-proto"}},
		{Op: "getRepo", Params: map[string]any{"repo": "loqa-hub"}},
	}

	results, err := s.ExecuteBatch(context.Background(), requests, exec, StrategySequential)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
}

func TestAdaptiveConcurrencyDegrades(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	// Full capacity: the category ceiling.
	assert.Equal(t, 10, s.concurrencyFor(CategoryCore, StrategyAdaptive))

	// Low capacity halves the ceiling.
	s.UpdateRateLimit(CategoryCore, 100, 40, time.Now().Add(time.Hour))
	assert.Equal(t, 5, s.concurrencyFor(CategoryCore, StrategyAdaptive))

	// Critical capacity degrades to sequential.
	s.UpdateRateLimit(CategoryCore, 100, 12, time.Now().Add(time.Hour))
	assert.Equal(t, 1, s.concurrencyFor(CategoryCore, StrategyAdaptive))
}

func TestConcurrencyCeilingsPerCategory(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	assert.Equal(t, 10, s.concurrencyFor(CategoryCore, StrategyParallel))
	assert.Equal(t, 2, s.concurrencyFor(CategorySearch, StrategyParallel))
	assert.Equal(t, 5, s.concurrencyFor(CategoryGraphQL, StrategyParallel))
	assert.Equal(t, 1, s.concurrencyFor(CategoryCore, StrategySequential))
}

func TestSchedulerCountsEvictionMetrics(t *testing.T) {
	_, m := metrics.NewRegistry()
	s := NewScheduler(WithCache(NewCache(1)), WithMetrics(m))
	defer s.Close()
	exec := newCountingExecutor(nil)
	ctx := context.Background()

	// A one-entry cache evicts the first result when the second lands.
	_, err := s.Get(ctx, "listIssues", nil, exec.exec, Options{TTL: time.Minute})
	require.NoError(t, err)
	_, err = s.Get(ctx, "listPulls", nil, exec.exec, Options{TTL: time.Minute})
	require.NoError(t, err)

	assert.Equal(t, 1, s.CacheStats().Evictions)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheEvictions))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.CacheMisses))
}
