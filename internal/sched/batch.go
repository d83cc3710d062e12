package sched

import (
	"context"
	"sync"
	"time"
)

// Strategy selects how a batch is executed.
type Strategy string

const (
	// StrategyParallel runs each category at its fixed concurrency ceiling
	StrategyParallel Strategy = "parallel"
	// StrategySequential runs one request at a time
	StrategySequential Strategy = "sequential"
	// StrategyAdaptive scales concurrency down as rate-limit capacity
	// shrinks, falling back to sequential when capacity is critical
	StrategyAdaptive Strategy = "adaptive"
)

// categoryConcurrency fixes the parallel ceiling per API category.
var categoryConcurrency = map[Category]int{
	CategoryCore:    10,
	CategorySearch:  2,
	CategoryGraphQL: 5,
}

// Adaptive capacity thresholds, as fractions of the category budget.
// Below critical the batch degrades to sequential; below low the
// concurrency ceiling is halved.
const (
	adaptiveLowCapacity      = 0.5
	adaptiveCriticalCapacity = 0.15
)

// BatchRequest is one request within a batch submission.
type BatchRequest struct {
	Op       string
	Params   map[string]any
	Category Category
	Priority Priority
	TTL      time.Duration
}

// BatchResult pairs one submitted request with its outcome. Results are
// returned in submission order, duplicates included.
type BatchResult struct {
	Op    string
	Value any
	Err   error
}

// batchGroup collapses duplicate (op, params) submissions to one
// execution whose outcome fans out to every submitted index.
type batchGroup struct {
	req     BatchRequest
	indices []int
}

// ExecuteBatch runs requests through the scheduler under the chosen
// strategy. Duplicate (op, params) pairs execute once. Per-request
// failures land in the result slice; the returned error covers only
// setup failures such as unhashable parameters.
func (s *Scheduler) ExecuteBatch(ctx context.Context, requests []BatchRequest, exec Executor, strategy Strategy) ([]BatchResult, error) {
	results := make([]BatchResult, len(requests))

	groups := make(map[string]*batchGroup)
	var order []string
	for i, r := range requests {
		if r.Category == "" {
			r.Category = CategoryCore
		}
		key, err := Key(r.Op, r.Params)
		if err != nil {
			return nil, err
		}
		g, ok := groups[key]
		if !ok {
			g = &batchGroup{req: r}
			groups[key] = g
			order = append(order, key)
		}
		g.indices = append(g.indices, i)
	}

	run := func(ctx context.Context, g *batchGroup) {
		value, err := s.Get(ctx, g.req.Op, g.req.Params, exec, Options{
			TTL:      g.req.TTL,
			Priority: g.req.Priority,
			Category: g.req.Category,
		})
		for _, i := range g.indices {
			results[i] = BatchResult{Op: g.req.Op, Value: value, Err: err}
		}
	}

	// Keep per-category submission order while grouping by category.
	byCategory := make(map[Category][]*batchGroup)
	var categories []Category
	for _, key := range order {
		g := groups[key]
		if _, ok := byCategory[g.req.Category]; !ok {
			categories = append(categories, g.req.Category)
		}
		byCategory[g.req.Category] = append(byCategory[g.req.Category], g)
	}

	for _, cat := range categories {
		limit := s.concurrencyFor(cat, strategy)
		runChunked(ctx, byCategory[cat], limit, run)
	}

	return results, nil
}

// concurrencyFor resolves the concurrency ceiling for one category under
// the chosen strategy.
func (s *Scheduler) concurrencyFor(cat Category, strategy Strategy) int {
	ceiling, ok := categoryConcurrency[cat]
	if !ok {
		ceiling = categoryConcurrency[CategoryCore]
	}

	switch strategy {
	case StrategySequential:
		return 1
	case StrategyAdaptive:
		fraction := s.limiter.Fraction(cat)
		switch {
		case fraction <= adaptiveCriticalCapacity:
			return 1
		case fraction <= adaptiveLowCapacity:
			if ceiling/2 < 1 {
				return 1
			}
			return ceiling / 2
		default:
			return ceiling
		}
	default:
		return ceiling
	}
}

// runChunked executes groups in chunks no larger than limit, waiting for
// each chunk before issuing the next.
func runChunked(ctx context.Context, groups []*batchGroup, limit int, run func(context.Context, *batchGroup)) {
	if limit < 1 {
		limit = 1
	}
	for start := 0; start < len(groups); start += limit {
		end := start + limit
		if end > len(groups) {
			end = len(groups)
		}

		var wg sync.WaitGroup
		for _, g := range groups[start:end] {
			wg.Add(1)
			go func(g *batchGroup) {
				defer wg.Done()
				run(ctx, g)
			}(g)
		}
		wg.Wait()
	}
}
