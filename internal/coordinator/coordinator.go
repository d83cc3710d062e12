package coordinator

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/loqalabs/loqa-coordinator/internal/config"
	"github.com/loqalabs/loqa-coordinator/internal/errors"
	"github.com/loqalabs/loqa-coordinator/internal/graph"
	"github.com/loqalabs/loqa-coordinator/internal/log"
	"github.com/loqalabs/loqa-coordinator/internal/metrics"
	"github.com/loqalabs/loqa-coordinator/internal/provider"
	"github.com/loqalabs/loqa-coordinator/internal/resilience"
	"github.com/loqalabs/loqa-coordinator/internal/sched"
)

// Coordinator is the facade over the dependency graph, the resilient
// executor, the request scheduler, and the provider registry. All
// multi-repository operations walk the dependency order.
type Coordinator struct {
	config    *config.Config
	registry  *graph.Registry
	executor  *resilience.Executor
	scheduler *sched.Scheduler
	providers *provider.Registry
	git       *Git
	logger    *log.Logger
	metrics   *metrics.Metrics
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithRegistry replaces the repository graph.
func WithRegistry(r *graph.Registry) Option {
	return func(c *Coordinator) { c.registry = r }
}

// WithExecutor replaces the resilient executor.
func WithExecutor(e *resilience.Executor) Option {
	return func(c *Coordinator) { c.executor = e }
}

// WithScheduler replaces the request scheduler.
func WithScheduler(s *sched.Scheduler) Option {
	return func(c *Coordinator) { c.scheduler = s }
}

// WithProviders replaces the provider registry.
func WithProviders(r *provider.Registry) Option {
	return func(c *Coordinator) { c.providers = r }
}

// WithGit replaces the git helper.
func WithGit(g *Git) Option {
	return func(c *Coordinator) { c.git = g }
}

// WithLogger sets the coordinator's logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithMetrics wires Prometheus metrics into the coordinator.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// New builds a Coordinator from configuration. Every collaborator is an
// explicit instance owned by the coordinator, not a package global.
func New(cfg *config.Config, opts ...Option) (*Coordinator, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	c := &Coordinator{
		config: cfg,
		logger: log.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.registry == nil {
		if len(cfg.Repositories) > 0 {
			registry, err := graph.NewRegistry(cfg.Repositories)
			if err != nil {
				return nil, err
			}
			c.registry = registry
		} else {
			c.registry = graph.Default()
		}
	}

	if c.executor == nil {
		execOpts := []resilience.ExecutorOption{
			resilience.WithBreakerConfig(cfg.Breaker.BreakerConfig()),
			resilience.WithRetryConfig(cfg.Retry.RetryConfig()),
			resilience.WithLogger(c.logger),
		}
		if c.metrics != nil {
			execOpts = append(execOpts, resilience.WithMetrics(c.metrics))
		}
		c.executor = resilience.NewExecutor(execOpts...)
	}

	if c.scheduler == nil {
		schedOpts := []sched.SchedulerOption{
			sched.WithCache(sched.NewCache(cfg.Scheduler.CacheMaxEntries)),
			sched.WithLogger(c.logger),
		}
		if d := cfg.Scheduler.DrainInterval(); d > 0 {
			schedOpts = append(schedOpts, sched.WithDrainInterval(d))
		}
		if c.metrics != nil {
			schedOpts = append(schedOpts, sched.WithMetrics(c.metrics))
		}
		c.scheduler = sched.NewScheduler(schedOpts...)
	}

	if c.providers == nil {
		c.providers = provider.NewRegistry()
	}

	if c.git == nil {
		c.git = NewGit(cfg.WorkspaceRoot, c.logger)
	}

	return c, nil
}

// Close releases the coordinator's background resources.
func (c *Coordinator) Close() {
	c.scheduler.Close()
}

// Registry exposes the repository graph.
func (c *Coordinator) Registry() *graph.Registry { return c.registry }

// Providers exposes the provider registry for integration wiring.
func (c *Coordinator) Providers() *provider.Registry { return c.providers }

// RepoResult is the outcome of one repository within a coordinated walk.
type RepoResult struct {
	Repository string        `json:"repository"`
	Success    bool          `json:"success"`
	Skipped    bool          `json:"skipped,omitempty"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	Checks     []CheckResult `json:"checks,omitempty"`
}

// Result aggregates a coordinated walk. Success is false when any
// required repository failed; per-repository detail is always complete.
type Result struct {
	Success bool         `json:"success"`
	Order   []string     `json:"order"`
	Results []RepoResult `json:"results"`
}

// WalkOptions tune a coordinated walk.
type WalkOptions struct {
	// StopOnFailure skips the remaining repositories after a failure
	StopOnFailure bool
	// Fix runs configured autofix commands for failing quality checks
	Fix bool
}

// CreateCoordinatedBranches creates the same branch across repositories
// in dependency order, each through the resilient executor.
func (c *Coordinator) CreateCoordinatedBranches(ctx context.Context, branch string, repos []string, base string, opts WalkOptions) (*Result, error) {
	if err := ValidateBranchName(branch); err != nil {
		return nil, err
	}
	if base == "" {
		base = "main"
	}

	order, err := c.registry.DependencyOrder(repos...)
	if err != nil {
		return nil, err
	}

	result := &Result{Success: true, Order: order}
	stopped := false

	for _, repoID := range order {
		if stopped {
			result.Results = append(result.Results, RepoResult{
				Repository: repoID,
				Skipped:    true,
				Error:      "skipped after earlier failure",
			})
			continue
		}

		start := time.Now()
		_, err := c.executor.Execute(ctx, "branch:"+repoID, func(ctx context.Context) (any, error) {
			return nil, c.git.CreateBranch(ctx, repoID, branch, base)
		}, nil)
		elapsed := time.Since(start)

		repoResult := RepoResult{
			Repository: repoID,
			Success:    err == nil,
			Duration:   elapsed,
		}
		if err != nil {
			repoResult.Error = err.Error()
			result.Success = false
			c.logger.WithError(err).Warn("branch creation failed", "repository", repoID)
			if opts.StopOnFailure {
				stopped = true
			}
		}
		if c.metrics != nil {
			c.metrics.BranchOperations.WithLabelValues(repoID, strconv.FormatBool(err == nil)).Inc()
		}
		result.Results = append(result.Results, repoResult)
	}

	return result, nil
}

// RunCoordinatedQualityGates runs each repository's configured quality
// checks in dependency order. A failing required check marks the
// repository, and the aggregate, as failed; optional checks only report.
func (c *Coordinator) RunCoordinatedQualityGates(ctx context.Context, repos []string, opts WalkOptions) (*Result, error) {
	order, err := c.registry.DependencyOrder(repos...)
	if err != nil {
		return nil, err
	}

	result := &Result{Success: true, Order: order}
	stopped := false

	for _, repoID := range order {
		if stopped {
			result.Results = append(result.Results, RepoResult{
				Repository: repoID,
				Skipped:    true,
				Error:      "skipped after earlier failure",
			})
			continue
		}

		repoResult := c.runRepoGates(ctx, repoID, opts)
		if !repoResult.Success {
			result.Success = false
			if opts.StopOnFailure {
				stopped = true
			}
		}
		result.Results = append(result.Results, repoResult)
	}

	return result, nil
}

// runRepoGates runs one repository's checks through the executor.
func (c *Coordinator) runRepoGates(ctx context.Context, repoID string, opts WalkOptions) RepoResult {
	start := time.Now()
	node, err := c.registry.Get(repoID)
	if err != nil {
		return RepoResult{Repository: repoID, Error: err.Error()}
	}

	checks := c.qualityChecks(node)
	if len(checks) == 0 {
		c.logger.Debug("no quality checks configured", "repository", repoID)
		return RepoResult{Repository: repoID, Success: true, Duration: time.Since(start)}
	}

	// The guarded operation may be abandoned by the breaker's timeout while
	// its checks are still running, so completed results are published
	// under a mutex instead of mutating shared state from the closure.
	var mu sync.Mutex
	var results []CheckResult
	_, execErr := c.executor.Execute(ctx, "gates:"+repoID, func(ctx context.Context) (any, error) {
		attempt := make([]CheckResult, 0, len(checks))
		requiredFailed := false
		for _, check := range checks {
			checkResult := c.runCheck(ctx, repoID, check, opts.Fix)
			attempt = append(attempt, checkResult)
			if c.metrics != nil {
				c.metrics.QualityGateRuns.WithLabelValues(repoID, check.Name, strconv.FormatBool(checkResult.Success)).Inc()
			}
			if !checkResult.Success && check.Required {
				requiredFailed = true
			}
		}
		mu.Lock()
		results = attempt
		mu.Unlock()
		if requiredFailed {
			return nil, errors.New(errors.ErrCodeGateCheckFailed,
				fmt.Sprintf("required quality checks failed in %s", repoID))
		}
		return nil, nil
	}, nil)

	mu.Lock()
	completed := results
	mu.Unlock()

	repoResult := RepoResult{
		Repository: repoID,
		Success:    execErr == nil,
		Duration:   time.Since(start),
		Checks:     completed,
	}
	if execErr != nil {
		repoResult.Error = execErr.Error()
	}
	return repoResult
}

// Do resolves a provider by capability and routes the operation through
// the scheduler and the resilient executor: cache and rate-limit gating
// first, breaker and retry around the actual remote call.
func (c *Coordinator) Do(ctx context.Context, capability provider.Capability, op string, params map[string]any, opts sched.Options) (any, error) {
	p, err := c.providers.Select(capability)
	if err != nil {
		return nil, err
	}

	return c.scheduler.Get(ctx, op, params, func(ctx context.Context, op string, params map[string]any) (any, error) {
		return c.executor.Execute(ctx, op, func(ctx context.Context) (any, error) {
			return p.Execute(ctx, op, params)
		}, nil)
	}, opts)
}

// RateLimitStatus snapshots every rate-limit window.
func (c *Coordinator) RateLimitStatus() map[sched.Category]sched.Window {
	return c.scheduler.RateLimitStatus()
}

// CacheStats snapshots the request cache counters.
func (c *Coordinator) CacheStats() sched.CacheStats {
	return c.scheduler.CacheStats()
}

// ProviderHealth combines provider reachability with breaker snapshots.
type ProviderHealth struct {
	Providers map[string]string           `json:"providers"`
	Breakers  []resilience.HealthSnapshot `json:"breakers"`
}

// ProviderHealthReport reports the health of every registered provider
// and every circuit breaker.
func (c *Coordinator) ProviderHealthReport(ctx context.Context) ProviderHealth {
	report := ProviderHealth{
		Providers: make(map[string]string),
		Breakers:  c.executor.Health(),
	}
	for name, err := range c.providers.Health(ctx) {
		if err != nil {
			report.Providers[name] = err.Error()
		} else {
			report.Providers[name] = "ok"
		}
	}
	return report
}
