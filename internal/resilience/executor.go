package resilience

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/loqalabs/loqa-coordinator/internal/errors"
	"github.com/loqalabs/loqa-coordinator/internal/log"
	"github.com/loqalabs/loqa-coordinator/internal/metrics"
)

// Executor is the reusable fault-tolerance primitive: it wraps remote calls
// with a per-operation circuit breaker and a retry-with-backoff policy.
// Retry composes inside the breaker, so transient retried failures do not
// individually count against the breaker's failure threshold; only the
// final outcome of a guarded call does.
type Executor struct {
	breakerConfig BreakerConfig
	retryConfig   RetryConfig
	logger        *log.Logger
	metrics       *metrics.Metrics

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithBreakerConfig overrides the breaker defaults.
func WithBreakerConfig(config BreakerConfig) ExecutorOption {
	return func(e *Executor) { e.breakerConfig = config }
}

// WithRetryConfig overrides the retry defaults.
func WithRetryConfig(config RetryConfig) ExecutorOption {
	return func(e *Executor) { e.retryConfig = config }
}

// WithLogger sets the executor's logger.
func WithLogger(logger *log.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = logger }
}

// WithMetrics wires Prometheus metrics into the executor and the
// breakers it creates.
func WithMetrics(m *metrics.Metrics) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

// NewExecutor creates an Executor with the reference defaults.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		breakerConfig: DefaultBreakerConfig(),
		retryConfig:   DefaultRetryConfig(),
		logger:        log.DefaultLogger(),
		breakers:      make(map[string]*Breaker),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// breakerFor returns the breaker guarding the named operation, creating it
// on first use. One breaker instance exclusively owns its state.
func (e *Executor) breakerFor(name string) *Breaker {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.breakers[name]
	if !ok {
		b = NewBreaker(name, e.breakerConfig)
		b.metrics = e.metrics
		e.breakers[name] = b
	}
	return b
}

// Execute runs op guarded by the named breaker, retrying transient
// failures internally. When the breaker is open and a fallback is
// provided, the fallback runs instead of surfacing the rejection.
func (e *Executor) Execute(ctx context.Context, name string, op Operation, fallback Operation) (any, error) {
	breaker := e.breakerFor(name)

	retryConfig := e.retryConfig
	if e.metrics != nil {
		m := e.metrics
		retryConfig.OnRetry = func(int) {
			m.RetryAttempts.WithLabelValues(name).Inc()
		}
	}

	start := time.Now()
	result, err := breaker.Execute(ctx, func(ctx context.Context) (any, error) {
		return Retry(ctx, retryConfig, op)
	})
	e.observe(name, time.Since(start), err)

	if err == nil {
		return result, nil
	}

	if errors.IsCircuitOpen(err) {
		if fallback != nil {
			e.logger.Warn("circuit open, using fallback", "operation", name)
			return fallback(ctx)
		}
		return nil, err
	}

	e.logger.WithError(err).Debug("guarded operation failed", "operation", name)
	return nil, err
}

// observe records one guarded call's outcome, duration, and error class.
func (e *Executor) observe(name string, elapsed time.Duration, err error) {
	if e.metrics == nil {
		return
	}

	e.metrics.Operations.WithLabelValues(name, strconv.FormatBool(err == nil)).Inc()
	e.metrics.OperationDuration.WithLabelValues(name).Observe(elapsed.Seconds())

	if err == nil {
		return
	}
	if errors.IsCircuitOpen(err) {
		e.metrics.BreakerRejections.WithLabelValues(name).Inc()
	}
	code := string(errors.CodeOf(err))
	if code == "" {
		code = "unknown"
	}
	e.metrics.Errors.WithLabelValues(code).Inc()
}

// Health returns a snapshot per guarded operation, sorted by name.
func (e *Executor) Health() []HealthSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]HealthSnapshot, 0, len(e.breakers))
	for _, b := range e.breakers {
		out = append(out, b.Health())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Breaker exposes the breaker guarding the named operation, or nil if no
// call has been guarded under that name yet.
func (e *Executor) Breaker(name string) *Breaker {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.breakers[name]
}
