package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/loqalabs/loqa-coordinator/internal/errors"
	"github.com/loqalabs/loqa-coordinator/internal/metrics"
)

// State is the circuit breaker state
type State string

const (
	// StateClosed passes requests through and counts failures
	StateClosed State = "closed"
	// StateOpen short-circuits requests until the recovery timeout elapses
	StateOpen State = "open"
	// StateHalfOpen allows trial requests to probe for recovery
	StateHalfOpen State = "half-open"
)

// responseTimeWindowSize bounds the rolling window of recent response times.
const responseTimeWindowSize = 100

// BreakerConfig tunes a circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the recent-failure count that opens the breaker
	FailureThreshold int
	// RecoveryTimeout is how long the breaker stays open before probing
	RecoveryTimeout time.Duration
	// MonitoringPeriod bounds the window over which counts are "recent"
	MonitoringPeriod time.Duration
	// SuccessThreshold is the consecutive half-open successes needed to close
	SuccessThreshold int
	// ResponseTimeThreshold is the per-call timeout; exceeding it is a failure
	ResponseTimeThreshold time.Duration
	// MinimumThroughput is the recent request count required before the
	// breaker may open; protects against opening on a cold start
	MinimumThroughput int
}

// DefaultBreakerConfig returns the reference defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:      5,
		RecoveryTimeout:       60 * time.Second,
		MonitoringPeriod:      300 * time.Second,
		SuccessThreshold:      3,
		ResponseTimeThreshold: 10 * time.Second,
		MinimumThroughput:     10,
	}
}

// Breaker guards one remote operation with a three-state circuit.
// All mutable state is owned by the breaker and guarded by its mutex.
type Breaker struct {
	name    string
	config  BreakerConfig
	metrics *metrics.Metrics

	mu                sync.Mutex
	state             State
	failureCount      int
	successCount      int
	totalRequests     int
	lastFailure       time.Time
	lastSuccess       time.Time
	lastTransition    time.Time
	windowStart       time.Time
	responseTimes     []time.Duration
	halfOpenSuccesses int

	now func() time.Time // overridable for tests
}

// NewBreaker creates a circuit breaker in the closed state.
func NewBreaker(name string, config BreakerConfig) *Breaker {
	if config.FailureThreshold <= 0 {
		config = DefaultBreakerConfig()
	}
	b := &Breaker{
		name:   name,
		config: config,
		state:  StateClosed,
		now:    time.Now,
	}
	b.lastTransition = b.now()
	b.windowStart = b.lastTransition
	return b
}

// Operation is a guarded remote call.
type Operation func(ctx context.Context) (any, error)

// Execute runs op through the breaker, racing it against the response-time
// threshold. A timeout counts as a failure. When the breaker is open the
// call is rejected with a circuit-open error without invoking op.
func (b *Breaker) Execute(ctx context.Context, op Operation) (any, error) {
	if err := b.allow(); err != nil {
		return nil, err
	}

	start := b.now()
	result, err := b.runWithTimeout(ctx, op)
	elapsed := b.now().Sub(start)

	if err != nil {
		b.recordFailure(elapsed)
		return nil, err
	}
	b.recordSuccess(elapsed)
	return result, nil
}

// runWithTimeout races op against the response-time threshold so a slow
// call always resolves as a failure, never a silent hang.
func (b *Breaker) runWithTimeout(ctx context.Context, op Operation) (any, error) {
	type outcome struct {
		result any
		err    error
	}

	timeout := b.config.ResponseTimeThreshold
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		result, err := op(callCtx)
		done <- outcome{result: result, err: err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-callCtx.Done():
		return nil, errors.Wrap(errors.ErrCodeBreakerTimeout,
			"operation "+b.name+" exceeded response-time threshold", callCtx.Err())
	}
}

// allow decides whether a request may proceed, transitioning open to
// half-open once the recovery timeout has elapsed.
func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.lastTransition) >= b.config.RecoveryTimeout {
			b.transition(StateHalfOpen)
			return nil
		}
		return errors.NewCircuitOpenError(b.name)
	default:
		return nil
	}
}

func (b *Breaker) recordSuccess(elapsed time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollWindow()
	b.totalRequests++
	b.successCount++
	b.lastSuccess = b.now()
	b.pushResponseTime(elapsed)

	if b.state == StateHalfOpen {
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.config.SuccessThreshold {
			b.transition(StateClosed)
		}
	}
}

func (b *Breaker) recordFailure(elapsed time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollWindow()
	b.totalRequests++
	b.failureCount++
	b.lastFailure = b.now()
	b.pushResponseTime(elapsed)

	switch b.state {
	case StateHalfOpen:
		// Any half-open failure reopens immediately and restarts the timer.
		b.transition(StateOpen)
	case StateClosed:
		if b.totalRequests >= b.config.MinimumThroughput &&
			b.failureCount >= b.config.FailureThreshold {
			b.transition(StateOpen)
		}
	}
}

// transition changes state and resets the counters the new state starts from.
func (b *Breaker) transition(next State) {
	b.state = next
	b.lastTransition = b.now()
	b.halfOpenSuccesses = 0

	if b.metrics != nil {
		b.metrics.BreakerTransitions.WithLabelValues(b.name, string(next)).Inc()
	}

	if next == StateClosed {
		b.failureCount = 0
		b.successCount = 0
		b.totalRequests = 0
		b.windowStart = b.now()
	}
}

// rollWindow discards stale counts once the monitoring period has elapsed.
func (b *Breaker) rollWindow() {
	if b.now().Sub(b.windowStart) >= b.config.MonitoringPeriod {
		b.failureCount = 0
		b.successCount = 0
		b.totalRequests = 0
		b.windowStart = b.now()
	}
}

func (b *Breaker) pushResponseTime(elapsed time.Duration) {
	b.responseTimes = append(b.responseTimes, elapsed)
	if len(b.responseTimes) > responseTimeWindowSize {
		b.responseTimes = b.responseTimes[1:]
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// HealthSnapshot summarizes one breaker's recent behavior.
type HealthSnapshot struct {
	Name            string        `json:"name"`
	State           State         `json:"state"`
	Healthy         bool          `json:"healthy"`
	TotalRequests   int           `json:"total_requests"`
	FailureCount    int           `json:"failure_count"`
	SuccessCount    int           `json:"success_count"`
	ErrorRate       float64       `json:"error_rate"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	LastFailure     time.Time     `json:"last_failure,omitempty"`
	LastSuccess     time.Time     `json:"last_success,omitempty"`
	LastTransition  time.Time     `json:"last_transition"`
}

// Health reports the breaker's health. Unhealthy when not closed, when the
// recent error rate exceeds 5%, or when the average response time exceeds
// the response-time threshold.
func (b *Breaker) Health() HealthSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errorRate float64
	if b.totalRequests > 0 {
		errorRate = float64(b.failureCount) / float64(b.totalRequests)
	}

	var avg time.Duration
	if len(b.responseTimes) > 0 {
		var total time.Duration
		for _, rt := range b.responseTimes {
			total += rt
		}
		avg = total / time.Duration(len(b.responseTimes))
	}

	healthy := b.state == StateClosed &&
		errorRate <= 0.05 &&
		avg <= b.config.ResponseTimeThreshold

	return HealthSnapshot{
		Name:            b.name,
		State:           b.state,
		Healthy:         healthy,
		TotalRequests:   b.totalRequests,
		FailureCount:    b.failureCount,
		SuccessCount:    b.successCount,
		ErrorRate:       errorRate,
		AvgResponseTime: avg,
		LastFailure:     b.lastFailure,
		LastSuccess:     b.lastSuccess,
		LastTransition:  b.lastTransition,
	}
}
