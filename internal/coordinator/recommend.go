package coordinator

import (
	"fmt"

	"github.com/loqalabs/loqa-coordinator/internal/resilience"
)

// Severity grades a recommendation.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Recommendation is one actionable observation about coordinator health.
type Recommendation struct {
	Area     string   `json:"area"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// minSampleSize is the request count below which hit-rate advice is noise.
const minSampleSize = 20

// OptimizationRecommendations derives advice from cache statistics,
// queue depth, rate-limit windows, and breaker health.
func (c *Coordinator) OptimizationRecommendations() []Recommendation {
	var recs []Recommendation

	stats := c.scheduler.CacheStats()
	if total := stats.Hits + stats.Misses; total >= minSampleSize && stats.HitRate < 0.5 {
		recs = append(recs, Recommendation{
			Area:     "cache",
			Severity: SeverityWarning,
			Message: fmt.Sprintf("cache hit rate is %.0f%%; consider longer TTLs or batching repeated lookups",
				stats.HitRate*100),
		})
	}
	if stats.Evictions > stats.MaxEntries {
		recs = append(recs, Recommendation{
			Area:     "cache",
			Severity: SeverityInfo,
			Message: fmt.Sprintf("%d evictions against a capacity of %d; consider a larger cache",
				stats.Evictions, stats.MaxEntries),
		})
	}

	if depth := c.scheduler.QueueDepth(); depth > 0 {
		recs = append(recs, Recommendation{
			Area:     "scheduler",
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("%d requests queued for rate-limit capacity; reduce request volume or wait for the window reset", depth),
		})
	}

	for category, window := range c.scheduler.RateLimitStatus() {
		if window.Limit <= 0 {
			continue
		}
		fraction := float64(window.Remaining) / float64(window.Limit)
		switch {
		case fraction <= 0.1:
			recs = append(recs, Recommendation{
				Area:     "ratelimit",
				Severity: SeverityCritical,
				Message: fmt.Sprintf("%s capacity at %.0f%%; new requests are queueing until %s",
					category, fraction*100, window.Reset.Format("15:04:05")),
			})
		case fraction <= 0.2:
			recs = append(recs, Recommendation{
				Area:     "ratelimit",
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("%s capacity at %.0f%%; prefer cached or batched reads", category, fraction*100),
			})
		}
	}

	for _, snapshot := range c.executor.Health() {
		if snapshot.Healthy {
			continue
		}
		severity := SeverityWarning
		if snapshot.State != resilience.StateClosed {
			severity = SeverityCritical
		}
		recs = append(recs, Recommendation{
			Area:     "breaker",
			Severity: severity,
			Message: fmt.Sprintf("operation %s is unhealthy (state=%s, error rate %.1f%%)",
				snapshot.Name, snapshot.State, snapshot.ErrorRate*100),
		})
	}

	if len(recs) == 0 {
		recs = append(recs, Recommendation{
			Area:     "general",
			Severity: SeverityInfo,
			Message:  "no optimization opportunities detected",
		})
	}

	return recs
}
