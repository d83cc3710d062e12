package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Default is the process-wide metrics instance, registered on the
	// global Prometheus registerer on first use.
	Default *Metrics
	once    sync.Once
)

// InitDefault registers the default metrics on the global registerer.
// Safe to call more than once; only the first call registers.
func InitDefault() *Metrics {
	once.Do(func() {
		Default = NewMetrics(prometheus.DefaultRegisterer)
	})
	return Default
}

// GetDefault returns the default metrics, initializing on first call.
func GetDefault() *Metrics {
	if Default == nil {
		return InitDefault()
	}
	return Default
}

// NewRegistry pairs a fresh isolated registry with a metrics instance
// registered on it. Callers that must not touch the global registerer
// (tests, embedded use) go through here.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	return reg, m
}

// Handler serves the global registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Reset forgets the default instance so tests can reinitialize it.
func Reset() {
	Default = nil
	once = sync.Once{}
}
