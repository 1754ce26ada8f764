// Package metrics manages the Prometheus registry and defines the metric
// interfaces the rest of the codebase records against. Implementations live
// in the prometheus subpackage; a nil implementation disables recording.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

// InitRegistry creates the process-wide registry with the standard Go and
// process collectors. Safe to call more than once.
func InitRegistry() {
	mu.Lock()
	defer mu.Unlock()
	if registry != nil {
		return
	}
	registry = prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry != nil
}

// GetRegistry returns the process-wide registry, or nil when disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// Handler returns the /metrics HTTP handler. When metrics are disabled it
// serves 404.
func Handler() http.Handler {
	reg := GetRegistry()
	if reg == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// UploadMetrics records upload lifecycle outcomes.
type UploadMetrics interface {
	// RecordInit counts one init call by caller kind ("user" or "demo").
	RecordInit(callerKind string)

	// RecordComplete counts one finished complete call by resulting state
	// and observes its duration.
	RecordComplete(state string, seconds float64)
}

// ScanMetrics records scan worker outcomes.
type ScanMetrics interface {
	// RecordScan counts one processed job by outcome and observes its
	// duration.
	RecordScan(outcome string, seconds float64)
}

// RateLimitMetrics records rejected requests.
type RateLimitMetrics interface {
	// RecordRejection counts one 429 by route.
	RecordRejection(route string)
}
