// Package metrics provides Prometheus metrics collection for dittodocs.
//
// All metrics are optional: if the registry is not initialized, the
// constructors in pkg/metrics/prometheus return nil and the instrumented
// components (transport decorator, connection pool, sweeper) skip
// recording entirely.
//
// Usage:
//
//	// Initialize global registry (typically in main.go)
//	metrics.InitRegistry()
//
//	// Create metrics instances for components
//	tm := prometheus.NewTransportMetrics()
//	pool := connection.NewPool(dialer, connection.Config{
//		Metrics: prometheus.NewConnectionMetrics(),
//	})
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Namespace prefixes every dittodocs metric name.
const Namespace = "dittodocs"

var (
	// registry is the global Prometheus registry, written once by
	// InitRegistry
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry with the Go
// runtime and process collectors.
//
// Safe to call multiple times; subsequent calls are ignored. If never
// called, metrics are disabled.
func InitRegistry() {
	registryOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: Namespace}),
		)
		registry = reg
	})
}

// GetRegistry returns the global Prometheus registry, or nil when metrics
// are disabled.
//
// Thread safety:
// The sync.Once in InitRegistry orders the write before every read that
// observes a non-nil value.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
