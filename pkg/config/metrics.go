package config

import (
	"github.com/marmos91/dittodocs/pkg/connection"
	"github.com/marmos91/dittodocs/pkg/gc"
	"github.com/marmos91/dittodocs/pkg/metrics"
	promMetrics "github.com/marmos91/dittodocs/pkg/metrics/prometheus"
	"github.com/marmos91/dittodocs/pkg/transport"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// Transport observes every remote call (nil if disabled)
	Transport transport.Metrics

	// Connection observes dials and probes of the session pool (nil if disabled)
	Connection connection.Metrics

	// Sweep observes sidecar sweeps (nil if disabled)
	Sweep gc.Metrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed hooks for the transport, pool and sweeper
//
// If metrics are disabled:
//   - Returns nil server and nil hooks (recording is skipped)
//
// health is probed by the /healthz endpoint; it may be nil.
func InitializeMetrics(cfg *Config, health metrics.HealthFunc) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Port:   cfg.Metrics.Port,
		Health: health,
	})

	return &MetricsResult{
		Server:     server,
		Transport:  promMetrics.NewTransportMetrics(),
		Connection: promMetrics.NewConnectionMetrics(),
		Sweep:      promMetrics.NewSweepMetrics(),
	}
}
