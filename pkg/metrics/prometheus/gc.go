package prometheus

import (
	"github.com/marmos91/dittodocs/pkg/gc"
	"github.com/marmos91/dittodocs/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// sweepMetrics is the Prometheus implementation of gc.Metrics.
type sweepMetrics struct {
	sweepsTotal    *prometheus.CounterVec
	sweepDuration  prometheus.Histogram
	orphansFound   prometheus.Counter
	orphansDeleted prometheus.Counter
	deleteFailures prometheus.Counter
}

// NewSweepMetrics creates sidecar sweeper metrics on the global registry.
// Returns nil if metrics are not enabled.
func NewSweepMetrics() gc.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}
	return NewSweepMetricsWith(metrics.GetRegistry())
}

// NewSweepMetricsWith creates sidecar sweeper metrics registered on reg.
func NewSweepMetricsWith(reg prometheus.Registerer) gc.Metrics {
	return &sweepMetrics{
		sweepsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "sweeps_total",
				Help:      "Total number of document sweeps by status",
			},
			[]string{"status"},
		),
		sweepDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metrics.Namespace,
				Name:      "sweep_duration_seconds",
				Help:      "Duration of document sweeps in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
			},
		),
		orphansFound: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "sweep_orphans_found_total",
				Help:      "Total number of orphaned sidecars found",
			},
		),
		orphansDeleted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "sweep_orphans_deleted_total",
				Help:      "Total number of orphaned sidecars deleted",
			},
		),
		deleteFailures: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "sweep_delete_failures_total",
				Help:      "Total number of orphaned sidecars that failed to delete",
			},
		),
	}
}

// ObserveSweep implements gc.Metrics.
func (m *sweepMetrics) ObserveSweep(report *gc.Report, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.sweepsTotal.WithLabelValues(status).Inc()

	if report == nil {
		return
	}
	m.sweepDuration.Observe(report.Duration().Seconds())
	m.orphansFound.Add(float64(len(report.Orphans)))
	m.orphansDeleted.Add(float64(report.Deleted))
	m.deleteFailures.Add(float64(report.Failed))
}
