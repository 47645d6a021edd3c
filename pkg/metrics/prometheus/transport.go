// Package prometheus provides the Prometheus implementations of the
// metrics hooks exposed by the transport, connection and gc packages.
//
// Every constructor returns nil when metrics are disabled (InitRegistry
// not called); a nil hook disables recording in the instrumented
// component.
package prometheus

import (
	"time"

	"github.com/marmos91/dittodocs/pkg/metrics"
	"github.com/marmos91/dittodocs/pkg/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// transportMetrics is the Prometheus implementation of transport.Metrics.
type transportMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec
}

// NewTransportMetrics creates transport metrics on the global registry.
//
// Returns nil if metrics are not enabled, which makes transport.Instrument
// skip recording.
func NewTransportMetrics() transport.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}
	return NewTransportMetricsWith(metrics.GetRegistry())
}

// NewTransportMetricsWith creates transport metrics registered on reg.
func NewTransportMetricsWith(reg prometheus.Registerer) transport.Metrics {
	return &transportMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "remote_operations_total",
				Help:      "Total number of remote store operations by operation type and status",
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metrics.Namespace,
				Name:      "remote_operation_duration_seconds",
				Help:      "Duration of remote store operations in seconds",
				Buckets: []float64{
					0.005, // 5ms
					0.01,  // 10ms
					0.025, // 25ms
					0.05,  // 50ms
					0.1,   // 100ms
					0.25,  // 250ms
					0.5,   // 500ms
					1.0,   // 1s
					2.5,   // 2.5s
					5.0,   // 5s
					10.0,  // 10s
				},
			},
			[]string{"operation"},
		),
		errorsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "remote_errors_total",
				Help:      "Total number of failed remote store operations by operation type and kind",
			},
			[]string{"operation", "kind"},
		),
	}
}

// ObserveOperation implements transport.Metrics.
func (m *transportMetrics) ObserveOperation(op transport.Op, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		m.errorsTotal.WithLabelValues(string(op), errorKind(err)).Inc()
	}

	m.operationsTotal.WithLabelValues(string(op), status).Inc()
	m.operationDuration.WithLabelValues(string(op)).Observe(duration.Seconds())
}

// errorKind buckets errors into a small label set.
func errorKind(err error) string {
	switch {
	case transport.IsNotFound(err):
		return "not_found"
	case isClosed(err):
		return "closed"
	case isTimeout(err):
		return "timeout"
	default:
		return "other"
	}
}
