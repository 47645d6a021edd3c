package prometheus

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/marmos91/dittodocs/pkg/connection"
	"github.com/marmos91/dittodocs/pkg/metrics"
	"github.com/marmos91/dittodocs/pkg/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var states = []connection.State{
	connection.Disconnected,
	connection.Connecting,
	connection.Ready,
	connection.Broken,
}

// connectionMetrics is the Prometheus implementation of
// connection.Metrics.
type connectionMetrics struct {
	dialsTotal    *prometheus.CounterVec
	dialDuration  prometheus.Histogram
	probeFailures prometheus.Counter
	state         *prometheus.GaugeVec
}

// NewConnectionMetrics creates session pool metrics on the global
// registry. Returns nil if metrics are not enabled.
func NewConnectionMetrics() connection.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}
	return NewConnectionMetricsWith(metrics.GetRegistry())
}

// NewConnectionMetricsWith creates session pool metrics registered on reg.
func NewConnectionMetricsWith(reg prometheus.Registerer) connection.Metrics {
	return &connectionMetrics{
		dialsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "connection_dials_total",
				Help:      "Total number of remote session dials by status",
			},
			[]string{"status"},
		),
		dialDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metrics.Namespace,
				Name:      "connection_dial_duration_seconds",
				Help:      "Duration of remote session dials in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		probeFailures: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "connection_probe_failures_total",
				Help:      "Total number of failed liveness probes of the remote session",
			},
		),
		state: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metrics.Namespace,
				Name:      "connection_state",
				Help:      "Current remote session state (1 for the active state)",
			},
			[]string{"state"},
		),
	}
}

// RecordDial implements connection.Metrics.
func (m *connectionMetrics) RecordDial(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dialsTotal.WithLabelValues(status).Inc()
	m.dialDuration.Observe(duration.Seconds())
}

// RecordProbeFailure implements connection.Metrics.
func (m *connectionMetrics) RecordProbeFailure() {
	m.probeFailures.Inc()
}

// SetState implements connection.Metrics.
func (m *connectionMetrics) SetState(current connection.State) {
	for _, s := range states {
		v := 0.0
		if s == current {
			v = 1
		}
		m.state.WithLabelValues(s.String()).Set(v)
	}
}

func isClosed(err error) bool {
	return errors.Is(err, transport.ErrClosed) || errors.Is(err, connection.ErrPoolClosed)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
