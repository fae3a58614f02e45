package statestore

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for shared store calls.
type Metrics struct {
	OpDuration *prometheus.HistogramVec
	OpErrors   *prometheus.CounterVec
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

// NewMetrics returns the singleton Metrics instance.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "gateway_statestore_op_duration_seconds",
				Help:    "Latency of shared state store operations",
				Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
			}, []string{"op"}),
			OpErrors: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "gateway_statestore_op_errors_total",
				Help: "Shared state store operations that failed",
			}, []string{"op"}),
		}
	})
	return metricsInstance
}

func (m *Metrics) ObserveOp(op string, d time.Duration, failed bool) {
	m.OpDuration.WithLabelValues(op).Observe(d.Seconds())
	if failed {
		m.OpErrors.WithLabelValues(op).Inc()
	}
}
