package request

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RequestLatency *prometheus.HistogramVec
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

// NewMetrics returns the process-wide HTTP metrics, registering them once.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "gateway_http_request_duration_seconds",
				Help:    "Latency of gateway routes in seconds",
				Buckets: prometheus.DefBuckets,
			}, []string{"route", "status"}),
		}
	})
	return metricsInstance
}

func (m *Metrics) ObserveRequest(route string, status int, durationSeconds float64) {
	m.RequestLatency.WithLabelValues(route, strconv.Itoa(status)).Observe(durationSeconds)
}
