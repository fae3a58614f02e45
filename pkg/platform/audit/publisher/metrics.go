package publisher

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks audit delivery outcomes.
type Metrics struct {
	events     *prometheus.CounterVec
	retries    prometheus.Counter
	queueDepth prometheus.Gauge
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

// NewMetrics returns the process-wide audit publisher metrics.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			events: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "gateway_audit_events_total",
				Help: "Audit events by delivery outcome (published, dropped, failed)",
			}, []string{"outcome"}),
			retries: promauto.NewCounter(prometheus.CounterOpts{
				Name: "gateway_audit_retries_total",
				Help: "Audit sink write retries",
			}),
			queueDepth: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "gateway_audit_queue_depth",
				Help: "Audit events waiting for delivery",
			}),
		}
	})
	return metricsInstance
}

func (m *Metrics) IncPublished() { m.events.WithLabelValues("published").Inc() }
func (m *Metrics) IncDropped()   { m.events.WithLabelValues("dropped").Inc() }
func (m *Metrics) IncFailed()    { m.events.WithLabelValues("failed").Inc() }
func (m *Metrics) IncRetries()   { m.retries.Inc() }

func (m *Metrics) SetQueueDepth(n int) { m.queueDepth.Set(float64(n)) }
