package authz

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions *prometheus.CounterVec
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

// NewMetrics returns the process-wide authorization metrics.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "gateway_authorization_decisions_total",
				Help: "Authorization gate decisions by outcome",
			}, []string{"outcome"}),
		}
	})
	return metricsInstance
}

func (m *Metrics) RecordDecision(outcome string) {
	m.Decisions.WithLabelValues(outcome).Inc()
}
