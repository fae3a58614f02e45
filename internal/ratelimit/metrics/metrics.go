package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions          *prometheus.CounterVec
	FallbackDecisions  *prometheus.CounterVec
	CircuitOpen        prometheus.Gauge
	AuthFailures       prometheus.Counter
	AuthLockouts       prometheus.Counter
	LockoutCheckErrors prometheus.Counter
	ThrottleRejections prometheus.Counter
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

// New returns the process-wide rate limit metrics.
func New() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "gateway_ratelimit_decisions_total",
				Help: "Rate limit decisions by scope and outcome",
			}, []string{"scope", "outcome"}),
			FallbackDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "gateway_ratelimit_fallback_decisions_total",
				Help: "Rate limit decisions served by the in-process fallback",
			}, []string{"scope"}),
			CircuitOpen: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "gateway_ratelimit_circuit_open",
				Help: "1 while the state store circuit is open",
			}),
			AuthFailures: promauto.NewCounter(prometheus.CounterOpts{
				Name: "gateway_auth_failures_recorded_total",
				Help: "Failed authentication attempts recorded by the lockout tracker",
			}),
			AuthLockouts: promauto.NewCounter(prometheus.CounterOpts{
				Name: "gateway_auth_lockouts_total",
				Help: "Identifier and origin pairs that reached the lockout threshold",
			}),
			LockoutCheckErrors: promauto.NewCounter(prometheus.CounterOpts{
				Name: "gateway_auth_lockout_check_errors_total",
				Help: "Lockout checks that failed and were treated as locked",
			}),
			ThrottleRejections: promauto.NewCounter(prometheus.CounterOpts{
				Name: "gateway_global_throttle_rejections_total",
				Help: "Requests rejected by the process-wide throttle",
			}),
		}
	})
	return metricsInstance
}

func (m *Metrics) RecordDecision(scope string, allowed bool) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	m.Decisions.WithLabelValues(scope, outcome).Inc()
}

func (m *Metrics) RecordFallback(scope string) {
	m.FallbackDecisions.WithLabelValues(scope).Inc()
}

func (m *Metrics) SetCircuitOpen(open bool) {
	if open {
		m.CircuitOpen.Set(1)
		return
	}
	m.CircuitOpen.Set(0)
}

func (m *Metrics) IncrementAuthFailures() {
	m.AuthFailures.Inc()
}

func (m *Metrics) IncrementAuthLockouts() {
	m.AuthLockouts.Inc()
}

func (m *Metrics) IncrementLockoutCheckErrors() {
	m.LockoutCheckErrors.Inc()
}

func (m *Metrics) IncrementThrottleRejections() {
	m.ThrottleRejections.Inc()
}
