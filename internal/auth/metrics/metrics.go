package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for auth operations.
type Metrics struct {
	LoginAttempts     *prometheus.CounterVec
	TokensIssued      prometheus.Counter
	Rotations         *prometheus.CounterVec
	ReuseDetections   prometheus.Counter
	FamiliesRevoked   prometheus.Counter
	SessionsRevoked   prometheus.Counter
	LoginDurationMs   prometheus.Histogram
	RefreshDurationMs prometheus.Histogram
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

// New returns the process-wide auth metrics.
func New() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			LoginAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "gateway_login_attempts_total",
				Help: "Login attempts by outcome",
			}, []string{"outcome"}),
			TokensIssued: promauto.NewCounter(prometheus.CounterOpts{
				Name: "gateway_credential_pairs_issued_total",
				Help: "Credential pairs issued by login or rotation",
			}),
			Rotations: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "gateway_session_rotations_total",
				Help: "Session token rotations by outcome",
			}, []string{"outcome"}),
			ReuseDetections: promauto.NewCounter(prometheus.CounterOpts{
				Name: "gateway_session_reuse_detections_total",
				Help: "Presentations of an already rotated or tampered session token",
			}),
			FamiliesRevoked: promauto.NewCounter(prometheus.CounterOpts{
				Name: "gateway_token_families_revoked_total",
				Help: "Token families revoked",
			}),
			SessionsRevoked: promauto.NewCounter(prometheus.CounterOpts{
				Name: "gateway_sessions_revoked_total",
				Help: "Session tokens revoked by logout or explicit revocation",
			}),
			LoginDurationMs: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "gateway_login_duration_ms",
				Help:    "Duration of login requests in milliseconds",
				Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000},
			}),
			RefreshDurationMs: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "gateway_refresh_duration_ms",
				Help:    "Duration of session rotations in milliseconds",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
			}),
		}
	})
	return metricsInstance
}

func (m *Metrics) RecordLogin(outcome string) {
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementTokensIssued() {
	m.TokensIssued.Inc()
}

func (m *Metrics) RecordRotation(outcome string) {
	m.Rotations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementReuseDetections() {
	m.ReuseDetections.Inc()
}

func (m *Metrics) IncrementFamiliesRevoked() {
	m.FamiliesRevoked.Inc()
}

func (m *Metrics) IncrementSessionsRevoked() {
	m.SessionsRevoked.Inc()
}

func (m *Metrics) ObserveLoginDuration(durationMs float64) {
	m.LoginDurationMs.Observe(durationMs)
}

func (m *Metrics) ObserveRefreshDuration(durationMs float64) {
	m.RefreshDurationMs.Observe(durationMs)
}
