package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics records refund attempts against the payment collaborator.
type SettlementMetrics struct {
	duration *prometheus.HistogramVec
	attempts *prometheus.CounterVec
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_duration_seconds",
		Help:    "Duration of refund calls to the payment collaborator in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_attempts_total",
		Help: "Refund attempts by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(duration, attempts)
	return &SettlementMetrics{
		duration: duration,
		attempts: attempts,
	}
}

// ObserveAttempt records one refund attempt with its outcome and duration.
func (s *SettlementMetrics) ObserveAttempt(outcome string, duration time.Duration) {
	if s == nil {
		return
	}
	label := normalizeLabel(outcome)
	if s.attempts != nil {
		s.attempts.WithLabelValues(label).Inc()
	}
	if s.duration != nil {
		s.duration.WithLabelValues(label).Observe(duration.Seconds())
	}
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
