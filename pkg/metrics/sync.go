package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics records outcomes of proposal-to-deal sync attempts.
type SyncMetrics struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	applied  prometheus.Counter
}

// NewSyncMetrics registers the sync metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_attempts_total",
		Help: "Sync attempts by proposal event type and outcome.",
	}, []string{"event_type", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_duration_seconds",
		Help:    "Duration of sync attempts in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})
	applied := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_products_applied_total",
		Help: "Deal product rows written by successful syncs.",
	})
	reg.MustRegister(total, duration, applied)
	return &SyncMetrics{
		total:    total,
		duration: duration,
		applied:  applied,
	}
}

// ObserveAttempt records one finished sync attempt.
func (s *SyncMetrics) ObserveAttempt(eventType, outcome string, duration time.Duration) {
	if s == nil {
		return
	}
	if s.total != nil {
		s.total.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
	}
	if s.duration != nil {
		s.duration.WithLabelValues(normalizeLabel(eventType)).Observe(duration.Seconds())
	}
}

// AddApplied counts deal product rows written.
func (s *SyncMetrics) AddApplied(count int) {
	if s == nil || s.applied == nil || count <= 0 {
		return
	}
	s.applied.Add(float64(count))
}
