package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics follows domain events from the outbox table to Pub/Sub.
type OutboxMetrics struct {
	published *prometheus.CounterVec
	retried   *prometheus.CounterVec
	parked    *prometheus.CounterVec
	lag       *prometheus.HistogramVec
}

// NewOutboxMetrics registers the outbox publisher metrics on reg. A nil
// registerer yields a no-op recorder.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_events_published_total",
			Help: "Outbox events delivered to Pub/Sub by event type.",
		}, []string{"event_type"}),
		retried: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_events_retried_total",
			Help: "Failed publishes that will be retried, by event type.",
		}, []string{"event_type"}),
		parked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_events_parked_total",
			Help: "Events parked without delivery, by event type and reason.",
		}, []string{"event_type", "reason"}),
		lag: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "outbox_publish_lag_seconds",
			Help:    "Time between an event being recorded and its delivery.",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 300, 900},
		}, []string{"event_type"}),
	}
	reg.MustRegister(m.published, m.retried, m.parked, m.lag)
	return m
}

// Published records a delivery of an event recorded at createdAt.
func (m *OutboxMetrics) Published(eventType string, createdAt time.Time) {
	if m == nil || m.published == nil {
		return
	}
	eventType = normalizeLabel(eventType)
	m.published.WithLabelValues(eventType).Inc()
	if !createdAt.IsZero() {
		m.lag.WithLabelValues(eventType).Observe(time.Since(createdAt).Seconds())
	}
}

// Retried counts a transient failure.
func (m *OutboxMetrics) Retried(eventType string) {
	if m == nil || m.retried == nil {
		return
	}
	m.retried.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// Parked counts an event that will not be delivered.
func (m *OutboxMetrics) Parked(eventType, reason string) {
	if m == nil || m.parked == nil {
		return
	}
	m.parked.WithLabelValues(normalizeLabel(eventType), normalizeLabel(reason)).Inc()
}
