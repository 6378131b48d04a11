package processor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the processor's Prometheus collectors.
type Metrics struct {
	events        *prometheus.CounterVec
	notifications *prometheus.CounterVec
	duration      prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rollcall_events_total",
				Help: "Payment events handled, by outcome",
			},
			[]string{"outcome"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rollcall_notifications_total",
				Help: "Confirmation deliveries, by result",
			},
			[]string{"result"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rollcall_event_duration_seconds",
				Help:    "Time spent processing a payment event",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.events, m.notifications, m.duration)
	}
	return m
}

// Notification results.
const (
	resultSent             = "sent"
	resultInvalidRecipient = "invalid_recipient"
	resultFailed           = "failed"
)
