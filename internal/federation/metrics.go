package federation

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics for one client instance.
// Registration is explicit so unit tests can construct clients without
// touching the default registry.
type Metrics struct {
	MessagesSent     prometheus.Counter
	MessagesReceived prometheus.Counter
	Errors           prometheus.Counter
	Reconnections    prometheus.Counter
	RateLimited      prometheus.Counter
	CircuitOpen      prometheus.Gauge
}

// NewMetrics creates and registers all client metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "truewatch_messages_sent_total",
			Help: "Envelopes successfully handed to the transport",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "truewatch_messages_received_total",
			Help: "Envelopes decoded from subscriptions",
		}),
		Errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "truewatch_client_errors_total",
			Help: "Publish, decode and transport errors",
		}),
		Reconnections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "truewatch_reconnections_total",
			Help: "Transport reconnections observed",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "truewatch_rate_limited_total",
			Help: "Publishes dropped by the rate limiter",
		}),
		CircuitOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "truewatch_circuit_open",
			Help: "1 while the publish circuit breaker is open",
		}),
	}

	prometheus.MustRegister(
		m.MessagesSent,
		m.MessagesReceived,
		m.Errors,
		m.Reconnections,
		m.RateLimited,
		m.CircuitOpen,
	)

	return m
}

// Close unregisters all metrics.
func (m *Metrics) Close() {
	prometheus.Unregister(m.MessagesSent)
	prometheus.Unregister(m.MessagesReceived)
	prometheus.Unregister(m.Errors)
	prometheus.Unregister(m.Reconnections)
	prometheus.Unregister(m.RateLimited)
	prometheus.Unregister(m.CircuitOpen)
}
