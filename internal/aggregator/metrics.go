package aggregator

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the aggregator's Prometheus metrics.
type Metrics struct {
	ActiveNodes        prometheus.Gauge
	TotalNodes         prometheus.Gauge
	TrackedTasks       prometheus.Gauge
	SnapshotsPublished prometheus.Counter
	PeersEvicted       prometheus.Counter
	EventsDropped      prometheus.Counter
}

// NewMetrics creates and registers all aggregator metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		ActiveNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "truewatch_active_nodes",
			Help: "Nodes heard from within the staleness threshold",
		}),
		TotalNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "truewatch_total_nodes",
			Help: "Nodes currently tracked, active or not",
		}),
		TrackedTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "truewatch_tracked_tasks",
			Help: "Task records currently held in memory",
		}),
		SnapshotsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "truewatch_snapshots_published_total",
			Help: "Network stats snapshots published",
		}),
		PeersEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "truewatch_peers_evicted_total",
			Help: "Stale peers removed from the active set",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "truewatch_events_dropped_total",
			Help: "Event detail rows lost to a full persistence queue",
		}),
	}

	prometheus.MustRegister(
		m.ActiveNodes,
		m.TotalNodes,
		m.TrackedTasks,
		m.SnapshotsPublished,
		m.PeersEvicted,
		m.EventsDropped,
	)

	return m
}

// Close unregisters all metrics.
func (m *Metrics) Close() {
	prometheus.Unregister(m.ActiveNodes)
	prometheus.Unregister(m.TotalNodes)
	prometheus.Unregister(m.TrackedTasks)
	prometheus.Unregister(m.SnapshotsPublished)
	prometheus.Unregister(m.PeersEvicted)
	prometheus.Unregister(m.EventsDropped)
}
