package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wirechat"

// Metrics holds the realtime collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	connections   prometheus.Gauge
	subscriptions prometheus.Gauge
	published     *prometheus.CounterVec
	delivered     *prometheus.CounterVec
	dropped       *prometheus.CounterVec
	actions       *prometheus.CounterVec
}

// New creates collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open realtime connections.",
		}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "room_subscriptions",
			Help:      "Connections currently subscribed to a room.",
		}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events published per topic family.",
		}, []string{"family"}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_delivered_total",
			Help:      "Events enqueued to subscriber connections.",
		}, []string{"family"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events dropped because a subscriber queue was full.",
		}, []string{"family"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Dispatched actions by name and outcome.",
		}, []string{"action", "outcome"}),
	}

	if reg != nil {
		reg.MustRegister(m.connections, m.subscriptions, m.published, m.delivered, m.dropped, m.actions)
	}
	return m
}

// ConnectionOpened increments the open connection gauge.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

// ConnectionClosed decrements the open connection gauge.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

// Subscribed increments the room subscription gauge.
func (m *Metrics) Subscribed() {
	if m == nil {
		return
	}
	m.subscriptions.Inc()
}

// Unsubscribed decrements the room subscription gauge.
func (m *Metrics) Unsubscribed() {
	if m == nil {
		return
	}
	m.subscriptions.Dec()
}

// Published records one publish on a topic family with its delivery outcome.
func (m *Metrics) Published(family string, delivered, dropped int) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(family).Inc()
	m.delivered.WithLabelValues(family).Add(float64(delivered))
	m.dropped.WithLabelValues(family).Add(float64(dropped))
}

// Action records a dispatched action outcome ("ok", "error", "rejected").
func (m *Metrics) Action(action, outcome string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(action, outcome).Inc()
}
