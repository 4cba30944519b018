package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the fan-out hub's Prometheus instrumentation.
type Metrics struct {
	ConnectionsActive    prometheus.Gauge
	ConnectionsTotal     prometheus.Counter
	ConnectionsRejected  *prometheus.CounterVec
	MessagesSentTotal    *prometheus.CounterVec
	MessagesDroppedTotal *prometheus.CounterVec
	RoomsActive          prometheus.Gauge
}

// NewMetrics registers the realtime package's metrics under namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ConnectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "connections_active",
			Help:      "Current number of open WebSocket connections.",
		}),
		ConnectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "connections_total",
			Help:      "Total WebSocket connections accepted.",
		}),
		ConnectionsRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "realtime",
				Name:      "connections_rejected_total",
				Help:      "Total WebSocket connections rejected, by reason.",
			},
			[]string{"reason"},
		),
		MessagesSentTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "realtime",
				Name:      "messages_sent_total",
				Help:      "Total messages sent to connections, by message type.",
			},
			[]string{"type"},
		),
		MessagesDroppedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "realtime",
				Name:      "messages_dropped_total",
				Help:      "Total inbound messages dropped, by reason.",
			},
			[]string{"reason"},
		),
		RoomsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "rooms_active",
			Help:      "Current number of rooms with at least one subscriber.",
		}),
	}
}
