package conflict

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the conflict detector/resolver's Prometheus instrumentation.
type Metrics struct {
	DetectedTotal          *prometheus.CounterVec
	ResolvedTotal          *prometheus.CounterVec
	ResolutionFailedTotal  *prometheus.CounterVec
	EscalatedTotal         prometheus.Counter
}

// NewMetrics registers the conflict package's metrics under namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		DetectedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "conflict",
				Name:      "detected_total",
				Help:      "Total conflicts detected, by conflict type.",
			},
			[]string{"type"},
		),
		ResolvedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "conflict",
				Name:      "resolved_total",
				Help:      "Total conflict sets successfully resolved, by strategy.",
			},
			[]string{"strategy"},
		),
		ResolutionFailedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "conflict",
				Name:      "resolution_failed_total",
				Help:      "Total resolution attempts that failed validation, by strategy.",
			},
			[]string{"strategy"},
		),
		EscalatedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conflict",
			Name:      "escalated_total",
			Help:      "Total conflict sets escalated after exceeding the escalation threshold.",
		}),
	}
}
