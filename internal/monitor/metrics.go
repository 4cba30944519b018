package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors the monitor exposes alongside its
// own in-process aggregates.
type Metrics struct {
	SyncsTotal        *prometheus.CounterVec
	ConflictsTotal    *prometheus.CounterVec
	AlertsActive      prometheus.Gauge
	QueueDepthSampled prometheus.Gauge
	MemoryUsagePct    prometheus.Gauge
	CPUUsagePct       prometheus.Gauge
}

// NewMetrics registers and returns monitor metrics under namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		SyncsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "syncs_total",
			Help:      "Synchronize outcomes observed by the monitor.",
		}, []string{"outcome"}),
		ConflictsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "conflicts_total",
			Help:      "Conflict outcomes observed by the monitor.",
		}, []string{"outcome"}),
		AlertsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "alerts_active",
			Help:      "Number of currently unresolved alerts.",
		}),
		QueueDepthSampled: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "queue_depth_sampled",
			Help:      "Most recent queue depth sample.",
		}),
		MemoryUsagePct: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "memory_usage_percent",
			Help:      "Most recent host memory usage percent sample.",
		}),
		CPUUsagePct: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "cpu_usage_percent",
			Help:      "Most recent host CPU usage percent sample.",
		}),
	}
}
