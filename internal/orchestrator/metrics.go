package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the orchestrator.
type Metrics struct {
	SyncsTotal       *prometheus.CounterVec
	SyncDurationSecs prometheus.Histogram
	DispatchTotal    *prometheus.CounterVec
	FeedbackToQueue  prometheus.Counter
}

// NewMetrics registers and returns orchestrator metrics under namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		SyncsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "syncs_total",
			Help:      "Total synchronize() calls by outcome.",
		}, []string{"outcome"}),
		SyncDurationSecs: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "sync_duration_seconds",
			Help:      "Duration of synchronize() calls.",
			Buckets:   prometheus.DefBuckets,
		}),
		DispatchTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "dispatch_total",
			Help:      "Per-target dispatch attempts by system and outcome.",
		}, []string{"system", "outcome"}),
		FeedbackToQueue: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "feedback_to_queue_total",
			Help:      "Failed syncs fed back to the queue for retry.",
		}),
	}
}
