package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the event queue's Prometheus instrumentation.
type Metrics struct {
	EnqueuedTotal     *prometheus.CounterVec
	DedupedTotal      *prometheus.CounterVec
	ProcessedTotal    *prometheus.CounterVec
	RetriedTotal      *prometheus.CounterVec
	DeadLetteredTotal *prometheus.CounterVec
	QueueDepth        *prometheus.GaugeVec
	ProcessingSeconds *prometheus.HistogramVec
}

// NewMetrics registers the queue's metrics under the given namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		EnqueuedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "queue",
				Name:      "enqueued_total",
				Help:      "Total events accepted onto the queue, by priority.",
			},
			[]string{"priority"},
		),
		DedupedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "queue",
				Name:      "deduped_total",
				Help:      "Total events dropped as duplicates within the dedup window.",
			},
			[]string{"priority"},
		),
		ProcessedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "queue",
				Name:      "processed_total",
				Help:      "Total events processed, by priority and outcome.",
			},
			[]string{"priority", "outcome"},
		),
		RetriedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "queue",
				Name:      "retried_total",
				Help:      "Total retry attempts scheduled, by priority.",
			},
			[]string{"priority"},
		),
		DeadLetteredTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "queue",
				Name:      "dead_lettered_total",
				Help:      "Total events moved to the dead-letter store after exhausting retries.",
			},
			[]string{"priority"},
		),
		QueueDepth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "queue",
				Name:      "depth",
				Help:      "Current number of events waiting in each priority queue.",
			},
			[]string{"priority"},
		),
		ProcessingSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "queue",
				Name:      "processing_seconds",
				Help:      "Time spent handling one event, by event type.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"event_type"},
		),
	}
}
