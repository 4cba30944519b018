package mapper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the mapper's Prometheus instrumentation. One instance is
// shared by every Mapper method call.
type Metrics struct {
	MappingsTotal    *prometheus.CounterVec
	UnmappedTotal    *prometheus.CounterVec
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter
}

// NewMetrics registers the mapper's metrics under the given namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		MappingsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mapper",
				Name:      "mappings_total",
				Help:      "Total number of status mappings performed, by target system and direction.",
			},
			[]string{"system", "direction"},
		),
		UnmappedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mapper",
				Name:      "unmapped_total",
				Help:      "Total number of mapping lookups with no matching entry, by target system.",
			},
			[]string{"system"},
		),
		CacheHitsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mapper",
			Name:      "cache_hits_total",
			Help:      "Total lookup cache hits.",
		}),
		CacheMissesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mapper",
			Name:      "cache_misses_total",
			Help:      "Total lookup cache misses.",
		}),
	}
}
