package monitor

import "time"

// Thresholds are the breach points checked on every tick (spec.md §4.7).
// A metric above its threshold raises an Alert; falling back within bounds
// resolves it automatically.
type Thresholds struct {
	FailureRate    float64 // fraction, 0..1
	AvgSyncSeconds float64
	QueueSize      int
	ConflictRate   float64 // fraction, 0..1
	MemoryUsagePct float64
	CPUUsagePct    float64
}

// Config configures a Monitor.
type Config struct {
	SampleInterval time.Duration
	Thresholds     Thresholds
}

// DefaultConfig returns conservative defaults for a Monitor.
func DefaultConfig() Config {
	return Config{
		SampleInterval: 10 * time.Second,
		Thresholds: Thresholds{
			FailureRate:    0.1,
			AvgSyncSeconds: 2.0,
			QueueSize:      5000,
			ConflictRate:   0.2,
			MemoryUsagePct: 85,
			CPUUsagePct:    85,
		},
	}
}
