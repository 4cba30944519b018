// Package metrics holds small instrumentation helpers shared across
// components; most Prometheus metric sets live next to the component they
// instrument, per the pattern in each package's own metrics.go.
package metrics

import "sync"

// RunningMean computes a numerically stable mean and variance incrementally
// using Welford's algorithm, so components can track an average (sync
// duration, queue latency) without retaining every sample.
type RunningMean struct {
	mu    sync.Mutex
	count int64
	mean  float64
	m2    float64
}

// Observe folds one sample into the running statistics.
func (r *RunningMean) Observe(value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	delta := value - r.mean
	r.mean += delta / float64(r.count)
	delta2 := value - r.mean
	r.m2 += delta * delta2
}

// Mean returns the current running mean, or 0 if no samples were observed.
func (r *RunningMean) Mean() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mean
}

// Variance returns the current population variance, or 0 with fewer than
// two samples.
func (r *RunningMean) Variance() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count < 2 {
		return 0
	}
	return r.m2 / float64(r.count)
}

// Count returns the number of samples observed so far.
func (r *RunningMean) Count() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
