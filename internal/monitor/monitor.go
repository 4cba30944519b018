// Package monitor implements the sync monitor (C7): running aggregates over
// synchronize() outcomes and conflict resolutions, periodic threshold
// checks against those aggregates plus host resource usage, and automatic
// Alert raising/resolution.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vitaliisemenov/syncengine/pkg/metrics"
)

// QueueDepthFunc reports the current total queue depth; the monitor polls
// it once per tick instead of owning the queue directly.
type QueueDepthFunc func() int

// Monitor implements orchestrator.Observer and owns the running aggregates
// and alert state described in spec.md §4.7. It is safe for concurrent use.
type Monitor struct {
	cfg     Config
	logger  *slog.Logger
	metrics *Metrics
	sampler ResourceSampler
	depth   QueueDepthFunc

	totalSyncs         atomic.Int64
	successfulSyncs    atomic.Int64
	failedSyncs        atomic.Int64
	conflictsDetected  atomic.Int64
	conflictsResolved  atomic.Int64
	conflictsEscalated atomic.Int64

	duration metrics.RunningMean

	mu     sync.RWMutex
	alerts map[string]*Alert

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Monitor. sampler and depth may be nil; sampler then defaults
// to DefaultResourceSampler and depth always reports 0.
func New(cfg Config, sampler ResourceSampler, depth QueueDepthFunc, logger *slog.Logger, m *Metrics) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if sampler == nil {
		sampler = DefaultResourceSampler
	}
	if depth == nil {
		depth = func() int { return 0 }
	}
	return &Monitor{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		sampler: sampler,
		depth:   depth,
		alerts:  make(map[string]*Alert),
	}
}

// RecordSync implements orchestrator.Observer.
func (mo *Monitor) RecordSync(success bool, duration time.Duration) {
	mo.totalSyncs.Add(1)
	outcome := "success"
	if success {
		mo.successfulSyncs.Add(1)
	} else {
		mo.failedSyncs.Add(1)
		outcome = "failure"
	}
	mo.duration.Observe(duration.Seconds())
	if mo.metrics != nil {
		mo.metrics.SyncsTotal.WithLabelValues(outcome).Inc()
	}
}

// RecordQueueDepth implements orchestrator.Observer. The monitor samples
// depth itself on each tick via QueueDepthFunc; this hook additionally
// tracks any out-of-band report a caller wants reflected immediately.
func (mo *Monitor) RecordQueueDepth(depth int) {
	if mo.metrics != nil {
		mo.metrics.QueueDepthSampled.Set(float64(depth))
	}
}

// RecordConflict implements orchestrator.Observer.
func (mo *Monitor) RecordConflict(resolved, escalated bool) {
	mo.conflictsDetected.Add(1)
	outcome := "unresolved"
	if escalated {
		mo.conflictsEscalated.Add(1)
		outcome = "escalated"
	} else if resolved {
		mo.conflictsResolved.Add(1)
		outcome = "resolved"
	}
	if mo.metrics != nil {
		mo.metrics.ConflictsTotal.WithLabelValues(outcome).Inc()
	}
}

// Snapshot is a point-in-time read of the monitor's running aggregates.
type Snapshot struct {
	TotalSyncs         int64
	SuccessfulSyncs    int64
	FailedSyncs        int64
	AvgSyncSeconds     float64
	ConflictsDetected  int64
	ConflictsResolved  int64
	ConflictsEscalated int64
	QueueDepth         int
}

// Snapshot returns the monitor's current aggregates.
func (mo *Monitor) Snapshot() Snapshot {
	return Snapshot{
		TotalSyncs:         mo.totalSyncs.Load(),
		SuccessfulSyncs:    mo.successfulSyncs.Load(),
		FailedSyncs:        mo.failedSyncs.Load(),
		AvgSyncSeconds:     mo.duration.Mean(),
		ConflictsDetected:  mo.conflictsDetected.Load(),
		ConflictsResolved:  mo.conflictsResolved.Load(),
		ConflictsEscalated: mo.conflictsEscalated.Load(),
		QueueDepth:         mo.depth(),
	}
}

// Alerts returns every currently unresolved alert.
func (mo *Monitor) Alerts() []Alert {
	mo.mu.RLock()
	defer mo.mu.RUnlock()
	out := make([]Alert, 0, len(mo.alerts))
	for _, a := range mo.alerts {
		if !a.Resolved {
			out = append(out, *a)
		}
	}
	return out
}

// Start launches the periodic threshold-check loop.
func (mo *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	mo.cancel = cancel
	mo.wg.Add(1)
	go mo.loop(ctx)
}

// Stop halts the threshold-check loop and waits for it to exit.
func (mo *Monitor) Stop() {
	if mo.cancel != nil {
		mo.cancel()
	}
	mo.wg.Wait()
}

func (mo *Monitor) loop(ctx context.Context) {
	defer mo.wg.Done()
	ticker := time.NewTicker(mo.cfg.SampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mo.tick(ctx)
		}
	}
}

// tick samples the current aggregates and host resource usage and raises or
// resolves alerts per Config.Thresholds.
func (mo *Monitor) tick(ctx context.Context) {
	snap := mo.Snapshot()
	if mo.metrics != nil {
		mo.metrics.QueueDepthSampled.Set(float64(snap.QueueDepth))
	}

	mo.evaluate("failure_rate", SeverityWarning, failureRate(snap) > mo.cfg.Thresholds.FailureRate,
		fmt.Sprintf("sync failure rate %.2f exceeds threshold %.2f", failureRate(snap), mo.cfg.Thresholds.FailureRate))

	mo.evaluate("avg_sync_time", SeverityWarning, snap.AvgSyncSeconds > mo.cfg.Thresholds.AvgSyncSeconds,
		fmt.Sprintf("average sync duration %.3fs exceeds threshold %.3fs", snap.AvgSyncSeconds, mo.cfg.Thresholds.AvgSyncSeconds))

	mo.evaluate("queue_size", SeverityWarning, snap.QueueDepth > mo.cfg.Thresholds.QueueSize,
		fmt.Sprintf("queue depth %d exceeds threshold %d", snap.QueueDepth, mo.cfg.Thresholds.QueueSize))

	mo.evaluate("conflict_rate", SeverityWarning, conflictRate(snap) > mo.cfg.Thresholds.ConflictRate,
		fmt.Sprintf("conflict rate %.2f exceeds threshold %.2f", conflictRate(snap), mo.cfg.Thresholds.ConflictRate))

	memPct, cpuPct, err := mo.sampler(ctx)
	if err != nil {
		mo.logger.Warn("resource sampling failed", "error", err)
	} else {
		if mo.metrics != nil {
			mo.metrics.MemoryUsagePct.Set(memPct)
			mo.metrics.CPUUsagePct.Set(cpuPct)
		}
		mo.evaluate("memory_usage", SeverityCritical, memPct > mo.cfg.Thresholds.MemoryUsagePct,
			fmt.Sprintf("memory usage %.1f%% exceeds ceiling %.1f%%", memPct, mo.cfg.Thresholds.MemoryUsagePct))
		mo.evaluate("cpu_usage", SeverityCritical, cpuPct > mo.cfg.Thresholds.CPUUsagePct,
			fmt.Sprintf("cpu usage %.1f%% exceeds ceiling %.1f%%", cpuPct, mo.cfg.Thresholds.CPUUsagePct))
	}

	if mo.metrics != nil {
		mo.metrics.AlertsActive.Set(float64(len(mo.Alerts())))
	}
}

// evaluate raises or resolves the alert keyed by id depending on breached.
func (mo *Monitor) evaluate(id string, severity Severity, breached bool, message string) {
	mo.mu.Lock()
	defer mo.mu.Unlock()

	existing, ok := mo.alerts[id]
	if breached {
		if ok && !existing.Resolved {
			existing.Message = message
			return
		}
		mo.alerts[id] = &Alert{ID: id, Severity: severity, Message: message, RaisedAt: time.Now()}
		mo.logger.Warn("alert raised", "id", id, "message", message)
		return
	}

	if ok && !existing.Resolved {
		existing.Resolved = true
		existing.ResolvedAt = time.Now()
		mo.logger.Info("alert resolved", "id", id)
	}
}

func failureRate(snap Snapshot) float64 {
	if snap.TotalSyncs == 0 {
		return 0
	}
	return float64(snap.FailedSyncs) / float64(snap.TotalSyncs)
}

func conflictRate(snap Snapshot) float64 {
	if snap.TotalSyncs == 0 {
		return 0
	}
	return float64(snap.ConflictsDetected) / float64(snap.TotalSyncs)
}
