package monitor

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// ResourceSampler reports the host's current memory and CPU usage as
// percentages. DefaultResourceSampler is backed by gopsutil; tests inject a
// stub instead of sampling the real host.
type ResourceSampler func(ctx context.Context) (memPct, cpuPct float64, err error)

// DefaultResourceSampler samples host-wide memory via mem.VirtualMemory and
// a short CPU utilization window via cpu.PercentWithContext, matching
// spec.md §4.7's memoryUsage/cpuUsage alert thresholds.
func DefaultResourceSampler(ctx context.Context) (float64, float64, error) {
	vmem, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, err
	}

	percents, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false)
	if err != nil {
		return vmem.UsedPercent, 0, err
	}
	cpuPct := 0.0
	if len(percents) > 0 {
		cpuPct = percents[0]
	}
	return vmem.UsedPercent, cpuPct, nil
}
