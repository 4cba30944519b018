package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubSampler(memPct, cpuPct float64) ResourceSampler {
	return func(ctx context.Context) (float64, float64, error) {
		return memPct, cpuPct, nil
	}
}

func TestRecordSync_UpdatesAggregates(t *testing.T) {
	mo := New(DefaultConfig(), stubSampler(10, 10), nil, nil, nil)
	mo.RecordSync(true, 100*time.Millisecond)
	mo.RecordSync(false, 200*time.Millisecond)

	snap := mo.Snapshot()
	assert.EqualValues(t, 2, snap.TotalSyncs)
	assert.EqualValues(t, 1, snap.SuccessfulSyncs)
	assert.EqualValues(t, 1, snap.FailedSyncs)
	assert.InDelta(t, 0.15, snap.AvgSyncSeconds, 0.01)
}

func TestRecordConflict_TracksResolvedAndEscalated(t *testing.T) {
	mo := New(DefaultConfig(), stubSampler(10, 10), nil, nil, nil)
	mo.RecordConflict(true, false)
	mo.RecordConflict(false, true)

	snap := mo.Snapshot()
	assert.EqualValues(t, 2, snap.ConflictsDetected)
	assert.EqualValues(t, 1, snap.ConflictsResolved)
	assert.EqualValues(t, 1, snap.ConflictsEscalated)
}

func TestTick_RaisesAndResolvesFailureRateAlert(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Thresholds.FailureRate = 0.1
	mo := New(cfg, stubSampler(10, 10), nil, nil, nil)

	for i := 0; i < 9; i++ {
		mo.RecordSync(true, time.Millisecond)
	}
	mo.RecordSync(false, time.Millisecond)
	mo.RecordSync(false, time.Millisecond)

	mo.tick(context.Background())
	alerts := mo.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "failure_rate", alerts[0].ID)

	for i := 0; i < 100; i++ {
		mo.RecordSync(true, time.Millisecond)
	}
	mo.tick(context.Background())
	assert.Empty(t, mo.Alerts())
}

func TestTick_RaisesResourceCeilingAlert(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Thresholds.MemoryUsagePct = 50
	mo := New(cfg, stubSampler(95, 10), nil, nil, nil)

	mo.tick(context.Background())
	alerts := mo.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "memory_usage", alerts[0].ID)
	assert.Equal(t, SeverityCritical, alerts[0].Severity)
}

func TestTick_QueueDepthUsesInjectedSampler(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Thresholds.QueueSize = 5
	mo := New(cfg, stubSampler(10, 10), func() int { return 42 }, nil, nil)

	mo.tick(context.Background())
	alerts := mo.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "queue_size", alerts[0].ID)
}
