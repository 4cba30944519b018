package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/syncengine/internal/adapter"
	"github.com/vitaliisemenov/syncengine/internal/conflict"
	"github.com/vitaliisemenov/syncengine/internal/domain"
	"github.com/vitaliisemenov/syncengine/internal/mapper"
	"github.com/vitaliisemenov/syncengine/internal/queue"
)

type testHarness struct {
	orch      *Orchestrator
	relay     *adapter.InMemory
	tracker   *adapter.InMemory
	vcs       *adapter.InMemory
	agent     *adapter.InMemory
	detector  *conflict.Detector
	resolver  *conflict.Resolver
}

func newHarness(t *testing.T, conflictCfg conflict.Config) *testHarness {
	t.Helper()
	m := mapper.New(mapper.ModeLenient, 128, mapper.NewMetrics("syncengine_test_mapper_"+t.Name()))
	q := queue.New(queue.DefaultConfig(), nil, queue.NewMetrics("syncengine_test_queue_"+t.Name()))
	detector := conflict.NewDetector(conflictCfg, domain.NoDependencyChecker{}, nil, conflict.NewMetrics("syncengine_test_detect_"+t.Name()))
	resolver := conflict.NewResolver(conflictCfg, conflict.NewMetrics("syncengine_test_resolve_"+t.Name()))

	relay := adapter.NewInMemory(domain.SystemRelational)
	tracker := adapter.NewInMemory(domain.SystemTracker)
	vcs := adapter.NewInMemory(domain.SystemVCS)
	agent := adapter.NewInMemory(domain.SystemAgent)

	adapters := map[domain.System]domain.Adapter{
		domain.SystemRelational: relay,
		domain.SystemTracker:    tracker,
		domain.SystemVCS:        vcs,
		domain.SystemAgent:      agent,
	}

	cfg := DefaultConfig()
	cfg.ConflictStrategy = conflictCfg.DefaultStrategy
	orch := New(cfg, m, q, detector, resolver, nil, adapters, nil, nil, NewMetrics("syncengine_test_orch_"+t.Name()))

	return &testHarness{orch: orch, relay: relay, tracker: tracker, vcs: vcs, agent: agent, detector: detector, resolver: resolver}
}

func TestSynchronize_HappyPath(t *testing.T) {
	h := newHarness(t, conflict.DefaultConfig())
	update := &domain.StatusUpdate{
		EntityID:   "T1",
		EntityType: domain.EntityTask,
		Status:     "completed",
		Source:     domain.SystemTracker,
		Priority:   "normal",
	}

	result, err := h.orch.Synchronize(context.Background(), update)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.Results[domain.SystemRelational].Success)
	assert.True(t, result.Results[domain.SystemVCS].Success)
	assert.True(t, result.Results[domain.SystemAgent].Success)
	_, dispatchedToTracker := result.Results[domain.SystemTracker]
	assert.False(t, dispatchedToTracker, "source system is never dispatched to itself")

	assert.Equal(t, "completed", h.relay.Applied("task:T1").Status)
	assert.Equal(t, "merged", h.vcs.Applied("task:T1").Status)
	assert.Equal(t, "succeeded", h.agent.Applied("task:T1").Status)
}

func TestSynchronize_ConcurrentUpdateConflict_ScenarioFromSpec(t *testing.T) {
	cfg := conflict.DefaultConfig()
	h := newHarness(t, cfg)

	first := &domain.StatusUpdate{
		EntityID:   "T1",
		EntityType: domain.EntityTask,
		Status:     "completed",
		Source:     domain.SystemTracker,
		Timestamp:  domain.NowMillis(),
	}
	_, err := h.orch.Synchronize(context.Background(), first)
	require.NoError(t, err)

	second := &domain.StatusUpdate{
		EntityID:   "T1",
		EntityType: domain.EntityTask,
		Status:     "failed",
		Source:     domain.SystemVCS,
		Timestamp:  first.Timestamp + 1000,
	}
	result, err := h.orch.Synchronize(context.Background(), second)
	require.NoError(t, err)
	assert.True(t, result.Success)

	// tracker (priority 1) outranks vcs (priority 2): the resolved status
	// stays "completed", unchanged from the first sync.
	assert.Equal(t, "completed", h.relay.Applied("task:T1").Status)
}

func TestSynchronize_InvalidTransition_MergeRollsBack(t *testing.T) {
	cfg := conflict.DefaultConfig()
	cfg.DefaultStrategy = conflict.StrategyMerge
	h := newHarness(t, cfg)

	update := &domain.StatusUpdate{
		EntityID:       "T9",
		EntityType:     domain.EntityTask,
		Status:         "completed",
		PreviousStatus: "pending",
		Source:         domain.SystemTracker,
	}
	result, err := h.orch.Synchronize(context.Background(), update)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "pending", h.relay.Applied("task:T9").Status)
}

func TestSynchronize_PartialDispatchFailure(t *testing.T) {
	h := newHarness(t, conflict.DefaultConfig())
	h.vcs.FailNext(domain.NewDispatchError(errors.New("timeout"), true))

	update := &domain.StatusUpdate{
		EntityID:   "T2",
		EntityType: domain.EntityTask,
		Status:     "completed",
		Source:     domain.SystemTracker,
	}
	result, err := h.orch.Synchronize(context.Background(), update)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.False(t, result.Results[domain.SystemVCS].Success)
	assert.True(t, result.Results[domain.SystemRelational].Success)
	assert.True(t, result.Results[domain.SystemAgent].Success)

	queueErr := h.orch.aggregateDispatchError(result)
	var derr *domain.Error
	require.True(t, errors.As(queueErr, &derr))
	assert.True(t, derr.Retryable())
}

func TestAccept_RejectsAfterShutdown(t *testing.T) {
	h := newHarness(t, conflict.DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.orch.Start(ctx)

	require.NoError(t, h.orch.Shutdown(context.Background()))

	err := h.orch.Accept(&domain.StatusUpdate{
		EntityID:   "T3",
		EntityType: domain.EntityTask,
		Status:     "completed",
		Source:     domain.SystemTracker,
	})
	require.Error(t, err)
	var derr *domain.Error
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, domain.KindShutdown, derr.Kind)
}

func TestAccept_EnqueuesAndDrainsThroughSynchronize(t *testing.T) {
	h := newHarness(t, conflict.DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.orch.Start(ctx)
	defer h.orch.Shutdown(context.Background())

	err := h.orch.Accept(&domain.StatusUpdate{
		EntityID:   "T4",
		EntityType: domain.EntityTask,
		Status:     "completed",
		Source:     domain.SystemTracker,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return h.relay.Applied("task:T4") != nil
	}, 2*time.Second, 20*time.Millisecond)
}
