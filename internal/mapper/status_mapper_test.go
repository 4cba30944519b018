package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/syncengine/internal/domain"
)

// testMetrics is shared by every test mapper: promauto registers on the
// global registry, so a second NewMetrics with the same namespace panics.
var testMetrics = NewMetrics("syncengine_test")

func newTestMapper(mode Mode) *Mapper {
	return New(mode, 128, testMetrics)
}

func TestMapStatus_Default(t *testing.T) {
	m := newTestMapper(ModeStrict)

	native, err := m.MapStatus(domain.SystemTracker, domain.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, "closed", native)

	canonical, err := m.MapStatusReverse(domain.SystemTracker, "open")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, canonical)
}

func TestMapStatus_StrictUnmapped(t *testing.T) {
	m := newTestMapper(ModeStrict)

	_, err := m.MapStatus(domain.SystemTracker, domain.CanonicalStatus("nonexistent"))
	require.Error(t, err)

	var derr *domain.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.KindMapping, derr.Kind)
}

func TestMapStatus_LenientFallback(t *testing.T) {
	m := newTestMapper(ModeLenient)

	native, err := m.MapStatus(domain.SystemTracker, domain.CanonicalStatus("nonexistent"))
	require.NoError(t, err)
	assert.Equal(t, "nonexistent", native)
}

func TestAddCustomMapping_OverridesDefault(t *testing.T) {
	m := newTestMapper(ModeStrict)

	require.NoError(t, m.AddCustomMapping(domain.SystemTracker, domain.StatusCompleted, "resolved"))

	native, err := m.MapStatus(domain.SystemTracker, domain.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, "resolved", native)

	canonical, err := m.MapStatusReverse(domain.SystemTracker, "resolved")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, canonical)

	// The default native value no longer reverse-maps once overridden.
	_, err = m.MapStatusReverse(domain.SystemTracker, "closed")
	require.Error(t, err)
}

func TestRemoveCustomMapping_RevertsToDefault(t *testing.T) {
	m := newTestMapper(ModeStrict)

	require.NoError(t, m.AddCustomMapping(domain.SystemTracker, domain.StatusCompleted, "resolved"))
	require.NoError(t, m.RemoveCustomMapping(domain.SystemTracker, domain.StatusCompleted))

	native, err := m.MapStatus(domain.SystemTracker, domain.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, "closed", native)
}

func TestAddCustomMapping_RejectsEmptyNative(t *testing.T) {
	m := newTestMapper(ModeStrict)
	err := m.AddCustomMapping(domain.SystemTracker, domain.StatusCompleted, "   ")
	require.Error(t, err)
}

func TestMapToAllSystems_SkipsSourceAndUnsupportedEntities(t *testing.T) {
	m := newTestMapper(ModeStrict)
	update := &domain.StatusUpdate{
		EntityID:   "42",
		EntityType: domain.EntityPR,
		Status:     string(domain.StatusCompleted),
		Source:     domain.SystemVCS,
	}

	mapped, errs := m.MapToAllSystems(update)
	assert.Empty(t, errs)

	_, hasSource := mapped[domain.SystemVCS]
	assert.False(t, hasSource, "source system must not appear in the fan-out")

	_, hasTracker := mapped[domain.SystemTracker]
	assert.False(t, hasTracker, "pr entity type has no tracker mapping")

	relational, ok := mapped[domain.SystemRelational]
	require.True(t, ok)
	assert.Equal(t, "completed", relational.Status)

	mappingInfo, ok := relational.Metadata["mappingInfo"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "relational", mappingInfo["targetSystem"])
}

func TestMapToAllSystems_TrackerMetadataReshaping(t *testing.T) {
	m := newTestMapper(ModeStrict)
	update := &domain.StatusUpdate{
		EntityID:   "7",
		EntityType: domain.EntityTask,
		Status:     string(domain.StatusInProgress),
		Source:     domain.SystemRelational,
		Metadata: map[string]interface{}{
			"labels": []string{"bug", "urgent"},
		},
	}

	mapped, errs := m.MapToAllSystems(update)
	require.Empty(t, errs)

	tracker, ok := mapped[domain.SystemTracker]
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"label:bug", "label:urgent"}, tracker.Metadata["labelIds"])
	_, hasOldLabels := tracker.Metadata["labels"]
	assert.False(t, hasOldLabels)
}

func TestMapToAllSystems_VCSAssigneeReshaping(t *testing.T) {
	m := newTestMapper(ModeStrict)
	update := &domain.StatusUpdate{
		EntityID:   "7",
		EntityType: domain.EntityPR,
		Status:     string(domain.StatusInProgress),
		Source:     domain.SystemRelational,
		Metadata: map[string]interface{}{
			"assignee": "alice",
		},
	}

	mapped, errs := m.MapToAllSystems(update)
	require.Empty(t, errs)

	vcs, ok := mapped[domain.SystemVCS]
	require.True(t, ok)
	assert.Equal(t, []string{"alice"}, vcs.Metadata["assignees"])
	_, hasOldAssignee := vcs.Metadata["assignee"]
	assert.False(t, hasOldAssignee)
}

func TestMapToAllSystems_RelationalUpdatedAtStamp(t *testing.T) {
	m := newTestMapper(ModeStrict)
	update := &domain.StatusUpdate{
		EntityID:   "7",
		EntityType: domain.EntityTask,
		Status:     string(domain.StatusInProgress),
		Source:     domain.SystemTracker,
		Metadata:   map[string]interface{}{},
	}

	mapped, errs := m.MapToAllSystems(update)
	require.Empty(t, errs)

	relational, ok := mapped[domain.SystemRelational]
	require.True(t, ok)
	assert.NotEmpty(t, relational.Metadata["updated_at"])
}

func TestMapToAllSystems_AgentJobMetadataEnvelope(t *testing.T) {
	m := newTestMapper(ModeStrict)
	update := &domain.StatusUpdate{
		EntityID:   "9",
		EntityType: domain.EntityTask,
		Status:     string(domain.StatusCompleted),
		Source:     domain.SystemRelational,
		Metadata: map[string]interface{}{
			"buildId": "b-1",
		},
	}

	mapped, errs := m.MapToAllSystems(update)
	require.Empty(t, errs)

	agent, ok := mapped[domain.SystemAgent]
	require.True(t, ok)
	job, ok := agent.Metadata["jobMetadata"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "b-1", job["buildId"])
}
