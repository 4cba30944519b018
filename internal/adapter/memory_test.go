package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/syncengine/internal/domain"
)

func TestInMemory_ApplyRecordsUpdate(t *testing.T) {
	a := NewInMemory(domain.SystemTracker)
	update := &domain.StatusUpdate{EntityID: "T1", EntityType: domain.EntityTask, Status: "completed", Source: domain.SystemRelational}

	result, err := a.Apply(context.Background(), update)
	require.NoError(t, err)
	assert.Equal(t, domain.SystemTracker, result.System)
	assert.Equal(t, "completed", result.Status)

	applied := a.Applied(update.Key())
	require.NotNil(t, applied)
	assert.Equal(t, "completed", applied.Status)
}

func TestInMemory_FailNext(t *testing.T) {
	a := NewInMemory(domain.SystemVCS)
	a.FailNext(errors.New("unavailable"))

	_, err := a.Apply(context.Background(), &domain.StatusUpdate{EntityID: "T2", EntityType: domain.EntityTask, Status: "completed"})
	require.Error(t, err)

	health, err := a.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.HealthUnhealthy, health.Status)
}

func TestInMemory_HealthyByDefault(t *testing.T) {
	a := NewInMemory(domain.SystemAgent)
	health, err := a.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.HealthHealthy, health.Status)
}
