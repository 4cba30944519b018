package conflict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/syncengine/internal/domain"
)

func TestNoWeekendProductionDeploymentCompletion_BlocksOnSaturday(t *testing.T) {
	saturday := time.Date(2026, time.February, 14, 12, 0, 0, 0, time.UTC)
	require.Equal(t, time.Saturday, saturday.Weekday())

	update := &domain.StatusUpdate{
		EntityID:   "D1",
		EntityType: domain.EntityDeployment,
		Status:     string(domain.StatusCompleted),
		Source:     domain.SystemAgent,
		Timestamp:  saturday.UnixMilli(),
		Metadata:   map[string]interface{}{"environment": "production"},
	}

	c := NoWeekendProductionDeploymentCompletion(update)
	require.NotNil(t, c)
	assert.Equal(t, domain.ConflictBusinessRuleViolation, c.Type)
	assert.Equal(t, "no_weekend_production_deployment_completion", c.Rule)
}

func TestNoWeekendProductionDeploymentCompletion_AllowsOnWeekday(t *testing.T) {
	monday := time.Date(2026, time.February, 16, 12, 0, 0, 0, time.UTC)
	require.Equal(t, time.Monday, monday.Weekday())

	update := &domain.StatusUpdate{
		EntityID:   "D1",
		EntityType: domain.EntityDeployment,
		Status:     string(domain.StatusCompleted),
		Source:     domain.SystemAgent,
		Timestamp:  monday.UnixMilli(),
		Metadata:   map[string]interface{}{"environment": "production"},
	}

	assert.Nil(t, NoWeekendProductionDeploymentCompletion(update))
}

func TestNoWeekendProductionDeploymentCompletion_IgnoresNonProduction(t *testing.T) {
	saturday := time.Date(2026, time.February, 14, 12, 0, 0, 0, time.UTC)

	update := &domain.StatusUpdate{
		EntityID:   "D1",
		EntityType: domain.EntityDeployment,
		Status:     string(domain.StatusCompleted),
		Source:     domain.SystemAgent,
		Timestamp:  saturday.UnixMilli(),
		Metadata:   map[string]interface{}{"environment": "staging"},
	}

	assert.Nil(t, NoWeekendProductionDeploymentCompletion(update))
}

func TestProductionDeploymentRequiresApproval_BlocksUnapproved(t *testing.T) {
	update := &domain.StatusUpdate{
		EntityID:   "D2",
		EntityType: domain.EntityDeployment,
		Status:     string(domain.StatusInProgress),
		Source:     domain.SystemAgent,
		Metadata:   map[string]interface{}{"environment": "production"},
	}

	c := ProductionDeploymentRequiresApproval(update)
	require.NotNil(t, c)
	assert.Equal(t, "production_deployment_requires_approval", c.Rule)
}

func TestProductionDeploymentRequiresApproval_AllowsApproved(t *testing.T) {
	update := &domain.StatusUpdate{
		EntityID:   "D2",
		EntityType: domain.EntityDeployment,
		Status:     string(domain.StatusInProgress),
		Source:     domain.SystemAgent,
		Metadata:   map[string]interface{}{"environment": "production", "approved": true},
	}

	assert.Nil(t, ProductionDeploymentRequiresApproval(update))
}

func TestProductionDeploymentRequiresApproval_IgnoresNonDeployment(t *testing.T) {
	update := &domain.StatusUpdate{
		EntityID:   "T1",
		EntityType: domain.EntityTask,
		Status:     string(domain.StatusInProgress),
		Source:     domain.SystemAgent,
		Metadata:   map[string]interface{}{"environment": "production"},
	}

	assert.Nil(t, ProductionDeploymentRequiresApproval(update))
}
