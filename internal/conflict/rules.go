package conflict

import (
	"time"

	"github.com/vitaliisemenov/syncengine/internal/domain"
)

// DefaultBusinessRules returns the two example predicates spec.md §4.3.4
// names: no completing a production deployment on a weekend, and every
// production deployment must carry an "approved" metadata flag. Both only
// examine domain.EntityDeployment updates whose metadata marks the
// environment as "production"; anything else passes through untouched.
func DefaultBusinessRules() []BusinessRule {
	return []BusinessRule{
		NoWeekendProductionDeploymentCompletion,
		ProductionDeploymentRequiresApproval,
	}
}

func isProductionDeployment(update *domain.StatusUpdate) bool {
	if update.EntityType != domain.EntityDeployment {
		return false
	}
	env, _ := update.Metadata["environment"].(string)
	return env == "production"
}

// NoWeekendProductionDeploymentCompletion rejects marking a production
// deployment completed on a Saturday or Sunday.
func NoWeekendProductionDeploymentCompletion(update *domain.StatusUpdate) *domain.Conflict {
	if !isProductionDeployment(update) || update.Status != string(domain.StatusCompleted) {
		return nil
	}

	ts := time.Now()
	if update.Timestamp != 0 {
		ts = time.UnixMilli(update.Timestamp)
	}
	day := ts.Weekday()
	if day != time.Saturday && day != time.Sunday {
		return nil
	}

	return &domain.Conflict{
		Type:         domain.ConflictBusinessRuleViolation,
		Severity:     domain.SeverityHigh,
		SourceSystem: update.Source,
		Description:  "production deployment completion is not permitted on weekends",
		Timestamp:    ts,
		Rule:         "no_weekend_production_deployment_completion",
	}
}

// ProductionDeploymentRequiresApproval rejects any production deployment
// update lacking a truthy "approved" metadata flag.
func ProductionDeploymentRequiresApproval(update *domain.StatusUpdate) *domain.Conflict {
	if !isProductionDeployment(update) {
		return nil
	}
	if approved, _ := update.Metadata["approved"].(bool); approved {
		return nil
	}

	return &domain.Conflict{
		Type:         domain.ConflictBusinessRuleViolation,
		Severity:     domain.SeverityHigh,
		SourceSystem: update.Source,
		Description:  "production deployments require an approved metadata flag",
		Timestamp:    time.Now(),
		Rule:         "production_deployment_requires_approval",
	}
}
