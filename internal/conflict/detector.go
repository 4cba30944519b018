// Package conflict implements the conflict detector and resolver (C3):
// four detection checks run in sequence over an incoming StatusUpdate, and
// pluggable resolution strategies that repair or arbitrate between them.
package conflict

import (
	"context"
	"time"

	"github.com/vitaliisemenov/syncengine/internal/domain"
)

// BusinessRule is a pluggable predicate checked against every update; a
// non-nil return is folded into the update's business_rule_violation
// conflicts.
type BusinessRule func(update *domain.StatusUpdate) *domain.Conflict

// transitionGraph enforces the canonical status transition graph from
// spec.md §4.3: keys are the current status, values the statuses an update
// may legally move to.
var transitionGraph = map[domain.CanonicalStatus][]domain.CanonicalStatus{
	domain.StatusPending:    {domain.StatusInProgress, domain.StatusCancelled},
	domain.StatusInProgress: {domain.StatusCompleted, domain.StatusFailed, domain.StatusPending, domain.StatusCancelled},
	domain.StatusCompleted:  {domain.StatusPending},
	domain.StatusFailed:     {domain.StatusPending, domain.StatusInProgress},
	domain.StatusCancelled:  {domain.StatusPending},
}

// Detector runs the four conflict checks and owns the resolution history
// the concurrent-update check reads from.
type Detector struct {
	cfg           Config
	history       *resolutionHistory
	depChecker    domain.DependencyChecker
	businessRules []BusinessRule
	metrics       *Metrics
}

// NewDetector builds a Detector. depChecker may be domain.NoDependencyChecker{}.
func NewDetector(cfg Config, depChecker domain.DependencyChecker, rules []BusinessRule, m *Metrics) *Detector {
	if depChecker == nil {
		depChecker = domain.NoDependencyChecker{}
	}
	return &Detector{
		cfg:           cfg,
		history:       newResolutionHistory(cfg.MaxConflictHistory),
		depChecker:    depChecker,
		businessRules: rules,
		metrics:       m,
	}
}

// Detect runs the four checks in sequence against update, returning every
// conflict found. Detection itself never mutates update or the history;
// RecordOutcome must be called separately once the caller settles on a
// final status for this entity.
func (d *Detector) Detect(ctx context.Context, update *domain.StatusUpdate) []domain.Conflict {
	var conflicts []domain.Conflict

	if c := d.checkConcurrentUpdate(update); c != nil {
		conflicts = append(conflicts, *c)
	}
	if c := d.checkInvalidTransition(update); c != nil {
		conflicts = append(conflicts, *c)
	}
	if c := d.checkDependencyConflict(ctx, update); c != nil {
		conflicts = append(conflicts, *c)
	}
	conflicts = append(conflicts, d.checkBusinessRules(update)...)

	if d.metrics != nil && len(conflicts) > 0 {
		for _, c := range conflicts {
			d.metrics.DetectedTotal.WithLabelValues(string(c.Type)).Inc()
		}
	}
	return conflicts
}

// checkConcurrentUpdate implements spec.md §4.3.1: a different source
// touched the same entity within conflictWindow.
func (d *Detector) checkConcurrentUpdate(update *domain.StatusUpdate) *domain.Conflict {
	key := update.Key()
	now := time.UnixMilli(update.Timestamp)
	if update.Timestamp == 0 {
		now = time.Now()
	}

	entry, found := d.history.mostRecentOther(key, update.Source, d.cfg.ConflictWindow, now)
	if !found {
		return nil
	}
	return &domain.Conflict{
		Type:             domain.ConflictConcurrentUpdate,
		Severity:         domain.SeverityMedium,
		SourceSystem:     update.Source,
		Description:      "entity updated by a different source within the conflict window",
		Timestamp:        now,
		CollidingSystems: []domain.System{entry.system},
		CollidingStatus:  entry.status,
	}
}

// checkInvalidTransition implements spec.md §4.3.2. When update carries no
// PreviousStatus the check is skipped (Open Question #3, DESIGN.md).
func (d *Detector) checkInvalidTransition(update *domain.StatusUpdate) *domain.Conflict {
	if update.PreviousStatus == "" {
		return nil
	}
	prev := domain.CanonicalStatus(update.PreviousStatus)
	next := domain.CanonicalStatus(update.Status)

	allowed, ok := transitionGraph[prev]
	if !ok {
		return nil
	}
	for _, a := range allowed {
		if a == next {
			return nil
		}
	}

	validTokens := make([]string, 0, len(allowed))
	for _, a := range allowed {
		validTokens = append(validTokens, string(a))
	}
	return &domain.Conflict{
		Type:             domain.ConflictInvalidStateTransition,
		Severity:         domain.SeverityHigh,
		SourceSystem:     update.Source,
		Description:      "status transition not permitted by the canonical transition graph",
		Timestamp:        time.Now(),
		PreviousStatus:   update.PreviousStatus,
		NewStatus:        update.Status,
		ValidTransitions: validTokens,
	}
}

// checkDependencyConflict implements spec.md §4.3.3: on completion of a
// task-like entity, any incomplete blocking dependency is a conflict.
func (d *Detector) checkDependencyConflict(ctx context.Context, update *domain.StatusUpdate) *domain.Conflict {
	if update.Status != string(domain.StatusCompleted) {
		return nil
	}
	blockers, err := d.depChecker.IncompleteDependencies(ctx, update.EntityType, update.EntityID)
	if err != nil || len(blockers) == 0 {
		return nil
	}
	return &domain.Conflict{
		Type:             domain.ConflictDependencyConflict,
		Severity:         domain.SeverityHigh,
		SourceSystem:     update.Source,
		Description:      "entity marked completed while blocking dependencies remain incomplete",
		Timestamp:        time.Now(),
		BlockingEntities: blockers,
	}
}

// checkBusinessRules runs every registered BusinessRule against update.
func (d *Detector) checkBusinessRules(update *domain.StatusUpdate) []domain.Conflict {
	var out []domain.Conflict
	for _, rule := range d.businessRules {
		if c := rule(update); c != nil {
			out = append(out, *c)
		}
	}
	return out
}

// RecordOutcome logs the final status an entity settled on so later
// concurrent-update checks can see it. The orchestrator calls this once per
// synchronize() after conflicts (if any) are resolved.
func (d *Detector) RecordOutcome(entityType domain.EntityType, entityID string, system domain.System, status string, ts time.Time) {
	key := string(entityType) + ":" + entityID
	d.history.record(key, system, status, ts)
}
