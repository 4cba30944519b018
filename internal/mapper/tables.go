// Package mapper implements the status/entity/priority mapping vocabulary
// between the canonical domain model and each external system's native
// vocabulary (C1 in the synchronization core).
package mapper

import (
	"sync"

	"github.com/vitaliisemenov/syncengine/internal/domain"
)

// statusTable holds the default forward (canonical -> native) and reverse
// (native -> canonical) status vocabularies for one target system.
type statusTable struct {
	forward map[domain.CanonicalStatus]string
	reverse map[string]domain.CanonicalStatus
}

// defaultStatusTables is seeded once at package init and never mutated;
// per-instance customization lives in Mapper.overrides instead.
var defaultStatusTables = map[domain.System]statusTable{
	domain.SystemRelational: {
		forward: map[domain.CanonicalStatus]string{
			domain.StatusPending:    "pending",
			domain.StatusInProgress: "in_progress",
			domain.StatusCompleted:  "completed",
			domain.StatusFailed:     "failed",
			domain.StatusCancelled:  "cancelled",
		},
		reverse: map[string]domain.CanonicalStatus{
			"pending":     domain.StatusPending,
			"in_progress": domain.StatusInProgress,
			"completed":   domain.StatusCompleted,
			"failed":      domain.StatusFailed,
			"cancelled":   domain.StatusCancelled,
		},
	},
	domain.SystemTracker: {
		forward: map[domain.CanonicalStatus]string{
			domain.StatusPending:    "open",
			domain.StatusInProgress: "in_progress",
			domain.StatusCompleted:  "closed",
			domain.StatusFailed:     "closed",
			domain.StatusCancelled:  "wontfix",
		},
		reverse: map[string]domain.CanonicalStatus{
			"open":        domain.StatusPending,
			"in_progress": domain.StatusInProgress,
			"closed":      domain.StatusCompleted,
			"wontfix":     domain.StatusCancelled,
		},
	},
	domain.SystemVCS: {
		forward: map[domain.CanonicalStatus]string{
			domain.StatusPending:    "draft",
			domain.StatusInProgress: "open",
			domain.StatusCompleted:  "merged",
			domain.StatusFailed:     "closed",
			domain.StatusCancelled:  "closed",
		},
		reverse: map[string]domain.CanonicalStatus{
			"draft":  domain.StatusPending,
			"open":   domain.StatusInProgress,
			"merged": domain.StatusCompleted,
			"closed": domain.StatusCancelled,
		},
	},
	domain.SystemAgent: {
		forward: map[domain.CanonicalStatus]string{
			domain.StatusPending:    "queued",
			domain.StatusInProgress: "running",
			domain.StatusCompleted:  "succeeded",
			domain.StatusFailed:     "failed",
			domain.StatusCancelled:  "cancelled",
		},
		reverse: map[string]domain.CanonicalStatus{
			"queued":    domain.StatusPending,
			"running":   domain.StatusInProgress,
			"succeeded": domain.StatusCompleted,
			"failed":    domain.StatusFailed,
			"cancelled": domain.StatusCancelled,
		},
	},
}

// defaultEntityTypeTable maps a canonical EntityType to each target system's
// native entity type token. Systems not present for an EntityType treat it
// as unsupported (mapToAllSystems skips it).
var defaultEntityTypeTable = map[domain.EntityType]map[domain.System]string{
	domain.EntityTask: {
		domain.SystemRelational: "task",
		domain.SystemTracker:    "issue",
		domain.SystemVCS:        "pull_request",
		domain.SystemAgent:      "job",
	},
	domain.EntityIssue: {
		domain.SystemRelational: "task",
		domain.SystemTracker:    "issue",
	},
	domain.EntityPR: {
		domain.SystemRelational: "task",
		domain.SystemVCS:        "pull_request",
	},
	domain.EntityDeployment: {
		domain.SystemRelational: "task",
		domain.SystemAgent:      "deployment_job",
	},
}

// defaultPriorityTable maps a queue EventPriority to each target
// system's native priority vocabulary.
var defaultPriorityTable = map[domain.EventPriority]map[domain.System]string{
	domain.PriorityCritical: {
		domain.SystemTracker: "urgent",
		domain.SystemAgent:   "p0",
	},
	domain.PriorityHigh: {
		domain.SystemTracker: "high",
		domain.SystemAgent:   "p1",
	},
	domain.PriorityNormal: {
		domain.SystemTracker: "medium",
		domain.SystemAgent:   "p2",
	},
	domain.PriorityLow: {
		domain.SystemTracker: "low",
		domain.SystemAgent:   "p3",
	},
}

// overrideTable is a bidirectional per-system custom status mapping. It is
// guarded by its own RWMutex so reads (the hot path, one per mapped status)
// never block on each other.
type overrideTable struct {
	mu      sync.RWMutex
	forward map[domain.CanonicalStatus]string
	reverse map[string]domain.CanonicalStatus
}

func newOverrideTable() *overrideTable {
	return &overrideTable{
		forward: make(map[domain.CanonicalStatus]string),
		reverse: make(map[string]domain.CanonicalStatus),
	}
}

func (t *overrideTable) get(canonical domain.CanonicalStatus) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.forward[canonical]
	return v, ok
}

func (t *overrideTable) getReverse(native string) (domain.CanonicalStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.reverse[native]
	return v, ok
}

// set installs a bidirectional override, replacing any prior native value
// that pointed at the same canonical status and vice versa so the table
// never holds a stale inverse entry.
func (t *overrideTable) set(canonical domain.CanonicalStatus, native string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.forward[canonical]; ok {
		delete(t.reverse, old)
	}
	if old, ok := t.reverse[native]; ok {
		delete(t.forward, old)
	}
	t.forward[canonical] = native
	t.reverse[native] = canonical
}

func (t *overrideTable) remove(canonical domain.CanonicalStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if native, ok := t.forward[canonical]; ok {
		delete(t.forward, canonical)
		delete(t.reverse, native)
	}
}
