// Package adapter implements the adapter facade (C5): one domain.Adapter
// per external system. Per spec.md §4.5 only the call contract is fixed and
// implementations are out of scope, except for the single persisted
// relational-store operation named in spec.md §6, which Relational (in
// relational.go) actually performs. Every other adapter here is an in-memory test
// double the orchestrator can be wired against.
package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/vitaliisemenov/syncengine/internal/domain"
)

// InMemory is a domain.Adapter test double that records every Apply call
// and replies with a canned result or error, standing in for the issue
// tracker, VCS host, and agent execution service.
type InMemory struct {
	system domain.System

	mu      sync.Mutex
	applied map[string]*domain.StatusUpdate
	fail    error
}

// NewInMemory builds an InMemory adapter for system.
func NewInMemory(system domain.System) *InMemory {
	return &InMemory{
		system:  system,
		applied: make(map[string]*domain.StatusUpdate),
	}
}

// FailNext makes the next Apply call (and every call after it, until reset
// with FailNext(nil)) return err. Used by tests to exercise the
// orchestrator's partial-failure path.
func (a *InMemory) FailNext(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fail = err
}

func (a *InMemory) System() domain.System { return a.system }

func (a *InMemory) Apply(ctx context.Context, update *domain.StatusUpdate) (*domain.ApplyResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail != nil {
		return nil, a.fail
	}
	a.applied[update.Key()] = update.Clone()
	return &domain.ApplyResult{
		System:    a.system,
		EntityID:  update.EntityID,
		Status:    update.Status,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

func (a *InMemory) HealthCheck(ctx context.Context) (*domain.Health, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail != nil {
		return &domain.Health{Status: domain.HealthUnhealthy, Detail: a.fail.Error()}, nil
	}
	return &domain.Health{Status: domain.HealthHealthy}, nil
}

// Applied returns the most recently applied update for key
// (entityType:entityId), or nil if none was ever applied.
func (a *InMemory) Applied(key string) *domain.StatusUpdate {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.applied[key]
}
