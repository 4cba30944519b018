// Package orchestrator implements the public entry point (C6): validate,
// detect and resolve conflicts, map to every target system, dispatch in
// parallel with an all-settled join, record outcomes, and broadcast the
// result.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/vitaliisemenov/syncengine/internal/conflict"
	"github.com/vitaliisemenov/syncengine/internal/domain"
	"github.com/vitaliisemenov/syncengine/internal/mapper"
	"github.com/vitaliisemenov/syncengine/internal/queue"
	"github.com/vitaliisemenov/syncengine/internal/realtime"
)

var validate = validator.New()

// Orchestrator wires the mapper, queue, conflict detector/resolver, fan-out
// hub, and adapter facade together behind one synchronize() entry point. It
// exclusively owns every other component (spec.md §3's ownership model).
type Orchestrator struct {
	cfg      Config
	logger   *slog.Logger
	metrics  *Metrics
	observer Observer

	mapper   *mapper.Mapper
	queue    *queue.Queue
	detector *conflict.Detector
	resolver *conflict.Resolver
	hub      *realtime.Hub
	adapters map[domain.System]domain.Adapter

	locks keyLockTable

	mu        sync.RWMutex
	accepting bool
	cancel    context.CancelFunc
	inFlight  sync.WaitGroup
}

// New builds an Orchestrator. observer may be nil (metrics are then only
// recorded to Prometheus, not fed to a sync monitor).
func New(
	cfg Config,
	m *mapper.Mapper,
	q *queue.Queue,
	detector *conflict.Detector,
	resolver *conflict.Resolver,
	hub *realtime.Hub,
	adapters map[domain.System]domain.Adapter,
	observer Observer,
	logger *slog.Logger,
	metrics *Metrics,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &Orchestrator{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		observer: observer,
		mapper:   m,
		queue:    q,
		detector: detector,
		resolver: resolver,
		hub:      hub,
		adapters: adapters,
	}
}

// Start wires the queue's drain loop to call synchronize() for every
// dispatched event (the periodic sweep of spec.md §4.6) and begins
// accepting new work.
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	o.mu.Lock()
	o.accepting = true
	o.mu.Unlock()

	o.queue.SetHandler(o.handleQueuedEvent)
	o.queue.SetBatchHandler(o.handleQueuedBatch)
	o.queue.Start(ctx)
}

// Accept validates update, stamps bookkeeping fields, and enqueues it onto
// the event queue (C2) for the next drain tick to synchronize. This is the
// "addEvent" ingestion surface; Synchronize is the inner synchronize() call
// the queue's handler and callers who want an immediate result both use.
func (o *Orchestrator) Accept(update *domain.StatusUpdate) error {
	o.mu.RLock()
	accepting := o.accepting
	o.mu.RUnlock()
	if !accepting {
		return domain.NewShutdownError(nil)
	}

	if err := validate.Struct(update); err != nil {
		return domain.NewValidationError(err)
	}
	if update.Timestamp == 0 {
		update.Timestamp = domain.NowMillis()
	}

	event := &domain.Event{
		ID:       uuid.NewString(),
		Type:     domain.DefaultEventType,
		Update:   update,
		Priority: domain.ParsePriority(update.Priority),
	}
	return o.queue.Enqueue(event)
}

// handleQueuedEvent adapts Synchronize to queue.Handler: a nil error means
// the event is fully processed; a retryable domain.Error causes the queue to
// retry with backoff, anything else dead-letters it after one attempt.
func (o *Orchestrator) handleQueuedEvent(ctx context.Context, event *domain.Event) error {
	result, err := o.Synchronize(ctx, event.Update)
	if err != nil {
		return err
	}
	if result.Success {
		return nil
	}
	if o.metrics != nil {
		o.metrics.FeedbackToQueue.Inc()
	}
	return o.aggregateDispatchError(result)
}

// handleQueuedBatch adapts Synchronize to queue.BatchHandler for
// queue.Config.EnableBatching (spec.md §4.2 step 3): the queue hands every
// same-type group drained together to this one call instead of invoking
// handleQueuedEvent per event individually. Each entity still synchronizes
// independently; only the dispatch and the log line are batched.
func (o *Orchestrator) handleQueuedBatch(ctx context.Context, events []*domain.Event) []error {
	o.logger.Debug("dispatching batched events",
		"type", events[0].Type,
		"count", len(events),
	)
	errs := make([]error, len(events))
	for i, event := range events {
		errs[i] = o.handleQueuedEvent(ctx, event)
	}
	return errs
}

// Synchronize is the public entry point (spec.md §4.6): validate, acquire
// the per-entity lock, detect and resolve conflicts, map to every target
// system, dispatch in parallel with an all-settled join, record metrics,
// and broadcast the outcome.
func (o *Orchestrator) Synchronize(ctx context.Context, update *domain.StatusUpdate) (*SyncResult, error) {
	o.inFlight.Add(1)
	defer o.inFlight.Done()

	start := time.Now()
	syncID := uuid.NewString()

	if err := validate.Struct(update); err != nil {
		o.recordOutcome(false, time.Since(start))
		return nil, domain.NewValidationError(err)
	}
	if update.Timestamp == 0 {
		update.Timestamp = domain.NowMillis()
	}

	unlock := o.locks.lock(update.Key())
	defer unlock()

	resolved, resolvedConflict, err := o.resolveConflicts(ctx, update)
	if err != nil {
		o.recordOutcome(false, time.Since(start))
		return nil, err
	}

	mapped, mapErrs := o.mapper.MapToAllSystems(resolved)
	for _, merr := range mapErrs {
		o.logger.Warn("mapping error during synchronize", "sync_id", syncID, "error", merr)
	}

	results, dispatchErrs := o.dispatchAll(ctx, mapped)
	success := len(mapped) > 0 && allSucceeded(results)

	duration := time.Since(start)
	o.recordOutcome(success, duration)
	o.detector.RecordOutcome(resolved.EntityType, resolved.EntityID, resolved.Source, resolved.Status, time.Now())
	if resolvedConflict {
		o.observer.RecordConflict(success, false)
	}

	o.broadcast(resolved)

	if o.metrics != nil {
		outcome := "success"
		if !success {
			outcome = "failure"
		}
		o.metrics.SyncsTotal.WithLabelValues(outcome).Inc()
		o.metrics.SyncDurationSecs.Observe(duration.Seconds())
	}

	result := &SyncResult{
		SyncID:    syncID,
		Success:   success,
		Results:   results,
		Duration:  duration.Seconds(),
		rawErrors: dispatchErrs,
	}
	return result, nil
}

// resolveConflicts runs detection and, when conflicts are found, resolution.
// The second return value reports whether resolution actually ran.
func (o *Orchestrator) resolveConflicts(ctx context.Context, update *domain.StatusUpdate) (*domain.StatusUpdate, bool, error) {
	conflicts := o.detector.Detect(ctx, update)
	if len(conflicts) == 0 {
		return update, false, nil
	}
	if !o.cfg.AutoResolve {
		return nil, false, domain.NewConflictError(domain.ErrConflictsUnresolved)
	}

	resolution, err := o.resolver.Resolve(conflicts, update, o.cfg.ConflictStrategy)
	if err != nil {
		return nil, true, err
	}
	return resolution.ResolvedUpdate, true, nil
}

// dispatchAll dispatches mapped to every target system present in mapped,
// using an all-settled join: one target's failure never cancels or delays
// the others' results from being recorded.
func (o *Orchestrator) dispatchAll(ctx context.Context, mapped map[domain.System]*domain.StatusUpdate) (map[domain.System]TargetResult, map[domain.System]error) {
	results := make(map[domain.System]TargetResult, len(mapped))
	errs := make(map[domain.System]error, len(mapped))
	if len(mapped) == 0 {
		return results, errs
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for system, targetUpdate := range mapped {
		adapter, ok := o.adapters[system]
		if !ok {
			continue
		}
		wg.Add(1)
		go func(system domain.System, targetUpdate *domain.StatusUpdate, adapter domain.Adapter) {
			defer wg.Done()
			dctx, cancel := context.WithTimeout(ctx, o.cfg.DispatchTimeout)
			defer cancel()

			applyResult, err := adapter.Apply(dctx, targetUpdate)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				results[system] = TargetResult{Success: false, Error: err.Error()}
				errs[system] = err
				if o.metrics != nil {
					o.metrics.DispatchTotal.WithLabelValues(string(system), "failure").Inc()
				}
				o.logger.Warn("adapter dispatch failed", "system", system, "entity", targetUpdate.Key(), "error", err)
				return
			}
			results[system] = TargetResult{Success: true, Result: applyResult}
			if o.metrics != nil {
				o.metrics.DispatchTotal.WithLabelValues(string(system), "success").Inc()
			}
		}(system, targetUpdate, adapter)
	}
	wg.Wait()
	return results, errs
}

// broadcast fans the resolved update out to the entity-specific room and the
// entity-type room, matching spec.md §4.6 step 7.
func (o *Orchestrator) broadcast(update *domain.StatusUpdate) {
	if o.hub == nil {
		return
	}
	o.hub.Broadcast(update.Key(), update)
	o.hub.Broadcast(string(update.EntityType), update)
}

func (o *Orchestrator) recordOutcome(success bool, duration time.Duration) {
	o.observer.RecordSync(success, duration)
}

// aggregateDispatchError classifies a failed SyncResult for the queue:
// retryable if any failed target's error was transient, permanent otherwise.
func (o *Orchestrator) aggregateDispatchError(result *SyncResult) error {
	var firstErr error
	transient := false
	for system, err := range result.rawErrors {
		if firstErr == nil {
			firstErr = fmt.Errorf("system %s: %w", system, err)
		}
		var derr *domain.Error
		if errors.As(err, &derr) && derr.Retryable() {
			transient = true
		}
	}
	if firstErr == nil {
		firstErr = errors.New("synchronize failed with no target attempted")
	}
	return domain.NewDispatchError(firstErr, transient)
}

func allSucceeded(results map[domain.System]TargetResult) bool {
	for _, r := range results {
		if !r.Success {
			return false
		}
	}
	return true
}

// Shutdown stops accepting new work, waits up to Config.ShutdownGrace for
// in-flight synchronize() calls to finish, then stops the queue and hub.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.accepting = false
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.inFlight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(o.cfg.ShutdownGrace):
		o.logger.Warn("shutdown grace window expired with synchronize calls still in flight")
	case <-ctx.Done():
	}

	if o.cancel != nil {
		o.cancel()
	}
	o.queue.Stop()
	if o.hub != nil {
		o.hub.Shutdown()
	}
	o.logger.Info("orchestrator stopped")
	return nil
}
