// Package queue implements the priority event queue and processor (C2):
// four strictly-ordered priority levels, a dedup window, batched draining,
// retry with exponential backoff, and dead-lettering once retries are
// exhausted.
//
// The four priority levels are explicit slices behind one mutex rather than
// the teacher's channel-per-priority design (see
// _examples/ipiton-alert-history-service internal/infrastructure/publishing/queue.go):
// this queue needs to re-sort a batch by enqueue time and reinsert a failed
// event at the front of its own priority level, neither of which channels
// express without an extra layer of bookkeeping that would just reinvent a
// slice-backed queue anyway.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vitaliisemenov/syncengine/internal/domain"
	"github.com/vitaliisemenov/syncengine/pkg/metrics"
)

// numPriorities is the number of distinct domain.EventPriority levels.
const numPriorities = 4

// Config configures a Queue.
type Config struct {
	MaxSizePerPriority int
	BatchSize          int
	DedupWindow        time.Duration
	MaxRetries         int
	DrainInterval      time.Duration
	SweepInterval      time.Duration
	DLQCapacity        int
	// SortBatchByAge re-sorts each drained batch by EnqueuedAt ascending
	// instead of leaving strict FIFO-within-priority order.
	SortBatchByAge bool
	// EnableBatching groups a drained batch by event Type and hands each
	// group to the BatchHandler as one call instead of dispatching events
	// singly. Has no effect unless SetBatchHandler was also called.
	EnableBatching bool
}

// DefaultConfig returns sane defaults for a Queue.
func DefaultConfig() Config {
	return Config{
		MaxSizePerPriority: 10000,
		BatchSize:          50,
		DedupWindow:        30 * time.Second,
		MaxRetries:         3,
		DrainInterval:      100 * time.Millisecond,
		SweepInterval:      time.Minute,
		DLQCapacity:        1000,
	}
}

// Handler processes one event dispatched from the queue. A returned error
// that satisfies domain.Error.Retryable() causes the event to be
// reinserted at the front of its priority level after a backoff delay;
// any other error, or exhausting MaxRetries, dead-letters the event.
type Handler func(ctx context.Context, event *domain.Event) error

// BatchHandler processes one same-Type group of events, drained together
// under Config.EnableBatching, in a single call (spec.md §4.2 step 3). It
// returns one error per event, aligned by index with events; a nil entry
// means that event succeeded. Each event is then retried or dead-lettered
// exactly as it would be under Handler.
type BatchHandler func(ctx context.Context, events []*domain.Event) []error

// Queue is the priority event queue and processor.
type Queue struct {
	cfg     Config
	backoff backoffPolicy
	logger  *slog.Logger
	metrics *Metrics
	dedup   dedupStore
	dlq     *DeadLetterStore

	mu     sync.Mutex
	lanes  [numPriorities][]*domain.Event
	closed bool

	latency map[string]*metrics.RunningMean
	latMu   sync.Mutex

	handler      Handler
	batchHandler BatchHandler
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// New builds a Queue. It has no handler yet; the per-event handler is set
// via SetHandler before Start.
func New(cfg Config, logger *slog.Logger, m *Metrics) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		cfg:     cfg,
		backoff: defaultBackoffPolicy(),
		logger:  logger,
		metrics: m,
		dedup:   newMapDedupStore(cfg.DedupWindow),
		dlq:     newDeadLetterStore(cfg.DLQCapacity),
		latency: make(map[string]*metrics.RunningMean),
	}
}

// UseDistributedDedup swaps the queue's dedup window for one backed by
// client, sharing the dedup window across every queue process reading from
// the same Redis instance instead of tracking it per-process. Must be
// called before Start.
func (q *Queue) UseDistributedDedup(client *redis.Client) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dedup = newRedisDedupStore(client, q.cfg.DedupWindow)
}

// SetHandler assigns the per-event processing function. Must be called
// before Start.
func (q *Queue) SetHandler(h Handler) {
	q.handler = h
}

// SetBatchHandler assigns the grouped processing function used when
// Config.EnableBatching is set. Must be called before Start; without it,
// EnableBatching has no effect and the queue dispatches singly via Handler.
func (q *Queue) SetBatchHandler(h BatchHandler) {
	q.batchHandler = h
}

// DeadLetters exposes the dead-letter store for inspection and manual replay.
func (q *Queue) DeadLetters() *DeadLetterStore {
	return q.dlq
}

// Enqueue accepts an event onto the queue, applying dedup and per-priority
// capacity checks. A duplicate within the dedup window is silently dropped,
// not an error, matching the queue's "suppress repeated noise" intent.
func (q *Queue) Enqueue(event *domain.Event) error {
	if event.EnqueuedAt.IsZero() {
		event.EnqueuedAt = time.Now()
	}
	if event.Type == "" {
		event.Type = domain.DefaultEventType
	}

	priority := event.Priority
	dedupKey := event.Type + "|" + event.Update.Key() + "|" + event.Update.Status + "|" + string(event.Update.Source)
	if q.dedup.seenRecently(dedupKey, event.EnqueuedAt) {
		if q.metrics != nil {
			q.metrics.DedupedTotal.WithLabelValues(priority.String()).Inc()
		}
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return domain.NewShutdownError(nil)
	}
	if len(q.lanes[priority]) >= q.cfg.MaxSizePerPriority {
		return domain.NewQueueFullError(nil)
	}
	q.lanes[priority] = append(q.lanes[priority], event)
	q.updateDepthLocked()

	if q.metrics != nil {
		q.metrics.EnqueuedTotal.WithLabelValues(priority.String()).Inc()
	}
	return nil
}

// requeueFront reinserts event at the front of its priority lane, used for
// retries so a retried event is processed before freshly enqueued peers of
// the same priority.
func (q *Queue) requeueFront(event *domain.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	p := event.Priority
	q.lanes[p] = append([]*domain.Event{event}, q.lanes[p]...)
	q.updateDepthLocked()
}

// updateDepthLocked refreshes the depth gauge; caller must hold q.mu.
func (q *Queue) updateDepthLocked() {
	if q.metrics == nil {
		return
	}
	for p := 0; p < numPriorities; p++ {
		q.metrics.QueueDepth.WithLabelValues(domain.EventPriority(p).String()).Set(float64(len(q.lanes[p])))
	}
}

// drainBatch pops up to BatchSize events in strict priority order
// (critical, high, normal, low), FIFO within a priority level, optionally
// re-sorted by EnqueuedAt across the whole batch.
func (q *Queue) drainBatch() []*domain.Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	batch := make([]*domain.Event, 0, q.cfg.BatchSize)
	for p := 0; p < numPriorities && len(batch) < q.cfg.BatchSize; p++ {
		lane := q.lanes[p]
		take := q.cfg.BatchSize - len(batch)
		if take > len(lane) {
			take = len(lane)
		}
		if take == 0 {
			continue
		}
		batch = append(batch, lane[:take]...)
		q.lanes[p] = lane[take:]
	}
	q.updateDepthLocked()

	if q.cfg.SortBatchByAge {
		sortByEnqueuedAt(batch)
	}
	return batch
}

func sortByEnqueuedAt(batch []*domain.Event) {
	for i := 1; i < len(batch); i++ {
		for j := i; j > 0 && batch[j].EnqueuedAt.Before(batch[j-1].EnqueuedAt); j-- {
			batch[j], batch[j-1] = batch[j-1], batch[j]
		}
	}
}

// Start launches the background drain loop and dedup-window sweeper. It
// returns immediately; Stop blocks until both stop.
func (q *Queue) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel

	q.wg.Add(2)
	go q.drainLoop(ctx)
	go q.sweepLoop(ctx)
}

func (q *Queue) drainLoop(ctx context.Context) {
	defer q.wg.Done()
	ticker := time.NewTicker(q.cfg.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.processBatch(ctx)
		}
	}
}

func (q *Queue) sweepLoop(ctx context.Context) {
	defer q.wg.Done()
	ticker := time.NewTicker(q.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := q.dedup.sweep(time.Now())
			if removed > 0 {
				q.logger.Debug("swept dedup window", "removed", removed)
			}
		}
	}
}

func (q *Queue) processBatch(ctx context.Context) {
	if q.handler == nil {
		return
	}
	batch := q.drainBatch()

	if q.cfg.EnableBatching && q.batchHandler != nil && len(batch) > 1 {
		for _, group := range groupByType(batch) {
			q.processGroup(ctx, group)
		}
		return
	}
	for _, event := range batch {
		q.processOne(ctx, event)
	}
}

// groupByType splits batch into groups sharing the same event Type, ordered
// by each Type's first appearance; events of one Type are gathered into one
// group even when not adjacent, and keep their strict-priority-then-FIFO
// order from drainBatch within the group.
func groupByType(batch []*domain.Event) [][]*domain.Event {
	groups := make([][]*domain.Event, 0, len(batch))
	index := make(map[string]int, len(batch))
	for _, event := range batch {
		if i, ok := index[event.Type]; ok {
			groups[i] = append(groups[i], event)
			continue
		}
		index[event.Type] = len(groups)
		groups = append(groups, []*domain.Event{event})
	}
	return groups
}

func (q *Queue) processOne(ctx context.Context, event *domain.Event) {
	start := time.Now()
	err := q.handler(ctx, event)
	q.observeLatency(event.Type, time.Since(start))
	q.finishEvent(event, err)
}

// processGroup hands group to the BatchHandler as a single call, then
// applies the same per-event retry/dead-letter policy processOne would,
// using the error BatchHandler reported for that event's index.
func (q *Queue) processGroup(ctx context.Context, group []*domain.Event) {
	start := time.Now()
	errs := q.batchHandler(ctx, group)
	for i, event := range group {
		q.observeLatency(event.Type, time.Since(start))
		var err error
		if i < len(errs) {
			err = errs[i]
		}
		q.finishEvent(event, err)
	}
}

// finishEvent applies the shared success/retry/dead-letter outcome for one
// event, whether it was dispatched singly or as part of a batched group.
func (q *Queue) finishEvent(event *domain.Event, err error) {
	priority := event.Priority
	if err == nil {
		if q.metrics != nil {
			q.metrics.ProcessedTotal.WithLabelValues(priority.String(), "success").Inc()
		}
		return
	}

	var derr *domain.Error
	retryable := false
	if errors.As(err, &derr) {
		retryable = derr.Retryable()
	}

	if retryable && event.RetryCount < q.cfg.MaxRetries {
		event.RetryCount++
		if q.metrics != nil {
			q.metrics.RetriedTotal.WithLabelValues(priority.String()).Inc()
		}
		delay := q.backoff.delayFor(event.RetryCount)
		q.logger.Warn("event processing failed, scheduling retry",
			"entity", event.Update.Key(),
			"priority", priority.String(),
			"retry_count", event.RetryCount,
			"delay", delay,
			"error", err,
		)
		time.AfterFunc(delay, func() {
			q.requeueFront(event)
		})
		return
	}

	if q.metrics != nil {
		q.metrics.ProcessedTotal.WithLabelValues(priority.String(), "failure").Inc()
		q.metrics.DeadLetteredTotal.WithLabelValues(priority.String()).Inc()
	}
	q.logger.Error("event exhausted retries, dead-lettering",
		"entity", event.Update.Key(),
		"priority", priority.String(),
		"retry_count", event.RetryCount,
		"error", err,
	)
	q.dlq.add(DeadLetterEntry{Event: *event, LastErr: err.Error(), FailedAt: time.Now()})
}

func (q *Queue) observeLatency(eventType string, d time.Duration) {
	if q.metrics != nil {
		q.metrics.ProcessingSeconds.WithLabelValues(eventType).Observe(d.Seconds())
	}
	q.latMu.Lock()
	rm, ok := q.latency[eventType]
	if !ok {
		rm = &metrics.RunningMean{}
		q.latency[eventType] = rm
	}
	q.latMu.Unlock()
	rm.Observe(d.Seconds())
}

// MeanLatency returns the running mean processing duration, in seconds, for
// the given event type. Returns 0 if no events of that type were processed.
func (q *Queue) MeanLatency(eventType string) float64 {
	q.latMu.Lock()
	rm, ok := q.latency[eventType]
	q.latMu.Unlock()
	if !ok {
		return 0
	}
	return rm.Mean()
}

// Depth returns the total number of events currently waiting across all
// priority levels.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	total := 0
	for p := 0; p < numPriorities; p++ {
		total += len(q.lanes[p])
	}
	return total
}

// DepthByPriority returns the number of events waiting at one priority level.
func (q *Queue) DepthByPriority(p domain.EventPriority) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lanes[p])
}

// Stop signals the drain and sweep loops to exit and waits for them. Events
// still waiting in the lanes are not processed: neither Stop nor the
// orchestrator's Shutdown drains them.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
}
