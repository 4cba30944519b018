package orchestrator

import "time"

// Observer receives outcome notifications the sync monitor (C7) uses to
// maintain its running aggregates and raise alerts. An Orchestrator without
// an Observer (nil) simply skips these calls.
type Observer interface {
	RecordSync(success bool, duration time.Duration)
	RecordQueueDepth(depth int)
	RecordConflict(resolved, escalated bool)
}

// noopObserver discards every notification; used when New is called with a
// nil Observer so call sites never need a nil check.
type noopObserver struct{}

func (noopObserver) RecordSync(bool, time.Duration) {}
func (noopObserver) RecordQueueDepth(int)            {}
func (noopObserver) RecordConflict(bool, bool)       {}
