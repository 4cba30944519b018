package queue

import (
	"sync"
	"time"

	"github.com/vitaliisemenov/syncengine/internal/domain"
)

// DeadLetterEntry records one event that exhausted its retry budget.
type DeadLetterEntry struct {
	Event    domain.Event
	LastErr  string
	FailedAt time.Time
}

// DeadLetterStore holds exhausted events in memory, bounded to capacity on a
// FIFO basis. A real deployment would back this with the relational store;
// nothing in scope persists it, so the in-memory form is the whole of it.
type DeadLetterStore struct {
	mu       sync.Mutex
	capacity int
	entries  []DeadLetterEntry
}

func newDeadLetterStore(capacity int) *DeadLetterStore {
	if capacity <= 0 {
		capacity = 1000
	}
	return &DeadLetterStore{capacity: capacity}
}

func (s *DeadLetterStore) add(entry DeadLetterEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	if len(s.entries) > s.capacity {
		s.entries = s.entries[len(s.entries)-s.capacity:]
	}
}

// Entries returns a snapshot of the current dead-letter contents.
func (s *DeadLetterStore) Entries() []DeadLetterEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DeadLetterEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len reports the current number of dead-lettered entries.
func (s *DeadLetterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
