package conflict

import (
	"time"

	"github.com/vitaliisemenov/syncengine/internal/domain"
)

// Config configures the detector and resolver.
type Config struct {
	ConflictWindow      time.Duration
	MaxConflictHistory  int
	EscalationThreshold int
	DefaultStrategy     string
	AutoResolve         bool
	StrictValidation    bool
	SystemPriorities    map[domain.System]int
}

// DefaultConfig mirrors spec.md §4.3's defaults: a 30s conflict window, a
// history of 1000 entries, relational store sovereign at priority 0.
func DefaultConfig() Config {
	return Config{
		ConflictWindow:      30 * time.Second,
		MaxConflictHistory:  1000,
		EscalationThreshold: 5,
		DefaultStrategy:     StrategyPriorityBased,
		AutoResolve:         true,
		StrictValidation:    false,
		SystemPriorities: map[domain.System]int{
			domain.SystemRelational: 0,
			domain.SystemTracker:    1,
			domain.SystemVCS:        2,
			domain.SystemAgent:      3,
		},
	}
}

// priorityOf returns the configured priority for system, falling back to a
// value worse than any configured system so an unconfigured system never
// wins a priority_based arbitration by default.
func (c Config) priorityOf(system domain.System) int {
	if p, ok := c.SystemPriorities[system]; ok {
		return p
	}
	return len(c.SystemPriorities) + 1
}
