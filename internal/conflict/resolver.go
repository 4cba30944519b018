package conflict

import (
	"sync"

	"github.com/vitaliisemenov/syncengine/internal/domain"
)

// Resolver picks a Strategy by name and validates its Resolution, escalating
// when the chosen strategy can't produce a valid one and the conflict count
// meets Config.EscalationThreshold.
type Resolver struct {
	cfg        Config
	mu         sync.RWMutex
	strategies map[string]Strategy
	metrics    *Metrics
}

// NewResolver builds a Resolver preloaded with the four built-in strategies.
func NewResolver(cfg Config, m *Metrics) *Resolver {
	r := &Resolver{
		cfg:        cfg,
		strategies: make(map[string]Strategy, 4),
		metrics:    m,
	}
	r.strategies[StrategyPriorityBased] = priorityBasedStrategy
	r.strategies[StrategyTimestampBased] = timestampBasedStrategy
	r.strategies[StrategyManual] = manualStrategy
	r.strategies[StrategyMerge] = mergeStrategy
	return r
}

// RegisterStrategy installs a user-defined strategy under name, overwriting
// any existing strategy (built-in or otherwise) registered under it.
func (r *Resolver) RegisterStrategy(name string, s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[name] = s
}

// Resolve runs the named strategy (or Config.DefaultStrategy if name is
// empty) against conflicts and validates the result. A Resolution that
// fails validation is escalated (escalatedError) once conflicts meets
// EscalationThreshold; otherwise the validation failure is returned as-is.
func (r *Resolver) Resolve(conflicts []domain.Conflict, update *domain.StatusUpdate, name string) (*domain.Resolution, error) {
	if name == "" {
		name = r.cfg.DefaultStrategy
	}

	r.mu.RLock()
	strategy, ok := r.strategies[name]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.NewConflictError(&unknownStrategyError{name: name})
	}

	resolution, err := strategy(conflicts, update, r.cfg)
	if err != nil {
		if r.metrics != nil {
			r.metrics.ResolutionFailedTotal.WithLabelValues(name).Inc()
		}
		if len(conflicts) >= r.cfg.EscalationThreshold {
			r.recordEscalation(conflicts)
			return nil, domain.NewConflictError(&escalatedError{conflictCount: len(conflicts), cause: err})
		}
		return nil, domain.NewConflictError(err)
	}

	if !resolution.Valid(r.cfg.StrictValidation, len(conflicts)) {
		if r.metrics != nil {
			r.metrics.ResolutionFailedTotal.WithLabelValues(name).Inc()
		}
		if len(conflicts) >= r.cfg.EscalationThreshold {
			r.recordEscalation(conflicts)
			return nil, domain.NewConflictError(&escalatedError{conflictCount: len(conflicts)})
		}
		return nil, domain.NewConflictError(domain.ErrConflictsUnresolved)
	}

	if r.metrics != nil {
		r.metrics.ResolvedTotal.WithLabelValues(name).Inc()
	}
	return resolution, nil
}

func (r *Resolver) recordEscalation(conflicts []domain.Conflict) {
	if r.metrics != nil {
		r.metrics.EscalatedTotal.Inc()
	}
}
