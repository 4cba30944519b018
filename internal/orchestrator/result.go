package orchestrator

import "github.com/vitaliisemenov/syncengine/internal/domain"

// TargetResult is one target system's outcome within a SyncResult.
type TargetResult struct {
	Success bool
	Result  *domain.ApplyResult
	Error   string
}

// SyncResult is synchronize()'s return value: the public shape described in
// spec.md §4.6 step 6 and §7's user-visible failure behavior.
type SyncResult struct {
	SyncID   string
	Success  bool
	Results  map[domain.System]TargetResult
	Duration float64 // seconds

	// rawErrors carries the original per-target errors for retry
	// classification; TargetResult.Error only keeps the string form since
	// this type crosses the public API boundary.
	rawErrors map[domain.System]error
}
