package domain

import "errors"

// Kind classifies an error per the taxonomy in spec.md §7. It drives whether
// the queue retries an event or surfaces the failure to the caller.
type Kind string

const (
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindMapping    Kind = "mapping"
	KindDispatch   Kind = "dispatch"
	KindQueueFull  Kind = "queue_full"
	KindShutdown   Kind = "shutdown"
	KindInternal   Kind = "internal"
)

// Error wraps an underlying error with a Kind and a Transient flag. Dispatch
// errors distinguish transient (retryable) from permanent (dead-lettered
// after one attempt) failures; every other kind is terminal by definition.
type Error struct {
	Kind      Kind
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the queue should requeue the event that produced
// this error. Only transient dispatch errors are retryable; every other kind
// is surfaced to the caller without a retry (spec.md §7).
func (e *Error) Retryable() bool {
	return e.Kind == KindDispatch && e.Transient
}

func NewValidationError(err error) *Error { return &Error{Kind: KindValidation, Err: err} }
func NewConflictError(err error) *Error   { return &Error{Kind: KindConflict, Err: err} }
func NewMappingError(err error) *Error    { return &Error{Kind: KindMapping, Err: err} }
func NewQueueFullError(err error) *Error  { return &Error{Kind: KindQueueFull, Err: err} }
func NewShutdownError(err error) *Error   { return &Error{Kind: KindShutdown, Err: err} }
func NewInternalError(err error) *Error   { return &Error{Kind: KindInternal, Err: err} }

// NewDispatchError classifies an adapter failure as transient or permanent.
func NewDispatchError(err error, transient bool) *Error {
	return &Error{Kind: KindDispatch, Transient: transient, Err: err}
}

var (
	ErrEntityNotFound          = errors.New("entity not found")
	ErrManualResolutionNeeded  = errors.New("manual resolution required")
	ErrConflictsUnresolved     = errors.New("conflicts unresolved")
	ErrMappingUnmapped         = errors.New("value unmapped in strict mode")
	ErrMappingValidationFailed = errors.New("mapped value failed target validation")
)
