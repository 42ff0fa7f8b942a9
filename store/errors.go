package store

import (
	"errors"
	"fmt"
	"reflect"
)

// Build-time failures.
var (
	ErrMissingInitialState = errors.New("missing initial state provider")
	ErrInvalidStateType    = errors.New("invalid state type")
	ErrInvalidActionType   = errors.New("invalid action type")
	ErrDuplicateState      = errors.New("state type already registered")
	ErrNoPersistStore      = errors.New("persistence requested but no persist store configured")
	ErrSealed              = errors.New("builder already built")
)

// Dispatch-time failures.
var (
	ErrOperationCancelled = errors.New("operation cancelled")
	ErrNilAction          = errors.New("nil action")
	ErrUnknownSlice       = errors.New("unknown state slice")
)

// RegistrationError ties a build failure to the type that caused it.
type RegistrationError struct {
	Type reflect.Type
	Err  error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("register %s: %v", e.Type, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// DispatchError reports the unit of work that failed. When Hook is true the
// failure came from a hook at Point rather than from the unit itself.
type DispatchError struct {
	DispatchID string
	Action     string
	Stage      Stage
	Index      int
	Hook       bool
	Point      HookPoint
	Err        error
}

func (e *DispatchError) Error() string {
	if e.Hook {
		return fmt.Sprintf("dispatch %s: %s[%d] hook %s: %v", e.Action, e.Stage, e.Index, e.Point, e.Err)
	}
	return fmt.Sprintf("dispatch %s: %s[%d]: %v", e.Action, e.Stage, e.Index, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// CancelledError is returned when a dispatch was cut short, either by
// Cancel, by a StopHandling that skipped updaters, or by the caller's
// context. It matches ErrOperationCancelled and, when the caller's context
// ended, that context's cause.
type CancelledError struct {
	DispatchID string
	Action     string
	Stage      Stage
	Cause      error
}

func (e *CancelledError) Error() string {
	if e.Cause != nil && !errors.Is(e.Cause, ErrOperationCancelled) {
		return fmt.Sprintf("dispatch %s cancelled during %s: %v", e.Action, e.Stage, e.Cause)
	}
	return fmt.Sprintf("dispatch %s cancelled during %s", e.Action, e.Stage)
}

func (e *CancelledError) Unwrap() []error {
	if e.Cause == nil || errors.Is(e.Cause, ErrOperationCancelled) {
		return []error{ErrOperationCancelled}
	}
	return []error{ErrOperationCancelled, e.Cause}
}
