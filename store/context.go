package store

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
)

// Stage is one of the three pipeline stages.
type Stage int32

const (
	StageNone Stage = iota
	StageIntercept
	StageUpdate
	StageAfterEffect
)

func (s Stage) String() string {
	switch s {
	case StageIntercept:
		return "interceptor"
	case StageUpdate:
		return "updater"
	case StageAfterEffect:
		return "after-effect"
	default:
		return "none"
	}
}

// Control carries the short-circuit signals of one dispatch. The three stop
// flags are independent; Cancel raises all of them and also cancels the
// dispatch's context so in-flight work can observe it. Hooks receive the
// same Control as the dispatch's units.
type Control struct {
	id string

	interception atomic.Bool
	handling     atomic.Bool
	afterEffects atomic.Bool
	cancelled    atomic.Bool

	// interrupted is set when a unit was skipped in a way that must be
	// reported to the caller as a cancellation.
	interrupted atomic.Bool
	stage       atomic.Int32
	abortStage  atomic.Int32

	cancel context.CancelCauseFunc
}

func newControl(cancel context.CancelCauseFunc) *Control {
	return &Control{
		id:     uuid.Must(uuid.NewV7()).String(),
		cancel: cancel,
	}
}

// ID is the dispatch's UUIDv7.
func (c *Control) ID() string { return c.id }

// StopInterception skips the remaining interceptors.
func (c *Control) StopInterception() { c.interception.Store(true) }

// StopHandling skips the remaining updaters. Containers already changed are
// still notified, and the dispatch reports ErrOperationCancelled.
func (c *Control) StopHandling() { c.handling.Store(true) }

// StopAfterEffects skips the remaining after-effects.
func (c *Control) StopAfterEffects() { c.afterEffects.Store(true) }

// Cancel stops all three stages and cancels the dispatch context with
// ErrOperationCancelled as its cause.
func (c *Control) Cancel() {
	c.interception.Store(true)
	c.handling.Store(true)
	c.afterEffects.Store(true)
	if c.cancelled.CompareAndSwap(false, true) {
		c.abortStage.CompareAndSwap(int32(StageNone), c.stage.Load())
	}
	if c.cancel != nil {
		c.cancel(ErrOperationCancelled)
	}
}

func (c *Control) InterceptionStopped() bool { return c.interception.Load() }
func (c *Control) HandlingStopped() bool     { return c.handling.Load() }
func (c *Control) AfterEffectsStopped() bool { return c.afterEffects.Load() }
func (c *Control) Cancelled() bool           { return c.cancelled.Load() }

// Stage reports the stage currently running.
func (c *Control) Stage() Stage { return Stage(c.stage.Load()) }

func (c *Control) enter(stage Stage) {
	c.stage.Store(int32(stage))
}

func (c *Control) interrupt() {
	c.interrupted.Store(true)
	c.abortStage.CompareAndSwap(int32(StageNone), c.stage.Load())
}

func (c *Control) aborted() bool {
	return c.cancelled.Load() || c.interrupted.Load()
}

// Context is the envelope for one dispatch of an action of type A. It is
// created when Dispatch is called, shared by every unit of all three
// stages, and dropped when the dispatch returns.
type Context[A any] struct {
	*Control
	action A
	ctx    context.Context
	store  *Store
}

// Action returns the action being dispatched.
func (dc *Context[A]) Action() A { return dc.action }

// Context returns the dispatch context. It is cancelled by Cancel and by
// the caller's context; pass it to long-running work that should stop with
// the dispatch.
func (dc *Context[A]) Context() context.Context { return dc.ctx }

// Dispatcher returns the handle for starting further dispatches.
func (dc *Context[A]) Dispatcher() Dispatcher { return dc.store }

// Dispatch starts an independent top-level dispatch. It keeps the values of
// the current context but not its cancellation; use
// dc.Dispatcher().Dispatch(dc.Context(), action) to tie the follow-up to
// this dispatch's lifetime.
func (dc *Context[A]) Dispatch(action any) error {
	return dc.store.Dispatch(context.WithoutCancel(dc.ctx), action)
}

// halted reports whether the next unit of the current stage must be
// skipped. A cancelled dispatch context always halts and counts as an
// interruption; a raised stop flag halts and counts only when reported is
// true.
func (dc *Context[A]) halted(stopped func() bool, reported bool) bool {
	if dc.ctx.Err() != nil {
		dc.interrupt()
		return true
	}
	if stopped() {
		if reported {
			dc.interrupt()
		}
		return true
	}
	return false
}
