package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tailored-agentic-units/flux/observability"
	"github.com/tailored-agentic-units/flux/state"
)

// Interceptor runs before any state changes. It may reject the action by
// dispatching a compensating action and calling Cancel.
type Interceptor[A any] func(dc *Context[A]) error

// Updater computes the next value of slice S for action A. Updaters must be
// pure and synchronous.
type Updater[A, S any] func(action A, current S) S

// AfterEffect runs after the updaters. It is where follow-up dispatches and
// asynchronous work belong.
type AfterEffect[A any] func(dc *Context[A]) error

// actionPipeline is the type-erased face of pipeline[A], indexed by the
// action's reflect.Type.
type actionPipeline interface {
	dispatch(ctx context.Context, s *Store, action any) error
	bind(slices map[reflect.Type]state.Slice) []error
	size() (interceptors, updaters, effects int)
}

type pipeline[A any] struct {
	name         string
	interceptors []Interceptor[A]
	updaters     []updaterEntry[A]
	effects      []AfterEffect[A]
}

type updaterEntry[A any] interface {
	stateType() reflect.Type
	bind(slice state.Slice) error
	target() state.Slice
	apply(action A) bool
}

type boundUpdater[A, S any] struct {
	fn        Updater[A, S]
	typ       reflect.Type
	container state.Container[S]
}

func (u *boundUpdater[A, S]) stateType() reflect.Type { return u.typ }
func (u *boundUpdater[A, S]) target() state.Slice      { return u.container }

func (u *boundUpdater[A, S]) bind(slice state.Slice) error {
	c, ok := slice.(state.Container[S])
	if !ok {
		return fmt.Errorf("%w: slice %s is not a container of %s", ErrInvalidStateType, slice.Name(), u.typ)
	}
	u.container = c
	return nil
}

func (u *boundUpdater[A, S]) apply(action A) bool {
	return u.container.Set(u.fn(action, u.container.Current()))
}

func (p *pipeline[A]) size() (int, int, int) {
	return len(p.interceptors), len(p.updaters), len(p.effects)
}

func (p *pipeline[A]) bind(slices map[reflect.Type]state.Slice) []error {
	var errs []error
	for _, u := range p.updaters {
		slice, ok := slices[u.stateType()]
		if !ok {
			errs = append(errs, &RegistrationError{
				Type: u.stateType(),
				Err:  fmt.Errorf("%w: updater for %s targets an unregistered state", ErrMissingInitialState, p.name),
			})
			continue
		}
		if err := u.bind(slice); err != nil {
			errs = append(errs, &RegistrationError{Type: u.stateType(), Err: err})
		}
	}
	return errs
}

func (p *pipeline[A]) dispatch(ctx context.Context, s *Store, action any) error {
	dctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	dc := &Context[A]{
		Control: newControl(cancel),
		action:  action.(A),
		ctx:     dctx,
		store:   s,
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.String("flux.dispatch_id", dc.ID()))
	s.emit(dctx, EventDispatchStart, observability.LevelVerbose, map[string]any{
		"action":      p.name,
		"dispatch_id": dc.ID(),
	})

	if err := p.intercept(dc, s); err != nil {
		return s.failed(dctx, dc.ID(), p.name, err)
	}

	notifyErr, err := p.update(dc, s)
	if err != nil {
		return s.failed(dctx, dc.ID(), p.name, errors.Join(err, notifyErr))
	}

	if err := p.afterEffects(dc, s); err != nil {
		return s.failed(dctx, dc.ID(), p.name, errors.Join(err, notifyErr))
	}

	if dc.aborted() {
		return s.cancelled(dctx, dc, p.name, notifyErr)
	}

	s.emit(dctx, EventDispatchComplete, observability.LevelVerbose, map[string]any{
		"action":      p.name,
		"dispatch_id": dc.ID(),
	})
	return notifyErr
}

func (p *pipeline[A]) intercept(dc *Context[A], s *Store) error {
	dc.enter(StageIntercept)
	return runUnits(dc, s, p.name, StageIntercept, p.interceptors, dc.InterceptionStopped, BeforeInterceptor, AfterInterceptor)
}

func (p *pipeline[A]) afterEffects(dc *Context[A], s *Store) error {
	dc.enter(StageAfterEffect)
	return runUnits(dc, s, p.name, StageAfterEffect, p.effects, dc.AfterEffectsStopped, BeforeAfterEffect, AfterAfterEffect)
}

// runUnits drives the interceptor and after-effect stages, which share
// the same discipline: check, before hooks, check again, run, after hooks.
func runUnits[A any, F ~func(*Context[A]) error](dc *Context[A], s *Store, action string, stage Stage, units []F, stopped func() bool, before, after HookPoint) error {
	ran := 0
	defer func() {
		s.emit(dc.ctx, EventStageComplete, observability.LevelVerbose, map[string]any{
			"action":      action,
			"dispatch_id": dc.ID(),
			"stage":       stage.String(),
			"ran":         ran,
			"skipped":     len(units) - ran,
		})
	}()

	for i, unit := range units {
		if dc.halted(stopped, false) {
			return nil
		}

		u := Unit{Point: before, Stage: stage, Index: i, Action: dc.action, Control: dc.Control}
		if err := runHooks(dc.ctx, s.hooks[before], u); err != nil {
			return dispatchErr(dc, action, stage, i, &u, err)
		}
		if dc.halted(stopped, false) {
			return nil
		}

		ran++
		if err := unit(dc); err != nil {
			return dispatchErr(dc, action, stage, i, nil, err)
		}

		u.Point = after
		if err := runHooks(dc.ctx, s.hooks[after], u); err != nil {
			return dispatchErr(dc, action, stage, i, &u, err)
		}
	}
	return nil
}

// update applies every updater for A in registration order and then
// notifies each changed container once, in the order they first changed.
// Notification happens even when the loop ends early, before the
// cancellation or error is reported.
func (p *pipeline[A]) update(dc *Context[A], s *Store) (notifyErr error, err error) {
	dc.enter(StageUpdate)

	var touched []state.Slice
	seen := make(map[state.Slice]bool)

	for i, u := range p.updaters {
		if dc.halted(dc.HandlingStopped, true) {
			break
		}

		unit := Unit{Point: BeforeUpdater, Stage: StageUpdate, Index: i, Action: dc.action, Slice: u.target().Name(), Control: dc.Control}
		if herr := runHooks(dc.ctx, s.hooks[BeforeUpdater], unit); herr != nil {
			err = dispatchErr(dc, p.name, StageUpdate, i, &unit, herr)
			break
		}
		if dc.halted(dc.HandlingStopped, true) {
			break
		}

		changed := u.apply(dc.action)
		if changed && !seen[u.target()] {
			seen[u.target()] = true
			touched = append(touched, u.target())
		}

		s.emit(dc.ctx, EventUpdaterApplied, observability.LevelVerbose, map[string]any{
			"action":      p.name,
			"dispatch_id": dc.ID(),
			"index":       i,
			"slice":       unit.Slice,
			"changed":     changed,
		})

		unit.Point = AfterUpdater
		unit.Changed = changed
		if herr := runHooks(dc.ctx, s.hooks[AfterUpdater], unit); herr != nil {
			err = dispatchErr(dc, p.name, StageUpdate, i, &unit, herr)
			break
		}
	}

	return s.notify(dc.ctx, touched), err
}

func dispatchErr[A any](dc *Context[A], action string, stage Stage, index int, hook *Unit, err error) error {
	de := &DispatchError{
		DispatchID: dc.ID(),
		Action:     action,
		Stage:      stage,
		Index:      index,
		Err:        err,
	}
	if hook != nil {
		de.Hook = true
		de.Point = hook.Point
	}
	return de
}
