package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tailored-agentic-units/flux/observability"
	"github.com/tailored-agentic-units/flux/persist"
	"github.com/tailored-agentic-units/flux/state"
)

// Dispatcher starts dispatches. Units receive it instead of the Store so
// that nested dispatch is a capability rather than a back reference.
type Dispatcher interface {
	Dispatch(ctx context.Context, action any) error
}

// Snapshot maps slice names to values, for checkpoints and time travel.
type Snapshot map[string]any

// Store is the runtime produced by Builder.Build. It is safe for concurrent
// use. Overlapping dispatches are not serialized against each other: two
// dispatches updating the same slice race, and the last Set wins.
type Store struct {
	name      string
	observer  observability.Observer
	tracer    trace.Tracer
	pipelines map[reflect.Type]actionPipeline
	hooks     map[HookPoint][]Hook

	slices []state.Slice
	byType map[reflect.Type]state.Slice
	byName map[string]state.Slice

	cache           *persist.Cache
	flushOnDispatch bool
}

var _ Dispatcher = (*Store)(nil)

// Name returns the configured store name.
func (s *Store) Name() string { return s.name }

// Dispatch runs the interceptor, updater and after-effect stages for action,
// in that order, and returns once the after-effects have finished. Actions
// with no registrations are ignored.
//
// The first failing unit or hook aborts the dispatch with a *DispatchError.
// A dispatch that was cut short returns a *CancelledError. Subscriber
// failures are joined into the returned error without stopping the
// pipeline.
func (s *Store) Dispatch(ctx context.Context, action any) (err error) {
	if action == nil {
		return ErrNilAction
	}

	t := reflect.TypeOf(action)

	ctx, span := s.tracer.Start(ctx, "flux.dispatch", trace.WithAttributes(
		attribute.String("flux.store", s.name),
		attribute.String("flux.action", t.String()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	p, ok := s.pipelines[t]
	if !ok {
		s.emit(ctx, EventDispatchUnhandled, observability.LevelVerbose, map[string]any{
			"action": t.String(),
		})
		return nil
	}

	err = p.dispatch(ctx, s, action)

	if s.flushOnDispatch {
		if ferr := s.Flush(ctx); ferr != nil {
			err = errors.Join(err, ferr)
		}
	}
	return err
}

// Slices lists every slice in registration order.
func (s *Store) Slices() []state.Slice {
	out := make([]state.Slice, len(s.slices))
	copy(out, s.slices)
	return out
}

// Slice looks up a slice by name.
func (s *Store) Slice(name string) (state.Slice, bool) {
	slice, ok := s.byName[name]
	return slice, ok
}

// Snapshot captures the current value of every slice.
func (s *Store) Snapshot() Snapshot {
	snap := make(Snapshot, len(s.slices))
	for _, slice := range s.slices {
		snap[slice.Name()] = slice.Value()
	}
	return snap
}

// Restore force-sets each slice named in snap and notifies it. Slices not
// named in snap keep their values. All slices are attempted; failures are
// joined.
func (s *Store) Restore(snap Snapshot) error {
	var errs []error
	for _, slice := range s.slices {
		v, ok := snap[slice.Name()]
		if !ok {
			continue
		}
		if err := slice.Restore(v); err != nil {
			errs = append(errs, err)
		}
	}
	for name := range snap {
		if _, ok := s.byName[name]; !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownSlice, name))
		}
	}
	return errors.Join(errs...)
}

// Flush writes pending persisted slices to the persist store. It is a no-op
// when persistence is disabled.
func (s *Store) Flush(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	pending := s.cache.Pending()
	if len(pending) == 0 {
		return nil
	}
	if err := s.cache.Flush(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", s.name, err)
	}
	s.emit(ctx, EventFlush, observability.LevelVerbose, map[string]any{
		"keys": pending,
	})
	return nil
}

// Select returns the container for state type S.
func Select[S any](s *Store) (state.Container[S], bool) {
	slice, ok := s.byType[reflect.TypeFor[S]()]
	if !ok {
		return nil, false
	}
	c, ok := slice.(state.Container[S])
	return c, ok
}

// Current returns the current value of S, or the zero value when S is not
// registered.
func Current[S any](s *Store) S {
	c, ok := Select[S](s)
	if !ok {
		var zero S
		return zero
	}
	return c.Current()
}

// StateOf reads slice S from within a running dispatch.
//
//	count := store.StateOf[Counter](dc)
func StateOf[S, A any](dc *Context[A]) (S, bool) {
	c, ok := Select[S](dc.store)
	if !ok {
		var zero S
		return zero, false
	}
	return c.Current(), true
}

func (s *Store) notify(ctx context.Context, touched []state.Slice) error {
	var errs []error
	for _, slice := range touched {
		if err := slice.Notify(); err != nil {
			errs = append(errs, err)
			s.emit(ctx, EventNotifyFailed, observability.LevelWarning, map[string]any{
				"slice": slice.Name(),
				"error": err.Error(),
			})
		}
	}
	return errors.Join(errs...)
}

func (s *Store) failed(ctx context.Context, id, action string, err error) error {
	s.emit(ctx, EventDispatchError, observability.LevelError, map[string]any{
		"action":      action,
		"dispatch_id": id,
		"error":       err.Error(),
	})
	return err
}

func (s *Store) cancelled(ctx context.Context, c cancelSource, action string, notifyErr error) error {
	ce := &CancelledError{
		DispatchID: c.ID(),
		Action:     action,
		Stage:      c.abortedIn(),
		Cause:      c.cause(),
	}
	s.emit(ctx, EventDispatchCancelled, observability.LevelWarning, map[string]any{
		"action":      action,
		"dispatch_id": ce.DispatchID,
		"stage":       ce.Stage.String(),
	})
	if notifyErr != nil {
		return errors.Join(ce, notifyErr)
	}
	return ce
}

type cancelSource interface {
	ID() string
	abortedIn() Stage
	cause() error
}

func (dc *Context[A]) abortedIn() Stage {
	if stage := Stage(dc.abortStage.Load()); stage != StageNone {
		return stage
	}
	return dc.Stage()
}

func (dc *Context[A]) cause() error {
	return context.Cause(dc.ctx)
}

func (s *Store) emit(ctx context.Context, typ observability.EventType, level observability.Level, data map[string]any) {
	observability.Emit(ctx, s.observer, typ, level, "store."+s.name, data)
}
