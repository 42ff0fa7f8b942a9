package state

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/tailored-agentic-units/flux/observability"
)

// Subscriber is called with the slice's current value on every Notify.
type Subscriber[S any] func(current S) error

// Subscription identifies one Subscribe call. Subscribing the same function
// twice yields two subscriptions, and it runs twice per Notify.
type Subscription uint64

// Slice is the type-erased view of a container. The dispatcher uses it to
// flush notifications across slices of different types; tooling uses it to
// read and restore values by name.
type Slice interface {
	Name() string
	Type() reflect.Type
	Value() any
	// Restore force-sets v, which must be of the slice's type, and notifies.
	Restore(v any) error
	Notify() error
}

// Container owns the current value of one slice. Set is reserved for the
// updater stage and for Restore.
type Container[S any] interface {
	Slice
	Current() S
	// Set replaces the current value unless next equals it, reporting
	// whether anything changed. It never notifies.
	Set(next S) bool
	Subscribe(fn Subscriber[S]) Subscription
	// Unsubscribe removes one subscription. Unknown ids are ignored.
	Unsubscribe(id Subscription)
}

// Option configures a container built by New.
type Option[S any] func(*container[S])

// WithEqual replaces the default value comparison.
func WithEqual[S any](eq Equal[S]) Option[S] {
	return func(c *container[S]) {
		if eq != nil {
			c.equal = eq
		}
	}
}

// WithObserver routes container events to obs.
func WithObserver[S any](obs observability.Observer) Option[S] {
	return func(c *container[S]) {
		c.observer = observability.OrNoOp(obs)
	}
}

type subscriber[S any] struct {
	id Subscription
	fn Subscriber[S]
}

type container[S any] struct {
	name     string
	typ      reflect.Type
	equal    Equal[S]
	observer observability.Observer

	value S
	mu    sync.RWMutex

	subs   []subscriber[S]
	nextID Subscription
	subsMu sync.Mutex
}

// New builds a container named name whose initial value comes from a single
// call to provider.Provide.
func New[S any](name string, provider Provider[S], opts ...Option[S]) Container[S] {
	c := &container[S]{
		name:     name,
		typ:      reflect.TypeFor[S](),
		equal:    DefaultEqual[S](),
		observer: observability.NoOpObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}

	c.value = provider.Provide()

	observability.Emit(context.Background(), c.observer, EventCreate, observability.LevelVerbose, "state.Container", map[string]any{
		"slice": c.name,
		"type":  c.typ.String(),
	})

	return c
}

func (c *container[S]) Name() string       { return c.name }
func (c *container[S]) Type() reflect.Type { return c.typ }

func (c *container[S]) Current() S {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

func (c *container[S]) Value() any {
	return c.Current()
}

func (c *container[S]) Set(next S) bool {
	c.mu.Lock()
	if c.equal(c.value, next) {
		c.mu.Unlock()
		return false
	}
	c.value = next
	c.mu.Unlock()

	observability.Emit(context.Background(), c.observer, EventSet, observability.LevelVerbose, "state.Container", map[string]any{
		"slice": c.name,
	})
	return true
}

func (c *container[S]) Restore(v any) error {
	next, ok := v.(S)
	if !ok {
		return fmt.Errorf("%w: %s holds %s, got %T", ErrTypeMismatch, c.name, c.typ, v)
	}

	c.Set(next)

	observability.Emit(context.Background(), c.observer, EventRestore, observability.LevelInfo, "state.Container", map[string]any{
		"slice": c.name,
	})
	return c.Notify()
}

func (c *container[S]) Subscribe(fn Subscriber[S]) Subscription {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	c.nextID++
	c.subs = append(c.subs, subscriber[S]{id: c.nextID, fn: fn})
	return c.nextID
}

func (c *container[S]) Unsubscribe(id Subscription) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	for i, s := range c.subs {
		if s.id == id {
			c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
			return
		}
	}
}

// Notify runs every subscriber in subscription order against one snapshot
// of the current value. The subscriber list is copied under the lock and
// called outside it, so subscribers may subscribe, unsubscribe, or dispatch.
func (c *container[S]) Notify() error {
	c.subsMu.Lock()
	subs := make([]subscriber[S], len(c.subs))
	copy(subs, c.subs)
	c.subsMu.Unlock()

	current := c.Current()

	var failures []error
	for _, s := range subs {
		if err := call(s.fn, current); err != nil {
			failures = append(failures, fmt.Errorf("subscription %d: %w", s.id, err))
			observability.Emit(context.Background(), c.observer, EventSubscriberFailed, observability.LevelError, "state.Container", map[string]any{
				"slice":        c.name,
				"subscription": int(s.id),
				"error":        err.Error(),
			})
		}
	}

	observability.Emit(context.Background(), c.observer, EventNotify, observability.LevelVerbose, "state.Container", map[string]any{
		"slice":       c.name,
		"subscribers": len(subs),
		"failures":    len(failures),
	})

	if len(failures) > 0 {
		return &NotifyError{Slice: c.name, Failures: failures}
	}
	return nil
}

func call[S any](fn Subscriber[S], current S) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrSubscriberPanic, r)
		}
	}()
	return fn(current)
}
