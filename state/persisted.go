package state

import (
	"context"
	"fmt"

	"github.com/tailored-agentic-units/flux/observability"
	"github.com/tailored-agentic-units/flux/persist"
)

// Persisted decorates a Container so that its value survives restarts.
// The initial value is decoded from the cache entry at key when one exists;
// every Set that changes the value is encoded back into the cache. Reads,
// subscriptions and notification are the wrapped container's.
type Persisted[S any] struct {
	Container[S]
	cache    *persist.Cache
	codec    persist.Codec
	key      string
	observer observability.Observer
}

// PersistOptions names the backing cache entry and its encoding.
type PersistOptions struct {
	Cache    *persist.Cache
	Codec    persist.Codec
	Key      string
	Observer observability.Observer
}

// NewPersisted builds the container for name through New, seeding it from
// the cache when possible and falling back to provider otherwise.
func NewPersisted[S any](name string, provider Provider[S], po PersistOptions, opts ...Option[S]) *Persisted[S] {
	p := &Persisted[S]{
		cache:    po.Cache,
		codec:    po.Codec,
		key:      po.Key,
		observer: observability.OrNoOp(po.Observer),
	}
	if p.codec == nil {
		p.codec = persist.JSONCodec{}
	}

	p.Container = New(name, ProviderFunc[S](func() S {
		if v, ok := p.load(); ok {
			return v
		}
		return provider.Provide()
	}), opts...)

	return p
}

func (p *Persisted[S]) load() (S, bool) {
	var v S

	data, ok := p.cache.Get(p.key)
	if !ok {
		return v, false
	}

	if err := p.codec.Unmarshal(data, &v); err != nil {
		p.emitFailure("decode", err)
		var zero S
		return zero, false
	}

	observability.Emit(context.Background(), p.observer, EventPersistLoad, observability.LevelVerbose, "state.Persisted", map[string]any{
		"key":   p.key,
		"bytes": len(data),
	})
	return v, true
}

// Set forwards to the wrapped container and records changed values.
func (p *Persisted[S]) Set(next S) bool {
	if !p.Container.Set(next) {
		return false
	}

	data, err := p.codec.Marshal(next)
	if err != nil {
		p.emitFailure("encode", err)
		return true
	}
	p.cache.Set(p.key, data)
	return true
}

// Restore force-sets v through Set, so restored values are persisted too.
func (p *Persisted[S]) Restore(v any) error {
	next, ok := v.(S)
	if !ok {
		return fmt.Errorf("%w: %s holds %s, got %T", ErrTypeMismatch, p.Name(), p.Type(), v)
	}
	p.Set(next)
	return p.Notify()
}

// Key is the cache key holding this slice.
func (p *Persisted[S]) Key() string {
	return p.key
}

func (p *Persisted[S]) emitFailure(op string, err error) {
	observability.Emit(context.Background(), p.observer, EventPersistFailed, observability.LevelError, "state.Persisted", map[string]any{
		"key":   p.key,
		"op":    op,
		"codec": p.codec.Name(),
		"error": err.Error(),
	})
}
