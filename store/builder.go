package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/tailored-agentic-units/flux/observability"
	"github.com/tailored-agentic-units/flux/persist"
	"github.com/tailored-agentic-units/flux/state"
)

// Option overrides a collaborator that Build would otherwise resolve from
// Config.
type Option func(*Builder)

// WithObserver replaces the configured observer.
func WithObserver(obs observability.Observer) Option {
	return func(b *Builder) { b.observer = obs }
}

// WithTracer replaces the tracer for dispatch spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(b *Builder) { b.tracer = tracer }
}

// WithPersistStore replaces the store named by Config.Persist.Path.
func WithPersistStore(ps persist.Store) Option {
	return func(b *Builder) { b.persistStore = ps }
}

// Builder collects registrations and produces a Store. Registration
// mistakes are collected and reported together by Build, so registration
// calls do not return errors. A Builder is not safe for concurrent use.
type Builder struct {
	cfg          Config
	observer     observability.Observer
	tracer       trace.Tracer
	persistStore persist.Store

	states     []stateEntry
	stateIndex map[reflect.Type]int
	pipelines  map[reflect.Type]actionPipeline
	actions    []reflect.Type
	hooks      map[HookPoint][]Hook

	errs   []error
	sealed bool
}

type stateEntry struct {
	typ     reflect.Type
	name    string
	persist bool
	build   func(env buildEnv) (state.Slice, error)
}

type buildEnv struct {
	observer observability.Observer
	cache    *persist.Cache
	codec    persist.Codec
	key      func(name string) string
}

// NewBuilder starts a registration. A nil cfg means DefaultConfig.
func NewBuilder(cfg *Config, opts ...Option) *Builder {
	b := &Builder{
		cfg:        DefaultConfig(),
		stateIndex: make(map[reflect.Type]int),
		pipelines:  make(map[reflect.Type]actionPipeline),
		hooks:      make(map[HookPoint][]Hook),
	}
	if cfg != nil {
		b.cfg = *cfg
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Builder) fail(t reflect.Type, err error) {
	b.errs = append(b.errs, &RegistrationError{Type: t, Err: err})
}

func (b *Builder) open(t reflect.Type) bool {
	if b.sealed {
		b.fail(t, ErrSealed)
		return false
	}
	return true
}

// UseHook adds a hook at point. Hooks at the same point run in the order
// they were added.
func (b *Builder) UseHook(point HookPoint, hook Hook) {
	if hook == nil || !b.open(reflect.TypeFor[Hook]()) {
		return
	}
	b.hooks[point] = append(b.hooks[point], hook)
}

// StateOption adjusts one RegisterState call.
type StateOption func(*stateOptions)

type stateOptions struct {
	name    string
	persist bool
	equal   any
}

// WithName overrides the slice name, which defaults to the state type's
// package-qualified name (e.g. "counter.State").
func WithName(name string) StateOption {
	return func(o *stateOptions) { o.name = name }
}

// WithPersistence wraps the slice's container in state.Persisted.
func WithPersistence() StateOption {
	return func(o *stateOptions) { o.persist = true }
}

// WithEqual replaces the slice's value comparison.
func WithEqual[S any](eq state.Equal[S]) StateOption {
	return func(o *stateOptions) { o.equal = eq }
}

// RegisterState declares slice S with its initial-state provider.
//
// Build fails with ErrMissingInitialState for a nil provider, with
// ErrInvalidStateType when S cannot hold a value (interface, func, chan,
// unsafe pointer) or the provider yields a nil pointer, map or slice, and
// with ErrDuplicateState when S is registered twice.
func RegisterState[S any](b *Builder, provider state.Provider[S], opts ...StateOption) {
	t := reflect.TypeFor[S]()
	if !b.open(t) {
		return
	}

	if err := validStateType(t); err != nil {
		b.fail(t, err)
		return
	}
	if provider == nil {
		b.fail(t, fmt.Errorf("%w: %s", ErrMissingInitialState, t))
		return
	}
	if _, exists := b.stateIndex[t]; exists {
		b.fail(t, fmt.Errorf("%w: %s", ErrDuplicateState, t))
		return
	}

	o := stateOptions{name: t.String()}
	for _, opt := range opts {
		opt(&o)
	}

	var copts []state.Option[S]
	if o.equal != nil {
		eq, ok := o.equal.(state.Equal[S])
		if !ok {
			b.fail(t, fmt.Errorf("%w: equality function is for %T", ErrInvalidStateType, o.equal))
			return
		}
		copts = append(copts, state.WithEqual(eq))
	}

	entry := stateEntry{
		typ:     t,
		name:    o.name,
		persist: o.persist,
	}
	entry.build = func(env buildEnv) (state.Slice, error) {
		sopts := append(copts, state.WithObserver[S](env.observer))

		var c state.Container[S]
		if o.persist {
			c = state.NewPersisted(o.name, provider, state.PersistOptions{
				Cache:    env.cache,
				Codec:    env.codec,
				Key:      env.key(o.name),
				Observer: env.observer,
			}, sopts...)
		} else {
			c = state.New(o.name, provider, sopts...)
		}

		if isNilValue(reflect.ValueOf(any(c.Current())), t) {
			return nil, fmt.Errorf("%w: provider for %s produced a nil value", ErrInvalidStateType, t)
		}
		return c, nil
	}

	b.stateIndex[t] = len(b.states)
	b.states = append(b.states, entry)
}

// HasState reports whether S has been registered.
func HasState[S any](b *Builder) bool {
	_, ok := b.stateIndex[reflect.TypeFor[S]()]
	return ok
}

// HasUpdater reports whether an updater of slice S is registered for A.
func HasUpdater[A, S any](b *Builder) bool {
	p, ok := b.pipelines[reflect.TypeFor[A]()]
	if !ok {
		return false
	}
	st := reflect.TypeFor[S]()
	for _, u := range p.(*pipeline[A]).updaters {
		if u.stateType() == st {
			return true
		}
	}
	return false
}

// RegisterUpdater adds an updater of slice S for action A. Updaters for the
// same action run in registration order, across all slices. If A embeds
// Target[T], S must be T.
func RegisterUpdater[A, S any](b *Builder, fn Updater[A, S]) {
	at, st := reflect.TypeFor[A](), reflect.TypeFor[S]()
	if !b.open(at) {
		return
	}
	if fn == nil {
		b.fail(at, fmt.Errorf("nil updater for %s", st))
		return
	}
	if target, scoped := targetOf(at); scoped && target != st {
		b.fail(at, fmt.Errorf("%w: action targets %s, updater is for %s", ErrInvalidStateType, target, st))
		return
	}

	p, ok := pipelineFor[A](b)
	if !ok {
		return
	}
	p.updaters = append(p.updaters, &boundUpdater[A, S]{fn: fn, typ: st})
}

// RegisterInterceptor adds an interceptor for action A.
func RegisterInterceptor[A any](b *Builder, fn Interceptor[A]) {
	at := reflect.TypeFor[A]()
	if !b.open(at) {
		return
	}
	if fn == nil {
		b.fail(at, errors.New("nil interceptor"))
		return
	}
	if p, ok := pipelineFor[A](b); ok {
		p.interceptors = append(p.interceptors, fn)
	}
}

// RegisterAfterEffect adds an after-effect for action A.
func RegisterAfterEffect[A any](b *Builder, fn AfterEffect[A]) {
	at := reflect.TypeFor[A]()
	if !b.open(at) {
		return
	}
	if fn == nil {
		b.fail(at, errors.New("nil after-effect"))
		return
	}
	if p, ok := pipelineFor[A](b); ok {
		p.effects = append(p.effects, fn)
	}
}

func pipelineFor[A any](b *Builder) (*pipeline[A], bool) {
	t := reflect.TypeFor[A]()
	if existing, ok := b.pipelines[t]; ok {
		return existing.(*pipeline[A]), true
	}

	switch t.Kind() {
	case reflect.Interface, reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Invalid:
		b.fail(t, fmt.Errorf("%w: %s actions cannot be dispatched by concrete type", ErrInvalidActionType, t.Kind()))
		return nil, false
	}

	p := &pipeline[A]{name: t.String()}
	b.pipelines[t] = p
	b.actions = append(b.actions, t)
	return p, true
}

// Build validates the registrations and produces the Store. Nothing can be
// dispatched until Build succeeds; on failure every registration error is
// returned, joined. A Builder builds once.
func (b *Builder) Build(ctx context.Context) (*Store, error) {
	if b.sealed {
		return nil, ErrSealed
	}
	b.sealed = true

	errs := append([]error(nil), b.errs...)

	observer := b.observer
	if observer == nil {
		if b.cfg.Observer == "" {
			observer = observability.NoOpObserver{}
		} else {
			obs, err := observability.GetObserver(b.cfg.Observer)
			if err != nil {
				errs = append(errs, err)
				obs = observability.NoOpObserver{}
			}
			observer = obs
		}
	}

	tracer := b.tracer
	if tracer == nil {
		name := b.cfg.Tracer
		if name == "" {
			name = DefaultTracer
		}
		tracer = otel.Tracer(name)
	}

	env := buildEnv{observer: observer, key: b.cfg.Persist.Key}
	if b.wantsPersistence() {
		cache, codec, err := b.openPersistence(ctx)
		if err != nil {
			errs = append(errs, err)
		}
		env.cache, env.codec = cache, codec
	}

	s := &Store{
		name:            b.cfg.Name,
		observer:        observer,
		tracer:          tracer,
		pipelines:       b.pipelines,
		hooks:           b.hooks,
		byType:          make(map[reflect.Type]state.Slice, len(b.states)),
		byName:          make(map[string]state.Slice, len(b.states)),
		cache:           env.cache,
		flushOnDispatch: b.cfg.FlushOnDispatch,
	}

	for _, entry := range b.states {
		if entry.persist && env.cache == nil {
			errs = append(errs, &RegistrationError{Type: entry.typ, Err: ErrNoPersistStore})
			continue
		}
		if _, taken := s.byName[entry.name]; taken {
			errs = append(errs, &RegistrationError{Type: entry.typ, Err: fmt.Errorf("%w: name %q", ErrDuplicateState, entry.name)})
			continue
		}

		slice, err := entry.build(env)
		if err != nil {
			errs = append(errs, &RegistrationError{Type: entry.typ, Err: err})
			continue
		}
		s.slices = append(s.slices, slice)
		s.byType[entry.typ] = slice
		s.byName[entry.name] = slice
	}

	for _, t := range b.actions {
		errs = append(errs, b.pipelines[t].bind(s.byType)...)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	interceptors, updaters, effects := 0, 0, 0
	for _, p := range b.pipelines {
		i, u, e := p.size()
		interceptors, updaters, effects = interceptors+i, updaters+u, effects+e
	}
	s.emit(ctx, EventBuild, observability.LevelInfo, map[string]any{
		"slices":       len(s.slices),
		"actions":      len(b.actions),
		"interceptors": interceptors,
		"updaters":     updaters,
		"effects":      effects,
		"persisted":    env.cache != nil,
	})

	return s, nil
}

func (b *Builder) wantsPersistence() bool {
	if b.persistStore != nil || b.cfg.Persist.Enabled() {
		return true
	}
	return false
}

func (b *Builder) openPersistence(ctx context.Context) (*persist.Cache, persist.Codec, error) {
	ps := b.persistStore
	if ps == nil {
		var err error
		if ps, err = persist.NewStore(&b.cfg.Persist); err != nil {
			return nil, nil, err
		}
	}

	codecName := b.cfg.Persist.Codec
	if codecName == "" {
		codecName = "json"
	}
	codec, err := persist.GetCodec(codecName)
	if err != nil {
		return nil, nil, err
	}

	cache := persist.NewCache(ps)
	if err := cache.Bootstrap(ctx, b.cfg.Persist.Prefix); err != nil {
		return nil, nil, err
	}
	return cache, codec, nil
}

func validStateType(t reflect.Type) error {
	switch t.Kind() {
	case reflect.Interface, reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Invalid:
		return fmt.Errorf("%w: %s is a %s", ErrInvalidStateType, t, t.Kind())
	}
	return nil
}

func isNilValue(v reflect.Value, t reflect.Type) bool {
	if !v.IsValid() {
		return true
	}
	switch t.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		return v.IsNil()
	}
	return false
}
