package operation

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tailored-agentic-units/flux/observability"
	"github.com/tailored-agentic-units/flux/store"
)

// LoadFunc performs the asynchronous work for trigger action A. current is
// the slice value when the load started.
type LoadFunc[A, S, R any] func(ctx context.Context, action A, current S) (R, error)

// Option configures one Register call.
type Option func(*options)

type options struct {
	name     string
	detach   bool
	config   Config
	observer observability.Observer
}

// WithName overrides the operation name, which defaults to the trigger
// action's type name.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithDetach runs the load on its own goroutine so that Dispatch of the
// trigger returns once the slice is Loading. The load's context keeps the
// dispatch's values but not its cancellation. Use Operation.Wait to join.
func WithDetach() Option {
	return func(o *options) { o.detach = true }
}

// WithConfig merges cfg over DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.config.Merge(&cfg) }
}

// WithMaxFailures bounds the FailureLog.
func WithMaxFailures(n int) Option {
	return func(o *options) { o.config.MaxFailures = n }
}

// WithObserver receives the operation's events.
func WithObserver(obs observability.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// Operation is the handle of one registered operation.
type Operation struct {
	name     string
	detach   bool
	observer observability.Observer

	mu       sync.Mutex
	inflight bool
	wg       sync.WaitGroup
	loads    atomic.Int64
}

// Name returns the operation name used in Failure records and events.
func (op *Operation) Name() string { return op.name }

// Loads counts the loads started so far.
func (op *Operation) Loads() int64 { return op.loads.Load() }

// Busy reports whether a load is in flight.
func (op *Operation) Busy() bool {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.inflight
}

// Wait blocks until every started load has finished and its follow-up
// dispatches have returned.
func (op *Operation) Wait() { op.wg.Wait() }

// Register wires an operation triggered by action A that drives slice S
// through Idle, Loading and then Succeeded or Failed.
//
// When A is dispatched and S is Idle, the operation dispatches
// StatusChanged{Loading} and calls load. On success it dispatches
// StatusChanged{Succeeded} followed by Loaded{A, R}. On failure it dispatches
// StatusChanged{Failed} followed by a RecordFailure. While S is not Idle the
// trigger is ignored; dispatch Reset[S] to allow another load.
//
// Load errors never reach the caller of Dispatch.
func Register[A any, S Tracked[S], R any](b *store.Builder, load LoadFunc[A, S, R], opts ...Option) *Operation {
	o := options{
		name:   reflect.TypeFor[A]().String(),
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	op := &Operation{
		name:     o.name,
		detach:   o.detach,
		observer: observability.OrNoOp(o.observer),
	}

	registerStatus[S](b)
	registerFailureLog(b, o.config.MaxFailures)

	store.RegisterAfterEffect(b, func(dc *store.Context[A]) error {
		return run(op, dc, load)
	})

	return op
}

// begin claims the operation for one load. The status check and the claim
// happen under the same lock.
func (op *Operation) begin(status Status) bool {
	op.mu.Lock()
	defer op.mu.Unlock()

	if op.inflight || status != Idle {
		return false
	}
	op.inflight = true
	op.wg.Add(1)
	op.loads.Add(1)
	return true
}

func (op *Operation) end() {
	op.mu.Lock()
	op.inflight = false
	op.mu.Unlock()
	op.wg.Done()
}

func run[A any, S Tracked[S], R any](op *Operation, dc *store.Context[A], load LoadFunc[A, S, R]) error {
	ctx := dc.Context()

	before, _ := store.StateOf[S](dc)
	if !op.begin(before.OpStatus()) {
		op.emit(ctx, EventSkipped, observability.LevelVerbose, map[string]any{
			"dispatch_id": dc.ID(),
			"status":      before.OpStatus().String(),
		})
		return nil
	}

	if err := dc.Dispatch(StatusChanged[S]{Status: Loading}); err != nil {
		op.end()
		return err
	}

	op.emit(ctx, EventLoadStart, observability.LevelInfo, map[string]any{
		"dispatch_id": dc.ID(),
	})

	if op.detach {
		go func() {
			defer op.end()
			if err := complete(op, dc, context.WithoutCancel(ctx), before, load); err != nil {
				op.emit(ctx, EventDispatchError, observability.LevelError, map[string]any{
					"dispatch_id": dc.ID(),
					"error":       err.Error(),
				})
			}
		}()
		return nil
	}

	defer op.end()
	return complete(op, dc, ctx, before, load)
}

// complete runs the load and dispatches its outcome. The returned error
// comes only from those follow-up dispatches.
func complete[A any, S Tracked[S], R any](op *Operation, dc *store.Context[A], ctx context.Context, before S, load LoadFunc[A, S, R]) error {
	started := time.Now()
	result, loadErr := load(ctx, dc.Action(), before)

	if loadErr == nil {
		op.emit(ctx, EventLoadSucceeded, observability.LevelInfo, map[string]any{
			"dispatch_id": dc.ID(),
			"duration":    time.Since(started).String(),
		})
		if err := dc.Dispatch(StatusChanged[S]{Status: Succeeded}); err != nil {
			return err
		}
		return dc.Dispatch(Loaded[A, R]{Trigger: dc.Action(), Result: result})
	}

	op.emit(ctx, EventLoadFailed, observability.LevelWarning, map[string]any{
		"dispatch_id": dc.ID(),
		"duration":    time.Since(started).String(),
		"error":       loadErr.Error(),
	})

	statusErr := dc.Dispatch(StatusChanged[S]{Status: Failed})
	after, _ := store.StateOf[S](dc)

	recordErr := dc.Dispatch(RecordFailure{Failure: Failure{
		Operation:  op.name,
		Trigger:    dc.Action(),
		Before:     before,
		After:      after,
		Err:        loadErr,
		DispatchID: dc.ID(),
		At:         time.Now(),
	}})

	return errors.Join(statusErr, recordErr)
}

func (op *Operation) emit(ctx context.Context, typ observability.EventType, level observability.Level, data map[string]any) {
	observability.Emit(ctx, op.observer, typ, level, "operation."+op.name, data)
}
