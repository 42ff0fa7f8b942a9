package main

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/tailored-agentic-units/flux/observability"
	"github.com/tailored-agentic-units/flux/operation"
	"github.com/tailored-agentic-units/flux/state"
	"github.com/tailored-agentic-units/flux/store"
)

// Counter is the only slice. Status tracks the load command.
type Counter struct {
	Count  int              `json:"count"`
	Status operation.Status `json:"status"`
}

func (c Counter) OpStatus() operation.Status { return c.Status }

func (c Counter) WithOpStatus(s operation.Status) Counter {
	c.Status = s
	return c
}

type Increment struct {
	store.Target[Counter]
}

type Decrement struct {
	store.Target[Counter]
}

// Load fetches a starting count from a pretend remote source.
type Load struct{}

var errRemoteUnavailable = errors.New("remote counter unavailable")

type app struct {
	store *store.Store
	load  *operation.Operation
}

func newApp(ctx context.Context, cfg *config, observer observability.Observer, fail bool) (*app, error) {
	b := store.NewBuilder(&cfg.Store, store.WithObserver(observer))

	var stateOpts []store.StateOption
	stateOpts = append(stateOpts, store.WithName("counter"))
	if cfg.Store.Persist.Enabled() {
		stateOpts = append(stateOpts, store.WithPersistence())
	}
	store.RegisterState(b, state.Value(Counter{}), stateOpts...)

	store.RegisterUpdater(b, func(_ Increment, c Counter) Counter {
		c.Count++
		return c
	})
	store.RegisterUpdater(b, func(_ Decrement, c Counter) Counter {
		c.Count--
		return c
	})
	store.RegisterUpdater(b, func(a operation.Loaded[Load, int], c Counter) Counter {
		c.Count = a.Result
		return c
	})

	// The count is about to be replaced; editing it now would be lost.
	store.RegisterInterceptor(b, func(dc *store.Context[Decrement]) error {
		if c, _ := store.StateOf[Counter](dc); c.Status == operation.Loading {
			dc.Cancel()
		}
		return nil
	})

	delay := cfg.LoadDelay.Duration
	load := operation.Register(b, func(ctx context.Context, _ Load, _ Counter) (int, error) {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return 0, context.Cause(ctx)
		}
		if fail {
			return 0, errRemoteUnavailable
		}
		return rand.IntN(100), nil
	},
		operation.WithName("load"),
		operation.WithConfig(cfg.Operation),
		operation.WithObserver(observer),
	)

	st, err := b.Build(ctx)
	if err != nil {
		return nil, err
	}
	return &app{store: st, load: load}, nil
}
