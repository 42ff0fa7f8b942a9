// Package store implements a unidirectional state store.
//
// State lives in typed slices (see package state). Nothing mutates a slice
// directly: callers dispatch actions, and each dispatch passes through three
// stages in fixed order.
//
//  1. Interceptors see the action first and may reject it.
//  2. Updaters compute the next value of one slice each. Changed slices are
//     notified once at the end of the stage.
//  3. After-effects run last. This is where follow-up dispatches and
//     asynchronous work belong.
//
// Registration happens on a Builder and is validated as a whole by Build:
//
//	type Counter struct{ Count int }
//
//	type Increment struct {
//		store.Target[Counter]
//	}
//
//	b := store.NewBuilder(nil)
//	store.RegisterState(b, state.Value(Counter{}))
//	store.RegisterUpdater(b, func(_ Increment, c Counter) Counter {
//		return Counter{Count: c.Count + 1}
//	})
//
//	st, err := b.Build(ctx)
//	if err != nil {
//		return err
//	}
//	counter, _ := store.Select[Counter](st)
//	counter.Subscribe(func(c Counter) error {
//		fmt.Println(c.Count)
//		return nil
//	})
//	err = st.Dispatch(ctx, Increment{})
//
// # Short-circuiting
//
// Every unit receives the dispatch's Context, which embeds a Control with one
// stop flag per stage. Raising a flag skips the remaining units of that stage
// only; the next stage still runs. Cancel raises all three and cancels
// dc.Context(). Skipping updaters, whether through Cancel, StopHandling or
// the caller's context, makes Dispatch return a *CancelledError. Slices that
// had already changed are notified before it is returned.
//
// # Hooks
//
// Hooks observe every unit of work at six points (before and after each
// interceptor, updater and after-effect). They receive the same Control as
// the units and may stop or cancel the dispatch through it.
//
// # Persistence
//
// States registered WithPersistence are decorated with state.Persisted and
// cached in memory. Flush writes them to the persist.Store named in
// Config.Persist, or after every dispatch when FlushOnDispatch is set.
package store
