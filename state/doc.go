// Package state holds the live value of each state slice.
//
// A slice is one state type with exactly one current value, owned by a
// Container. Values are treated as immutable: updaters return a new value
// and the container replaces its current one, so subscribers can compare old
// and new snapshots.
//
//	counter := state.New("counter", state.ProviderFunc[Counter](func() Counter {
//	    return Counter{}
//	}))
//	id := counter.Subscribe(func(c Counter) error {
//	    fmt.Println("count:", c.Count)
//	    return nil
//	})
//	if counter.Set(Counter{Count: 1}) {
//	    counter.Notify()
//	}
//	counter.Unsubscribe(id)
//
// # Change detection
//
// Set compares the next value with the current one and ignores it when they
// are equal. Protobuf messages compare with proto.Equal, types with an
// Equal(S) bool method use it, and everything else uses reflect.DeepEqual.
// Notify always runs, whether or not the last Set changed anything.
//
// # Decorators
//
// Every decorator satisfies Container[S] and wraps another Container[S].
// Persisted is the one shipped here; it saves changed values to a
// persist.Cache and seeds the initial value from it.
package state
