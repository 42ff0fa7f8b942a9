// Package persist stores encoded state slices in a key-value backend. The
// state package's persistence decorator reads a slice's saved value when its
// container is built and writes every changed value back through a Cache.
package persist

import "context"

// Store moves encoded slices between the process and durable storage.
// Implementations do no caching of their own; Cache layers buffering on top.
type Store interface {
	// List returns every key held by the store.
	List(ctx context.Context) ([]string, error)
	// Load returns the entries for keys, failing with ErrKeyNotFound when
	// any key is absent.
	Load(ctx context.Context, keys ...string) ([]Entry, error)
	// Save creates or overwrites entries.
	Save(ctx context.Context, entries ...Entry) error
	// Delete removes keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}

// Entry is one encoded slice. Keys are /-separated paths such as
// "states/counter.State".
type Entry struct {
	Key   string
	Value []byte
}
