package persist

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
)

type memoryStore struct {
	entries map[string][]byte
	mu      sync.RWMutex
}

// NewMemoryStore returns a Store that keeps entries in process memory.
// Contents are lost on exit; it backs tests and the ":memory:" path.
func NewMemoryStore() Store {
	return &memoryStore{entries: make(map[string][]byte)}
}

func (s *memoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *memoryStore) Load(_ context.Context, keys ...string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loaded := make([]Entry, 0, len(keys))
	for _, key := range keys {
		value, ok := s.entries[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
		}
		loaded = append(loaded, Entry{Key: key, Value: slices.Clone(value)})
	}
	return loaded, nil
}

func (s *memoryStore) Save(_ context.Context, entries ...Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		s.entries[e.Key] = slices.Clone(e.Value)
	}
	return nil
}

func (s *memoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.entries, key)
	}
	return nil
}
