package persist

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
)

// Cache buffers slice writes in memory until Flush pushes them to the
// Store. Reads never touch the Store. All methods are safe for concurrent use.
type Cache struct {
	store   Store
	values  map[string][]byte
	dirty   map[string]bool
	removed map[string]bool
	mu      sync.RWMutex
}

// NewCache creates an empty Cache over store.
func NewCache(store Store) *Cache {
	return &Cache{
		store:   store,
		values:  make(map[string][]byte),
		dirty:   make(map[string]bool),
		removed: make(map[string]bool),
	}
}

// Bootstrap loads every stored key that starts with prefix. It runs once
// while the store is being built, before any container reads its
// initial value.
func (c *Cache) Bootstrap(ctx context.Context, prefix string) error {
	keys, err := c.store.List(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap list: %w", err)
	}

	var wanted []string
	for _, key := range keys {
		if strings.HasPrefix(key, prefix) {
			wanted = append(wanted, key)
		}
	}
	if len(wanted) == 0 {
		return nil
	}

	entries, err := c.store.Load(ctx, wanted...)
	if err != nil {
		return fmt.Errorf("bootstrap load: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		if !c.dirty[e.Key] {
			c.values[e.Key] = e.Value
		}
	}
	return nil
}

// Get returns a copy of the cached value for key.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, ok := c.values[key]
	if !ok {
		return nil, false
	}
	return slices.Clone(value), true
}

// Set stores value and marks key for the next Flush.
func (c *Cache) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.values[key] = slices.Clone(value)
	c.dirty[key] = true
	delete(c.removed, key)
}

// Delete drops key and schedules its removal from the Store.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.values, key)
	delete(c.dirty, key)
	c.removed[key] = true
}

// Pending lists keys with unflushed writes or deletes, sorted.
func (c *Cache) Pending() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.dirty)+len(c.removed))
	for key := range c.dirty {
		keys = append(keys, key)
	}
	for key := range c.removed {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Flush saves dirty keys and deletes removed ones. A key written again
// while Flush is in progress stays dirty for the next call.
func (c *Cache) Flush(ctx context.Context) error {
	c.mu.RLock()
	saves := make([]Entry, 0, len(c.dirty))
	for key := range c.dirty {
		saves = append(saves, Entry{Key: key, Value: slices.Clone(c.values[key])})
	}
	deletes := make([]string, 0, len(c.removed))
	for key := range c.removed {
		deletes = append(deletes, key)
	}
	c.mu.RUnlock()

	if len(saves) > 0 {
		if err := c.store.Save(ctx, saves...); err != nil {
			return fmt.Errorf("flush save: %w", err)
		}
	}
	if len(deletes) > 0 {
		if err := c.store.Delete(ctx, deletes...); err != nil {
			return fmt.Errorf("flush delete: %w", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range saves {
		if current, ok := c.values[e.Key]; ok && slices.Equal(current, e.Value) {
			delete(c.dirty, e.Key)
		}
	}
	for _, key := range deletes {
		if _, back := c.values[key]; !back {
			delete(c.removed, key)
		}
	}
	return nil
}
