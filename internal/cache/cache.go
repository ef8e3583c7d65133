// Package cache provides a read-through cache for immutable reference data.
package cache

import (
	"context"
	"sync"
)

// LoadFunc produces the value for a key on a miss.
type LoadFunc[V any] func(ctx context.Context) (V, error)

// Cache populates each key lazily on first use. Loads run outside the lock,
// so two callers missing the same key may both load; the first value stored
// wins and is returned to both. Errors are never cached.
type Cache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
}

// New returns an empty cache.
func New[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{entries: make(map[K]V)}
}

// Get returns the cached value for key, calling load on a miss.
func (c *Cache[K, V]) Get(ctx context.Context, key K, load LoadFunc[V]) (V, error) {
	c.mu.RLock()
	v, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}

	loaded, err := load(ctx)
	if err != nil {
		var zero V
		return zero, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok = c.entries[key]; ok {
		return v, nil
	}
	c.entries[key] = loaded
	return loaded, nil
}

// Len returns the number of cached keys.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
