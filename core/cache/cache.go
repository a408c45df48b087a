// Package cache provides a small TTL cache with stampede protection.
//
// Concurrent misses for the same key share a single load through singleflight,
// so a burst of sync sessions asks the server for its capabilities only once.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// entry holds one cached value with its build time.
type entry[V any] struct {
	value V
	built time.Time
}

// Cache is a TTL cache keyed by string.
type Cache[V any] struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]entry[V]
	sf      singleflight.Group
	now     func() time.Time
}

// New creates a cache whose entries live for ttl. A zero ttl disables caching.
func New[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		ttl:     ttl,
		entries: make(map[string]entry[V]),
		now:     time.Now,
	}
}

func (c *Cache[V]) expired(e entry[V]) bool {
	if c.ttl == 0 {
		return true // No caching
	}
	return c.now().Sub(e.built) > c.ttl
}

// GetOrLoad returns the cached value for key, or calls load if it doesn't exist
// or has expired. Failed loads are not cached.
func (c *Cache[V]) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) (V, error)) (V, error) {
	// Fast path: check if entry exists and is fresh
	c.mu.RLock()
	e, exists := c.entries[key]
	c.mu.RUnlock()

	if exists && !c.expired(e) {
		return e.value, nil
	}

	// Slow path: load using singleflight to prevent stampedes
	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		c.mu.RLock()
		e, exists := c.entries[key]
		c.mu.RUnlock()

		if exists && !c.expired(e) {
			return e.value, nil
		}

		v, err := load(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[key] = entry[V]{value: v, built: c.now()}
		c.mu.Unlock()

		return v, nil
	})

	if err != nil {
		var zero V
		return zero, err
	}

	return result.(V), nil
}

// Invalidate removes the entry for key.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}
