package dataservice

import (
	"sync"
	"time"
)

// cacheEntry stores one fetched value with its fetch instant and the
// generation that last touched it. TTL is evaluated at read; an entry read
// within the generation that fetched it is always served, so a TTL expiring
// mid-run never triggers a second provider call for the same key.
type cacheEntry struct {
	value      any
	fetchedAt  time.Time
	generation uint64
}

// memCache is the keyed store behind the data service. Concurrent readers,
// single writer per key (writes funnel through singleflight).
type memCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]cacheEntry)}
}

// get returns the cached value when it is fresh, or was fetched within the
// current generation.
func (c *memCache) get(key string, ttl time.Duration, now time.Time, generation uint64) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if generation != 0 && e.generation == generation {
		return e.value, true
	}
	if now.Sub(e.fetchedAt) < ttl {
		return e.value, true
	}
	return nil, false
}

func (c *memCache) put(key string, value any, now time.Time, generation uint64) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{value: value, fetchedAt: now, generation: generation}
	c.mu.Unlock()
}

// purge drops everything; used when a corrupted cache must be rebuilt from
// providers.
func (c *memCache) purge() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

func (c *memCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
