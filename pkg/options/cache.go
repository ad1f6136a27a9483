package options

import (
	"context"
	"sync"
)

// Cache stores entities resolved by id. Entries never expire: the identity
// of an entity referenced by id does not change during a session.
type Cache interface {
	Get(ctx context.Context, kind, id string) (Entity, bool, error)
	Set(ctx context.Context, kind, id string, e Entity) error
}

// MemoryCache is a process-local Cache
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entity
}

// NewMemoryCache creates an empty in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Entity)}
}

// Get implements Cache
func (c *MemoryCache) Get(_ context.Context, kind, id string) (Entity, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[CacheKey(kind, id)]
	return e, ok, nil
}

// Set implements Cache
func (c *MemoryCache) Set(_ context.Context, kind, id string, e Entity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[CacheKey(kind, id)] = e
	return nil
}

// Len returns the number of cached entities
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// CacheKey is the storage key for (kind, id)
func CacheKey(kind, id string) string {
	return "entity:" + kind + ":" + id
}

// Count implements the cache size gauge
func (c *MemoryCache) Count(context.Context) (int64, error) {
	return int64(c.Len()), nil
}
