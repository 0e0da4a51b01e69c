package cache

import (
	"context"
	"sync"
	"time"

	"github.com/boodschap/backend/internal/domain"
)

// cacheItem represents a single search result in the cache with expiration
type cacheItem struct {
	Value      *domain.SearchResult
	Expiration time.Time
}

// MemoryOptions tune the in-memory cache
type MemoryOptions struct {
	// SweepInterval enables a background sweep of expired entries when > 0
	SweepInterval time.Duration
	// MaxEntries caps the number of entries when > 0
	MaxEntries int
}

// MemoryCache is a thread-safe in-memory search result cache with TTL support.
// Expiry is checked on read; values are copied in and out.
type MemoryCache struct {
	data       map[string]cacheItem
	mutex      sync.RWMutex
	maxEntries int
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(opts MemoryOptions) *MemoryCache {
	cache := &MemoryCache{
		data:       make(map[string]cacheItem),
		maxEntries: opts.MaxEntries,
		now:        time.Now,
		stop:       make(chan struct{}),
	}

	if opts.SweepInterval > 0 {
		go cache.cleanupExpired(opts.SweepInterval)
	}

	return cache
}

// Get retrieves a copy of a cached result
func (c *MemoryCache) Get(ctx context.Context, key string) (*domain.SearchResult, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, exists := c.data[key]
	if !exists {
		return nil, domain.ErrCacheMiss
	}

	// Check if expired
	if !c.now().Before(item.Expiration) {
		return nil, domain.ErrCacheMiss
	}

	return item.Value.Clone(), nil
}

// Set replaces the entry for key with a copy of value
func (c *MemoryCache) Set(ctx context.Context, key string, value *domain.SearchResult, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	stored := value.Clone()

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, exists := c.data[key]; !exists && c.maxEntries > 0 && len(c.data) >= c.maxEntries {
		c.evictLocked()
	}

	c.data[key] = cacheItem{
		Value:      stored,
		Expiration: c.now().Add(ttl),
	}

	return nil
}

// evictLocked drops expired entries, then the entry closest to expiry if still full
func (c *MemoryCache) evictLocked() {
	now := c.now()
	for key, item := range c.data {
		if !now.Before(item.Expiration) {
			delete(c.data, key)
		}
	}
	if len(c.data) < c.maxEntries {
		return
	}

	var oldestKey string
	var oldest time.Time
	for key, item := range c.data {
		if oldestKey == "" || item.Expiration.Before(oldest) {
			oldestKey, oldest = key, item.Expiration
		}
	}
	delete(c.data, oldestKey)
}

// Delete removes a value from the cache
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.data, key)
	return nil
}

// cleanupExpired removes expired entries from the cache periodically
func (c *MemoryCache) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *MemoryCache) sweep() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	now := c.now()
	for key, item := range c.data {
		if !now.Before(item.Expiration) {
			delete(c.data, key)
		}
	}
}

// Close stops the background sweep
func (c *MemoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

// Size returns the current number of items in the cache (for debugging/monitoring)
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}

// Clear removes all items from the cache
func (c *MemoryCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.data = make(map[string]cacheItem)
}
