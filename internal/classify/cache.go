package classify

import (
	"sync"
	"time"

	"github.com/ballisticintel/pipeline/internal/models"
)

// DefaultCacheTTL is how long a classification stays reusable.
const DefaultCacheTTL = time.Hour

// Fingerprint derives the cache key for a prepared context string.
func Fingerprint(context string) string {
	return models.ShortHash(context)
}

// Cache is an in-memory TTL cache keyed by content fingerprint. Each
// classifier owns one instance; entries expire lazily on read and a
// background sweep clears them out.
type Cache[T any] struct {
	mu       sync.RWMutex
	data     map[string]cacheEntry[T]
	ttl      time.Duration
	stopChan chan struct{}
	stopped  bool

	now func() time.Time
}

type cacheEntry[T any] struct {
	value     T
	expiresAt time.Time
}

// NewCache creates a cache with the given TTL and starts its sweep
// goroutine. Call Close when done.
func NewCache[T any](ttl time.Duration) *Cache[T] {
	c := &Cache[T]{
		data:     make(map[string]cacheEntry[T]),
		ttl:      ttl,
		stopChan: make(chan struct{}),
		now:      time.Now,
	}
	go c.sweep()
	return c
}

// Get returns the cached value when present and not expired.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero T
	e, ok := c.data[key]
	if !ok || c.now().After(e.expiresAt) {
		return zero, false
	}
	return e.value, true
}

// Set stores a value under key for the cache TTL.
func (c *Cache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}
	c.data[key] = cacheEntry[T]{value: value, expiresAt: c.now().Add(c.ttl)}
}

// Len returns the number of entries, including not-yet-swept expired ones.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Clear drops all entries.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]cacheEntry[T])
}

// Close stops the sweep goroutine and releases the data.
func (c *Cache[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.stopped {
		c.stopped = true
		close(c.stopChan)
		c.data = nil
	}
}

func (c *Cache[T]) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.mu.Lock()
			if !c.stopped {
				now := c.now()
				for key, e := range c.data {
					if now.After(e.expiresAt) {
						delete(c.data, key)
					}
				}
			}
			c.mu.Unlock()
		}
	}
}
