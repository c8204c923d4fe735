// Package cache memoizes expensive lookups in a bounded, time-expiring,
// in-process store.
//
// Entries are evicted in insertion order once the cache is full; reads never
// change that order. Expired entries are not removed on read: they keep
// occupying a capacity slot until they are overwritten, evicted, or deleted.
package cache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

var (
	ErrInvalidCapacity = errors.New("cache: capacity must be positive")
	ErrInvalidTTL      = errors.New("cache: ttl must not be negative")
)

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Cache is a fixed-capacity store with FIFO eviction and a TTL.
//
// The ordered map keeps each key exactly once; it is only read through Peek
// and Contains so that access never reorders it. An overwrite moves the key to
// the newest position.
type Cache[K comparable, V any] struct {
	mu       sync.RWMutex
	entries  *simplelru.LRU[K, entry[V]]
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// New builds a Cache. It fails when Capacity is not positive or TTL is
// negative.
func New[K comparable, V any](opts Options) (*Cache[K, V], error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	entries, err := simplelru.NewLRU[K, entry[V]](opts.Capacity, nil)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return &Cache[K, V]{
		entries:  entries,
		capacity: opts.Capacity,
		ttl:      opts.TTL,
		now:      opts.clock(),
	}, nil
}

// Get returns the value stored for key if it is younger than the TTL.
// Expired entries are reported as absent but left in place.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries.Peek(key)
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.storedAt) > c.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, evicting the oldest inserted entry first when a
// new key would exceed the capacity.
func (c *Cache[K, V]) Set(key K, value V) {
	c.set(key, value)
}

func (c *Cache[K, V]) set(key K, value V) (victim K, evicted bool) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.entries.Contains(key) && c.entries.Len() >= c.capacity {
		victim, _, evicted = c.entries.RemoveOldest()
	}
	c.entries.Add(key, entry[V]{value: value, storedAt: now})
	return victim, evicted
}

// Delete removes key. Deleting an absent key is a no-op.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	c.entries.Remove(key)
	c.mu.Unlock()
}

// Len reports the number of tracked entries, expired ones included.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries.Len()
}

// Keys returns the tracked keys oldest first, which is eviction order.
func (c *Cache[K, V]) Keys() []K {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries.Keys()
}

func (c *Cache[K, V]) Capacity() int { return c.capacity }

func (c *Cache[K, V]) TTL() time.Duration { return c.ttl }
