package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache is a time-boxed in-memory cache with atomic take semantics.
// A background sweep evicts entries abandoned past their TTL so the map does
// not grow without bound.
type TTLCache[V any] struct {
	mu        sync.Mutex
	items     map[string]entry[V]
	ttl       time.Duration
	stop      chan struct{}
	closeOnce sync.Once
}

// NewTTLCache creates a cache whose entries live for ttl; sweepInterval bounds
// how long an abandoned entry can outlive its TTL.
func NewTTLCache[V any](ttl, sweepInterval time.Duration) *TTLCache[V] {
	c := &TTLCache[V]{
		items: make(map[string]entry[V]),
		ttl:   ttl,
		stop:  make(chan struct{}),
	}
	go c.sweep(sweepInterval)
	return c
}

// Put stores value under key with the cache's TTL, replacing any previous entry.
func (c *TTLCache[V]) Put(key string, value V) {
	c.mu.Lock()
	c.items[key] = entry[V]{value: value, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// Take atomically removes and returns the entry for key. Expired entries are
// treated as absent even if the sweep has not collected them yet.
func (c *TTLCache[V]) Take(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	delete(c.items, key)
	if time.Now().After(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Len returns the current number of entries, expired or not.
func (c *TTLCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Close stops the background sweep.
func (c *TTLCache[V]) Close() {
	c.closeOnce.Do(func() { close(c.stop) })
}

func (c *TTLCache[V]) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for k, e := range c.items {
				if now.After(e.expiresAt) {
					delete(c.items, k)
				}
			}
			c.mu.Unlock()
		}
	}
}
