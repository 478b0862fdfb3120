// Package swrcache provides a TTL cache with stale-while-revalidate reads,
// shared by the service-key and persona-policy hot paths.
package swrcache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Cache is a TTL-based in-memory cache. Uses sync.Map for lock-free reads
// on the hot path.
//
// Stale-while-revalidate: when an entry expires, Get() still returns the
// stale value immediately and signals exactly one caller to refresh it in
// the background, so no read ever blocks on the backing store after the
// first cold start.
type Cache[V any] struct {
	store sync.Map // map[string]*entry[V]
	ttl   time.Duration
}

type entry[V any] struct {
	value      V
	expiresAt  time.Time
	refreshing atomic.Bool // prevents duplicate background refreshes
}

// New creates a cache with the given TTL.
func New[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{ttl: ttl}
}

// Result holds the result of a cache lookup.
type Result[V any] struct {
	Value        V
	Hit          bool // true if a value was found (fresh or stale)
	NeedsRefresh bool // true if expired — caller should refresh in background
}

// Get looks up a key.
//
// Returns:
//   - Fresh hit:  {Value, Hit=true,  NeedsRefresh=false}
//   - Stale hit:  {Value, Hit=true,  NeedsRefresh=true}
//   - Miss:       {zero,  Hit=false, NeedsRefresh=false}
//
// A stored zero value is a valid hit, which lets callers cache negative
// lookups. The refreshing flag is set atomically so only one goroutine
// refreshes per key.
func (c *Cache[V]) Get(key string) Result[V] {
	val, ok := c.store.Load(key)
	if !ok {
		return Result[V]{}
	}

	e := val.(*entry[V])
	if time.Now().Before(e.expiresAt) {
		return Result[V]{Value: e.value, Hit: true}
	}

	// Stale hit — return the value but signal refresh needed.
	needsRefresh := e.refreshing.CompareAndSwap(false, true)
	return Result[V]{
		Value:        e.value,
		Hit:          true,
		NeedsRefresh: needsRefresh,
	}
}

// Set stores a value with a fresh TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.store.Store(key, &entry[V]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// Delete removes an entry. A failed background refresh must call this so
// the next stale read retries the backing store; the entry's refresh flag
// is never re-armed otherwise.
func (c *Cache[V]) Delete(key string) {
	c.store.Delete(key)
}
