// Package cache provides a thread-safe in-memory response cache with
// per-entry TTL expiration and a bounded capacity. Eviction prefers entries
// with the lowest hit count, falling back to insertion order on ties —
// cached AI responses are reused in bursts rather than in a sliding window,
// so access frequency is a better eviction signal than recency.
package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	createdAt time.Time
	expiresAt time.Time
	hits      uint64
	seq       uint64 // insertion order, used as the eviction tie-break
}

// Cache is a capacity-bounded TTL cache keyed by string.
//
// Callers are responsible for key normalization: semantically equal requests
// must collide to the same key before Get/Set is called.
type Cache[T any] struct {
	mu         sync.Mutex
	entries    map[string]*entry[T]
	capacity   int
	defaultTTL time.Duration

	hits      uint64
	misses    uint64
	evictions uint64
	seq       uint64

	now func() time.Time
}

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Evictions uint64  `json:"evictions"` // live entries removed to make room
	Size      int     `json:"size"`
	HitRate   float64 `json:"hit_rate"`
}

// Option configures a Cache.
type Option[T any] func(*Cache[T])

// WithClock replaces the time source, for deterministic TTL tests.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(c *Cache[T]) { c.now = now }
}

// New creates a Cache holding at most capacity entries, each expiring
// defaultTTL after insertion unless SetTTL overrides it.
// capacity and defaultTTL must be positive.
func New[T any](capacity int, defaultTTL time.Duration, opts ...Option[T]) *Cache[T] {
	if capacity <= 0 {
		panic("cache: capacity must be positive")
	}
	if defaultTTL <= 0 {
		panic("cache: default TTL must be positive")
	}
	c := &Cache[T]{
		entries:    make(map[string]*entry[T]),
		capacity:   capacity,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value for key. Expired entries are removed on
// access and reported as misses.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero T
		return zero, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		c.misses++
		var zero T
		return zero, false
	}
	e.hits++
	c.hits++
	return e.value, true
}

// Has reports whether key holds a live entry. Expired entries are removed,
// but hit/miss statistics and per-entry hit counts are left untouched.
func (c *Cache[T]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return false
	}
	return true
}

// Set stores value under key with the default TTL.
func (c *Cache[T]) Set(key string, value T) {
	c.SetTTL(key, value, c.defaultTTL)
}

// SetTTL stores value under key with an explicit TTL. Overwriting an
// existing key resets its timestamps and hit count. Inserting a new key at
// capacity evicts one entry first, so the capacity bound holds after every
// call.
func (c *Cache[T]) SetTTL(key string, value T, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.createdAt = now
		e.expiresAt = now.Add(ttl)
		e.hits = 0
		return
	}

	if len(c.entries) >= c.capacity {
		c.evict(now)
	}

	c.seq++
	c.entries[key] = &entry[T]{
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
		seq:       c.seq,
	}
}

// evict frees one slot. Expired entries go first; otherwise the entry with
// the lowest hit count is removed, oldest insertion winning ties.
// Must be called with c.mu held.
func (c *Cache[T]) evict(now time.Time) {
	removed := false
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
			removed = true
		}
	}
	if removed || len(c.entries) < c.capacity {
		return
	}

	var victim string
	var victimEntry *entry[T]
	for key, e := range c.entries {
		if victimEntry == nil ||
			e.hits < victimEntry.hits ||
			(e.hits == victimEntry.hits && e.seq < victimEntry.seq) {
			victim = key
			victimEntry = e
		}
	}
	delete(c.entries, victim)
	c.evictions++
}

// Delete removes key if present.
func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all entries and resets the hit/miss counters.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry[T])
	c.hits = 0
	c.misses = 0
	c.evictions = 0
}

// Cleanup sweeps all currently-expired entries and returns how many were
// removed. The cache never schedules this itself; call it periodically.
func (c *Cache[T]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries currently stored, including any that
// have expired but not yet been swept.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of hit/miss counters. HitRate is 0 when no
// accesses have occurred.
func (c *Cache[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      len(c.entries),
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}
