package ratelimit

import (
	"sync"
	"time"
)

// Bucket is a single token-bucket limiter. The governor service uses it on
// the inbound HTTP surface (per-client request limiting); the outbound gate
// is Limiter.
type Bucket struct {
	mu         sync.Mutex
	rate       float64 // tokens added per second
	burst      float64 // maximum token capacity
	tokens     float64 // current token count
	lastRefill time.Time
}

// NewBucket creates a Bucket allowing ratePerSecond requests/s with a burst
// capacity. If burst <= 0, it defaults to ratePerSecond (no extra burst).
func NewBucket(ratePerSecond, burst float64) *Bucket {
	if burst <= 0 {
		burst = ratePerSecond
	}
	return &Bucket{
		rate:       ratePerSecond,
		burst:      burst,
		tokens:     burst,
		lastRefill: time.Now(),
	}
}

// Allow consumes one token and returns true if the request is permitted.
func (b *Bucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * b.rate
	if b.tokens > b.burst {
		b.tokens = b.burst
	}
	b.lastRefill = now

	if b.tokens >= 1.0 {
		b.tokens--
		return true
	}
	return false
}

// Store maintains per-client Bucket instances, keyed by remote address or
// API key.
type Store struct {
	mu      sync.RWMutex
	buckets map[string]*Bucket
	rate    float64
	burst   float64
}

// NewStore creates a Store whose per-client buckets share the same rate/burst.
func NewStore(ratePerSecond, burst float64) *Store {
	return &Store{
		buckets: make(map[string]*Bucket),
		rate:    ratePerSecond,
		burst:   burst,
	}
}

// Allow checks (and creates if needed) the bucket for key.
func (s *Store) Allow(key string) bool {
	// Fast path — bucket already exists.
	s.mu.RLock()
	b, ok := s.buckets[key]
	s.mu.RUnlock()
	if ok {
		return b.Allow()
	}

	// Slow path — create new bucket.
	s.mu.Lock()
	defer s.mu.Unlock()
	// Double-check after acquiring write lock.
	if b, ok = s.buckets[key]; ok {
		return b.Allow()
	}
	b = NewBucket(s.rate, s.burst)
	s.buckets[key] = b
	return b.Allow()
}
