package governor

import (
	"sync"
	"time"

	"github.com/platewise-ai/governor/internal/ratelimit"
)

// Registry owns the per-upstream limiter instances and hands out cache
// settings to clients. It replaces the process-global limiter singletons of
// a naive design: construct one Registry per process (or per test) and pass
// it to every NewClient call. Limiters are created lazily on first use and
// live as long as the Registry.
type Registry struct {
	mu       sync.Mutex
	cfg      Config
	limiters map[string]*ratelimit.Limiter
	resets   []func()

	hooks *hookSet
}

// NewRegistry creates a Registry from cfg. A zero Config is valid: every
// upstream then runs with the documented defaults.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:      cfg,
		limiters: make(map[string]*ratelimit.Limiter),
		hooks:    &hookSet{},
	}
}

// AddHook registers fn to be called asynchronously after every governed
// call made through clients built from this Registry.
func (r *Registry) AddHook(fn HookFunc) {
	r.hooks.add(fn)
}

// Limiter returns the rate limiter for the named upstream, creating it on
// first use from the Registry config. Two distinct names never share a
// limiter.
func (r *Registry) Limiter(name string) *ratelimit.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters[name]; ok {
		return l
	}
	lc := r.cfg.Upstreams[name].Limiter
	l := ratelimit.New(ratelimit.Config{
		MaxConcurrent: lc.MaxConcurrent,
		MaxQueueSize:  lc.MaxQueueSize,
		MaxRetries:    lc.MaxRetries,
		BaseDelay:     time.Duration(lc.BaseDelayMs) * time.Millisecond,
		MaxDelay:      time.Duration(lc.MaxDelayMs) * time.Millisecond,
	})
	r.limiters[name] = l
	return l
}

// cacheConfig returns the cache settings for the named upstream with
// defaults applied.
func (r *Registry) cacheConfig(name string) (capacity int, ttl time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cc := r.cfg.Upstreams[name].Cache
	capacity = cc.Capacity
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return capacity, cc.TTL()
}

// addReset registers a client cleanup function invoked by Reset.
func (r *Registry) addReset(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets = append(r.resets, fn)
}

// Reset clears every cache built from this Registry and discards limiter
// state for upstreams without live clients. Prefer constructing a fresh
// Registry (and fresh clients) per test; Reset exists for the operational
// case of flushing caches without a restart.
func (r *Registry) Reset() {
	r.mu.Lock()
	resets := make([]func(), len(r.resets))
	copy(resets, r.resets)
	r.limiters = make(map[string]*ratelimit.Limiter)
	r.mu.Unlock()

	for _, fn := range resets {
		fn()
	}
}

// UpstreamStats is a snapshot of one upstream's limiter state for the
// stats endpoint.
type UpstreamStats struct {
	Active              int           `json:"active"`
	Queued              int           `json:"queued"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LongestWait         time.Duration `json:"longest_wait_ns"`
}

// Stats returns limiter snapshots for every upstream that has been used.
func (r *Registry) Stats() map[string]UpstreamStats {
	r.mu.Lock()
	limiters := make(map[string]*ratelimit.Limiter, len(r.limiters))
	for name, l := range r.limiters {
		limiters[name] = l
	}
	r.mu.Unlock()

	out := make(map[string]UpstreamStats, len(limiters))
	for name, l := range limiters {
		s := l.Stats()
		out[name] = UpstreamStats{
			Active:              s.Active,
			Queued:              s.Queued,
			ConsecutiveFailures: s.ConsecutiveFailures,
			LongestWait:         s.LongestWait,
		}
	}
	return out
}
