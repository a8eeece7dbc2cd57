package governor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/platewise-ai/governor/internal/cache"
	"github.com/platewise-ai/governor/internal/logging"
	"github.com/platewise-ai/governor/internal/metrics"
	"github.com/platewise-ai/governor/internal/ratelimit"
	"github.com/platewise-ai/governor/upstream"
)

// Operation describes one governed upstream operation family.
type Operation[P, R any] struct {
	// Name identifies the operation in logs, metrics, and the call log.
	Name string
	// Upstream names the service this operation calls. Operations sharing
	// an Upstream share its limiter quota; the cache is per client.
	Upstream string
	// Key derives the cache key from the params. It must normalize:
	// semantically equal params must produce equal keys.
	Key func(P) string
	// Call performs the actual upstream request.
	Call func(ctx context.Context, p P) (R, error)
	// Fallback produces the degraded-but-usable result served when the
	// upstream is unavailable. It must be total: defined for every valid P.
	Fallback func(P) R
	// Validate rejects malformed params before any cache or limiter work.
	// Optional.
	Validate func(P) error
	// CacheTTL overrides the upstream's cache TTL for this operation.
	// Optional.
	CacheTTL time.Duration
}

// Client is a governed client for one operation family. Application code
// holds a Client and calls Generate; it never talks to the cache, the
// limiter, or the upstream directly.
type Client[P, R any] struct {
	op      Operation[P, R]
	cache   *cache.Cache[R]
	limiter *ratelimit.Limiter
	hooks   *hookSet
}

// NewClient builds a governed client from the Registry's resources for
// op.Upstream.
func NewClient[P, R any](reg *Registry, op Operation[P, R]) (*Client[P, R], error) {
	if op.Name == "" {
		return nil, errors.New("governor: operation name is required")
	}
	if op.Upstream == "" {
		return nil, errors.New("governor: operation upstream is required")
	}
	if op.Key == nil || op.Call == nil || op.Fallback == nil {
		return nil, fmt.Errorf("governor: operation %s needs Key, Call, and Fallback", op.Name)
	}

	capacity, ttl := reg.cacheConfig(op.Upstream)
	c := &Client[P, R]{
		op:      op,
		cache:   cache.New[R](capacity, ttl),
		limiter: reg.Limiter(op.Upstream),
		hooks:   reg.hooks,
	}
	reg.addReset(c.cache.Clear)
	return c, nil
}

// Generate answers the request from the cache when it can, otherwise calls
// the upstream through the rate limiter and caches the result. When the
// upstream fails after retries, the cache is consulted once more (a
// concurrent caller may have populated it meanwhile) and finally the
// operation's fallback value is returned.
//
// The returned error is non-nil only for invalid params or a cancelled
// context; upstream unavailability is absorbed into the fallback.
func (c *Client[P, R]) Generate(ctx context.Context, p P) (R, error) {
	log := logging.ForCall(ctx, c.op.Upstream, c.op.Name)

	if c.op.Validate != nil {
		if err := c.op.Validate(p); err != nil {
			var zero R
			return zero, fmt.Errorf("governor: invalid %s params: %w", c.op.Name, err)
		}
	}

	key := c.op.Key(p)
	if v, ok := c.cache.Get(key); ok {
		metrics.CacheHits.WithLabelValues(c.op.Upstream).Inc()
		metrics.CallsTotal.WithLabelValues(c.op.Upstream, c.op.Name, string(OutcomeHit)).Inc()
		c.hooks.emit(ctx, Event{
			Upstream:  c.op.Upstream,
			Operation: c.op.Name,
			Outcome:   OutcomeHit,
		})
		return v, nil
	}
	metrics.CacheMisses.WithLabelValues(c.op.Upstream).Inc()

	start := time.Now()
	var result R
	attempts, err := c.limiter.Execute(ctx, func(ctx context.Context) error {
		r, callErr := c.op.Call(ctx, p)
		if callErr != nil {
			return callErr
		}
		result = r
		return nil
	})
	latency := time.Since(start)
	metrics.UpstreamDuration.WithLabelValues(c.op.Upstream, c.op.Name).Observe(latency.Seconds())
	metrics.QueueDepth.WithLabelValues(c.op.Upstream).Set(float64(c.limiter.Stats().Queued))
	if attempts > 1 {
		metrics.UpstreamRetries.WithLabelValues(c.op.Upstream).Add(float64(attempts - 1))
	}

	if err == nil {
		c.setCache(key, result)
		metrics.CallsTotal.WithLabelValues(c.op.Upstream, c.op.Name, string(OutcomeSuccess)).Inc()
		c.hooks.emit(ctx, Event{
			Upstream:  c.op.Upstream,
			Operation: c.op.Name,
			Outcome:   OutcomeSuccess,
			Attempts:  attempts,
			Latency:   latency,
		})
		return result, nil
	}

	ev := Event{
		Upstream:  c.op.Upstream,
		Operation: c.op.Name,
		Outcome:   OutcomeFallback,
		Attempts:  attempts,
		Latency:   latency,
	}

	var queueFull *ratelimit.QueueFullError
	var exhausted *ratelimit.ExhaustedError
	switch {
	case errors.As(err, &queueFull):
		ev.QueueFull = true
		ev.FailureKind = upstream.KindRateLimited
		metrics.QueueRejections.WithLabelValues(c.op.Upstream).Inc()
		log.Warn("governed call rejected at queue", "queued", queueFull.QueueSize)
	case errors.As(err, &exhausted):
		ev.FailureKind = exhausted.Kind
		metrics.UpstreamFailures.WithLabelValues(c.op.Upstream, exhausted.Kind.String()).Inc()
		log.Warn("upstream call failed",
			"kind", exhausted.Kind.String(),
			"attempts", exhausted.Attempts,
			"error", err.Error(),
		)
	default:
		// Context cancellation is the caller's decision, not an upstream
		// outage; the fallback contract does not apply.
		var zero R
		return zero, err
	}

	// A concurrent caller may have populated the cache while this one was
	// queued or backing off.
	if v, ok := c.cache.Get(key); ok {
		ev.Outcome = OutcomeHit
		ev.FromLateHit = true
		metrics.CacheHits.WithLabelValues(c.op.Upstream).Inc()
		metrics.CallsTotal.WithLabelValues(c.op.Upstream, c.op.Name, string(OutcomeHit)).Inc()
		c.hooks.emit(ctx, ev)
		return v, nil
	}

	metrics.CallsTotal.WithLabelValues(c.op.Upstream, c.op.Name, string(OutcomeFallback)).Inc()
	metrics.FallbacksServed.WithLabelValues(c.op.Upstream, c.op.Name).Inc()
	log.Info("serving fallback value")
	c.hooks.emit(ctx, ev)
	return c.op.Fallback(p), nil
}

func (c *Client[P, R]) setCache(key string, value R) {
	if c.op.CacheTTL > 0 {
		c.cache.SetTTL(key, value, c.op.CacheTTL)
		return
	}
	c.cache.Set(key, value)
}

// CacheStats re-exports the cache counter snapshot so callers outside the
// module can name it.
type CacheStats = cache.Stats

// CacheStats exposes the client's cache counters for the stats endpoint.
func (c *Client[P, R]) CacheStats() CacheStats {
	return c.cache.Stats()
}

// CleanupCache sweeps expired entries and returns how many were removed.
// Callers schedule this; the client never runs its own timers.
func (c *Client[P, R]) CleanupCache() int {
	return c.cache.Cleanup()
}
