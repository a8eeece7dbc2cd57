// Package governor rations outbound calls to quota-limited AI services.
//
// A Client wraps one upstream operation family (recipe text, food images,
// ingredient vision) with a response cache, a bounded-concurrency rate
// limiter with retries and backoff, and a total fallback value. Application
// code calls Generate and always receives a usable result: a cached
// response, a fresh upstream response, or — when the upstream is down and
// retries are exhausted — the operation's fallback. Upstream outages never
// surface as errors to callers.
//
// A Registry owns the per-upstream limiter and cache resources, built from
// [Config] which can be loaded from a YAML or JSON file using [LoadConfig].
// Distinct upstreams never share a limiter or cache: there is no
// cross-upstream fairness or shared quota.
package governor

import (
	"context"
	"sync"
	"time"

	"github.com/platewise-ai/governor/internal/logging"
	"github.com/platewise-ai/governor/upstream"
)

// Outcome says how a governed call was answered.
type Outcome string

// Outcome constants cover every way Generate can resolve.
const (
	// OutcomeHit — answered from the cache, no upstream interaction.
	OutcomeHit Outcome = "hit"
	// OutcomeSuccess — answered by the upstream (possibly after retries).
	OutcomeSuccess Outcome = "success"
	// OutcomeFallback — upstream unavailable, answered with the fallback.
	OutcomeFallback Outcome = "fallback"
)

// Event describes one completed governed call. Hooks receive a copy
// asynchronously after Generate resolves.
type Event struct {
	TraceID     string
	Upstream    string
	Operation   string
	Outcome     Outcome
	FailureKind upstream.Kind // meaningful only when Outcome is OutcomeFallback
	QueueFull   bool          // the call was rejected at the queue, not retried
	Attempts    int
	Latency     time.Duration
	FromLateHit bool // fallback path found the key populated by a concurrent caller
}

// HookFunc is called asynchronously after each governed call. It replaces
// per-call callback wiring: register once on the Registry and observe every
// operation built from it.
type HookFunc func(ctx context.Context, ev Event)

// hookSet is the shared hook collection behind a Registry.
type hookSet struct {
	mu    sync.RWMutex
	hooks []HookFunc
}

func (h *hookSet) add(fn HookFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, fn)
}

// emit invokes all hooks asynchronously so a slow hook (e.g. a database
// write) cannot delay the caller.
func (h *hookSet) emit(ctx context.Context, ev Event) {
	h.mu.RLock()
	hooks := make([]HookFunc, len(h.hooks))
	copy(hooks, h.hooks)
	h.mu.RUnlock()

	if len(hooks) == 0 {
		return
	}
	ev.TraceID = logging.TraceIDFromContext(ctx)
	for _, fn := range hooks {
		go fn(ctx, ev)
	}
}
