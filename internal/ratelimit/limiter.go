// Package ratelimit throttles calls to a quota-limited upstream.
//
// Limiter is the outbound gate: it caps in-flight calls, queues overflow in
// FIFO order up to a bound, retries retryable failures with exponential
// backoff, and rejects immediately once the queue is full. Each upstream
// service gets its own Limiter instance; there is no cross-upstream quota.
//
// Bucket and Store implement a token-bucket limiter for the inbound HTTP
// surface (per-client request limiting).
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/platewise-ai/governor/upstream"
)

// Config bounds a Limiter. Zero values fall back to the documented defaults.
type Config struct {
	// MaxConcurrent caps in-flight calls to the upstream. Default 3.
	MaxConcurrent int `json:"max_concurrent" yaml:"max_concurrent"`
	// MaxQueueSize caps callers waiting for a free slot. Default 50.
	MaxQueueSize int `json:"max_queue_size" yaml:"max_queue_size"`
	// MaxRetries is the number of re-attempts after the first failure. Default 3.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
	// BaseDelay is the first backoff delay. Default 1s.
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay"`
	// MaxDelay caps backoff growth. Default 30s.
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay"`
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 3
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = 50
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	return c
}

// QueueFullError is returned immediately when the wait queue is at capacity.
// It is not a transient condition: the limiter never retries it.
type QueueFullError struct {
	QueueSize int
}

// Error implements the error interface.
func (e *QueueFullError) Error() string {
	return fmt.Sprintf("rate limiter queue full (%d waiting)", e.QueueSize)
}

// ExhaustedError is returned when retries ran out or the failure was not
// retryable. It carries the classification of the last failure and how many
// attempts were made.
type ExhaustedError struct {
	Kind     upstream.Kind
	Attempts int
	cause    error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("upstream call failed (%s) after %d attempt(s): %v", e.Kind, e.Attempts, e.cause)
}

// Unwrap returns the last upstream failure.
func (e *ExhaustedError) Unwrap() error { return e.cause }

type waiter struct {
	ready      chan struct{}
	enqueuedAt time.Time
}

// Limiter is a bounded-concurrency gate with a FIFO overflow queue and
// classified retries. The zero value is not usable; use New.
type Limiter struct {
	cfg Config

	mu       sync.Mutex
	active   int
	queue    []*waiter // FIFO, bounded by cfg.MaxQueueSize
	retrying []*waiter // backoff returnees; freed slots go here first
	failures int       // consecutive failures, reset on success

	now    func() time.Time
	jitter func() float64                                    // uniform in [0,1)
	sleep  func(ctx context.Context, d time.Duration) error // backoff wait
}

// Stats is a point-in-time snapshot of limiter state.
type Stats struct {
	Active              int
	Queued              int
	ConsecutiveFailures int
	// LongestWait is how long the head of the queue has been waiting.
	LongestWait time.Duration
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithJitter replaces the jitter source, for deterministic backoff tests.
// fn must return values in [0,1).
func WithJitter(fn func() float64) Option {
	return func(l *Limiter) { l.jitter = fn }
}

// WithClock replaces the time source used for queue timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithSleep replaces the backoff wait, for deterministic retry-timing
// tests. fn must return ctx.Err() when ctx is cancelled during the wait.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Limiter) { l.sleep = fn }
}

// New creates a Limiter for one upstream service.
func New(cfg Config, opts ...Option) *Limiter {
	l := &Limiter{
		cfg:    cfg.withDefaults(),
		now:    time.Now,
		jitter: rand.Float64,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Execute runs op under the limiter: immediately if a slot is free, after
// queueing in FIFO order otherwise. Retryable failures (see upstream.Classify)
// are re-attempted up to MaxRetries times with exponential backoff; the slot
// is released for the duration of each backoff so queued callers can use it.
//
// The returned count is the number of times op was invoked. The error is a
// *QueueFullError, an *ExhaustedError, or a context error when ctx is
// cancelled while waiting.
func (l *Limiter) Execute(ctx context.Context, op func(context.Context) error) (int, error) {
	if err := l.acquire(ctx); err != nil {
		return 0, err
	}

	attempt := 0
	for {
		err := op(ctx)
		if err == nil {
			l.mu.Lock()
			l.failures = 0
			l.mu.Unlock()
			l.release()
			return attempt + 1, nil
		}

		l.mu.Lock()
		l.failures++
		l.mu.Unlock()

		kind := upstream.Classify(err)
		if !kind.Retryable() || attempt >= l.cfg.MaxRetries {
			l.release()
			return attempt + 1, &ExhaustedError{Kind: kind, Attempts: attempt + 1, cause: err}
		}

		delay := l.backoff(attempt)
		l.release()
		if err := l.sleep(ctx, delay); err != nil {
			return attempt + 1, err
		}
		if err := l.reacquire(ctx); err != nil {
			return attempt + 1, err
		}
		attempt++
	}
}

// sleepContext is the production backoff wait.
func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// backoff computes min(base·2^attempt + jitter, max) with jitter drawn
// uniformly from [0, 0.25·base).
func (l *Limiter) backoff(attempt int) time.Duration {
	base := float64(l.cfg.BaseDelay)
	d := base * math.Pow(2, float64(attempt))
	d += l.jitter() * 0.25 * base
	if max := float64(l.cfg.MaxDelay); d > max {
		d = max
	}
	return time.Duration(d)
}

// acquire takes a concurrency slot, queueing in FIFO order when the limiter
// is saturated. Fails fast with *QueueFullError when the queue is full.
func (l *Limiter) acquire(ctx context.Context) error {
	l.mu.Lock()
	if l.active < l.cfg.MaxConcurrent {
		l.active++
		l.mu.Unlock()
		return nil
	}
	if len(l.queue) >= l.cfg.MaxQueueSize {
		n := len(l.queue)
		l.mu.Unlock()
		return &QueueFullError{QueueSize: n}
	}
	w := &waiter{ready: make(chan struct{}), enqueuedAt: l.now()}
	l.queue = append(l.queue, w)
	l.mu.Unlock()

	return l.wait(ctx, w, &l.queue)
}

// reacquire takes a slot for a retry returning from backoff. Retries never
// re-enter the bounded queue: they wait on a separate list that release
// services before the queue, so a backing-off request cannot be rejected as
// queue overflow and cannot starve behind newly queued callers.
func (l *Limiter) reacquire(ctx context.Context) error {
	l.mu.Lock()
	if l.active < l.cfg.MaxConcurrent {
		l.active++
		l.mu.Unlock()
		return nil
	}
	w := &waiter{ready: make(chan struct{}), enqueuedAt: l.now()}
	l.retrying = append(l.retrying, w)
	l.mu.Unlock()

	return l.wait(ctx, w, &l.retrying)
}

// wait blocks until w is handed a slot or ctx is cancelled. list is the
// waiter list w was appended to.
func (l *Limiter) wait(ctx context.Context, w *waiter, list *[]*waiter) error {
	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		for i, qw := range *list {
			if qw == w {
				*list = append((*list)[:i], (*list)[i+1:]...)
				l.mu.Unlock()
				return ctx.Err()
			}
		}
		l.mu.Unlock()
		// Slot was handed over concurrently with cancellation; give it back.
		select {
		case <-w.ready:
			l.release()
		default:
		}
		return ctx.Err()
	}
}

// release frees a slot: hand it to a backoff returnee first, then to the
// head of the FIFO queue, otherwise decrement the active count. Hand-offs
// keep active unchanged, so the concurrency bound holds at every instant.
func (l *Limiter) release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.retrying) > 0 {
		w := l.retrying[0]
		l.retrying = l.retrying[1:]
		close(w.ready)
		return
	}
	if len(l.queue) > 0 {
		w := l.queue[0]
		l.queue = l.queue[1:]
		close(w.ready)
		return
	}
	l.active--
}

// Stats returns a snapshot of the limiter state.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Stats{
		Active:              l.active,
		Queued:              len(l.queue),
		ConsecutiveFailures: l.failures,
	}
	if len(l.queue) > 0 {
		s.LongestWait = l.now().Sub(l.queue[0].enqueuedAt)
	}
	return s
}
