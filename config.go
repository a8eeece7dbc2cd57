package governor

import "time"

// Config holds the configuration for the call governor.
type Config struct {
	// Upstreams maps an upstream name (e.g. "text", "image", "vision") to
	// its limiter and cache settings. Upstreams not listed here get the
	// documented defaults on first use.
	Upstreams map[string]UpstreamConfig `json:"upstreams" yaml:"upstreams"`
	// CallLog configures the persistent audit trail (optional).
	CallLog CallLogConfig `json:"call_log,omitempty" yaml:"call_log,omitempty"`
	// Server configures the HTTP surface (used by cmd/recipegovd only).
	Server ServerConfig `json:"server,omitempty" yaml:"server,omitempty"`
}

// UpstreamConfig bounds one upstream service.
type UpstreamConfig struct {
	Limiter LimiterConfig `json:"limiter,omitempty" yaml:"limiter,omitempty"`
	Cache   CacheConfig   `json:"cache,omitempty" yaml:"cache,omitempty"`
}

// LimiterConfig mirrors the rate limiter bounds. Zero values fall back to
// the defaults: 3 concurrent, 50 queued, 3 retries, 1s base, 30s max.
type LimiterConfig struct {
	MaxConcurrent int `json:"max_concurrent,omitempty" yaml:"max_concurrent,omitempty"`
	MaxQueueSize  int `json:"max_queue_size,omitempty" yaml:"max_queue_size,omitempty"`
	MaxRetries    int `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	BaseDelayMs   int `json:"base_delay_ms,omitempty" yaml:"base_delay_ms,omitempty"`
	MaxDelayMs    int `json:"max_delay_ms,omitempty" yaml:"max_delay_ms,omitempty"`
}

// CacheConfig bounds one upstream's response cache. Zero values fall back
// to the defaults: 256 entries, 30 minute TTL.
type CacheConfig struct {
	Capacity   int `json:"capacity,omitempty" yaml:"capacity,omitempty"`
	TTLSeconds int `json:"ttl_seconds,omitempty" yaml:"ttl_seconds,omitempty"`
}

// Cache defaults applied by the Registry.
const (
	DefaultCacheCapacity = 256
	DefaultCacheTTL      = 30 * time.Minute
)

// CallLogConfig selects where governed-call audit entries are persisted.
type CallLogConfig struct {
	// Driver is "none" (default), "sqlite", or "postgres".
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"`
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// ServerConfig holds the HTTP listener settings for the governor service.
type ServerConfig struct {
	Addr      string          `json:"addr,omitempty" yaml:"addr,omitempty"`
	RateLimit RateLimitConfig `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
}

// RateLimitConfig bounds inbound requests per client IP.
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second,omitempty" yaml:"requests_per_second,omitempty"`
	Burst             float64 `json:"burst,omitempty" yaml:"burst,omitempty"`
}

// TTL returns the configured cache TTL as a duration, or the default.
func (c CacheConfig) TTL() time.Duration {
	if c.TTLSeconds <= 0 {
		return DefaultCacheTTL
	}
	return time.Duration(c.TTLSeconds) * time.Second
}
