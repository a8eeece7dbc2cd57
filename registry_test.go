package governor

import (
	"context"
	"testing"
	"time"
)

func TestRegistry_LimiterPerUpstream(t *testing.T) {
	reg := NewRegistry(Config{})

	text := reg.Limiter("text")
	image := reg.Limiter("image")
	if text == image {
		t.Fatal("distinct upstreams must not share a limiter")
	}
	if again := reg.Limiter("text"); again != text {
		t.Fatal("same upstream must reuse its limiter")
	}
}

func TestRegistry_CacheConfigDefaults(t *testing.T) {
	reg := NewRegistry(Config{
		Upstreams: map[string]UpstreamConfig{
			"image": {Cache: CacheConfig{Capacity: 16, TTLSeconds: 60}},
		},
	})

	capacity, ttl := reg.cacheConfig("image")
	if capacity != 16 || ttl != time.Minute {
		t.Fatalf("configured upstream: got (%d, %v)", capacity, ttl)
	}

	capacity, ttl = reg.cacheConfig("unlisted")
	if capacity != DefaultCacheCapacity || ttl != DefaultCacheTTL {
		t.Fatalf("unlisted upstream: got (%d, %v), want defaults", capacity, ttl)
	}
}

func TestRegistry_ResetClearsCaches(t *testing.T) {
	reg := fastRegistry()
	calls := 0
	c, err := NewClient(reg, testOperation(func(ctx context.Context, p string) (string, error) {
		calls++
		return "result:" + p, nil
	}))
	if err != nil {
		t.Fatal(err)
	}

	_, _ = c.Generate(context.Background(), "a")
	reg.Reset()
	_, _ = c.Generate(context.Background(), "a")

	if calls != 2 {
		t.Fatalf("upstream called %d times, want 2 (cache cleared between)", calls)
	}
	if s := c.CacheStats(); s.Hits != 0 {
		t.Fatalf("stats survived Reset: %+v", s)
	}
}

func TestRegistry_StatsCoversUsedUpstreams(t *testing.T) {
	reg := NewRegistry(Config{})
	reg.Limiter("text")

	stats := reg.Stats()
	if len(stats) != 1 {
		t.Fatalf("got %d upstreams, want 1", len(stats))
	}
	if s, ok := stats["text"]; !ok || s.Active != 0 || s.Queued != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
