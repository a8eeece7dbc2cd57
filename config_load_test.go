package governor

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_YAML(t *testing.T) {
	path := writeConfigFile(t, "governor.yaml", `
upstreams:
  text:
    limiter:
      max_concurrent: 5
      max_retries: 2
      base_delay_ms: 500
      max_delay_ms: 10000
    cache:
      capacity: 128
      ttl_seconds: 900
call_log:
  driver: sqlite
  dsn: governor.db
server:
  addr: ":8080"
  rate_limit:
    requests_per_second: 10
    burst: 20
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	text := cfg.Upstreams["text"]
	if text.Limiter.MaxConcurrent != 5 || text.Limiter.BaseDelayMs != 500 {
		t.Fatalf("limiter = %+v", text.Limiter)
	}
	if text.Cache.Capacity != 128 || text.Cache.TTLSeconds != 900 {
		t.Fatalf("cache = %+v", text.Cache)
	}
	if cfg.CallLog.Driver != "sqlite" || cfg.Server.Addr != ":8080" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if err := ValidateConfig(*cfg); err != nil {
		t.Fatalf("ValidateConfig: %v", err)
	}
}

func TestLoadConfig_JSON(t *testing.T) {
	path := writeConfigFile(t, "governor.json", `{
  "upstreams": {
    "image": {"limiter": {"max_queue_size": 10}}
  }
}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Upstreams["image"].Limiter.MaxQueueSize != 10 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := LoadConfig(writeConfigFile(t, "cfg.toml", "x = 1")); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
	if _, err := LoadConfig(writeConfigFile(t, "cfg.yaml", "upstreams: [not a map")); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestValidateConfig(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"zero config", Config{}, false},
		{
			"negative limiter value",
			Config{Upstreams: map[string]UpstreamConfig{
				"text": {Limiter: LimiterConfig{MaxRetries: -1}},
			}},
			true,
		},
		{
			"base delay above max",
			Config{Upstreams: map[string]UpstreamConfig{
				"text": {Limiter: LimiterConfig{BaseDelayMs: 5000, MaxDelayMs: 1000}},
			}},
			true,
		},
		{
			"negative cache capacity",
			Config{Upstreams: map[string]UpstreamConfig{
				"text": {Cache: CacheConfig{Capacity: -1}},
			}},
			true,
		},
		{
			"postgres without dsn",
			Config{CallLog: CallLogConfig{Driver: "postgres"}},
			true,
		},
		{
			"postgres with dsn",
			Config{CallLog: CallLogConfig{Driver: "postgres", DSN: "postgres://localhost/governor"}},
			false,
		},
		{
			"unknown call log driver",
			Config{CallLog: CallLogConfig{Driver: "mysql"}},
			true,
		},
		{
			"negative rate limit",
			Config{Server: ServerConfig{RateLimit: RateLimitConfig{RequestsPerSecond: -1}}},
			true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateConfig(tc.cfg)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ValidateConfig() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
