package governor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads and parses a config file from the given path.
// Supported formats: JSON (.json), YAML (.yaml, .yml).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q: use .json, .yaml, or .yml", ext)
	}

	return &cfg, nil
}

// ValidateConfig validates a Config for correctness.
func ValidateConfig(cfg Config) error {
	for name, uc := range cfg.Upstreams {
		if name == "" {
			return fmt.Errorf("upstream name must not be empty")
		}
		l := uc.Limiter
		if l.MaxConcurrent < 0 || l.MaxQueueSize < 0 || l.MaxRetries < 0 ||
			l.BaseDelayMs < 0 || l.MaxDelayMs < 0 {
			return fmt.Errorf("upstream %q: limiter values must not be negative", name)
		}
		if l.MaxDelayMs > 0 && l.BaseDelayMs > l.MaxDelayMs {
			return fmt.Errorf("upstream %q: base_delay_ms exceeds max_delay_ms", name)
		}
		if uc.Cache.Capacity < 0 || uc.Cache.TTLSeconds < 0 {
			return fmt.Errorf("upstream %q: cache values must not be negative", name)
		}
	}

	switch cfg.CallLog.Driver {
	case "", "none", "sqlite":
	case "postgres":
		if strings.TrimSpace(cfg.CallLog.DSN) == "" {
			return fmt.Errorf("call_log: postgres driver requires a dsn")
		}
	default:
		return fmt.Errorf("call_log: unknown driver %q: use none, sqlite, or postgres", cfg.CallLog.Driver)
	}

	if rl := cfg.Server.RateLimit; rl.RequestsPerSecond < 0 || rl.Burst < 0 {
		return fmt.Errorf("server.rate_limit values must not be negative")
	}

	return nil
}
