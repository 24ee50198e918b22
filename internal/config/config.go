package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for the scheduler knobs. Timeouts and the throttle gap mirror what
// production ranging controllers need: handle-derived links take longer to
// settle, so they get a larger timeout.
const (
	DefaultFloodCap               = 20
	DefaultBackgroundGapMs        = 1_800_000 // 30 min
	DefaultRangingTimeoutMs       = 5_000
	DefaultHandleRangingTimeoutMs = 10_000
	DefaultMaxTargets             = 10
)

// Config holds configuration for the rangerd server.
type Config struct {
	Addr      string `yaml:"addr"`       // Listen address (default ":8080")
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // text, json
	DBPath    string `yaml:"db_path"`    // SQLite database path (":memory:" for testing)

	// Scheduler knobs.
	MaxTargets             int      `yaml:"max_targets"`               // per-request target cap
	FloodCap               int      `yaml:"flood_cap"`                 // queued entries per principal
	BackgroundGapMs        int      `yaml:"background_gap_ms"`         // min gap between background dispatches
	RangingTimeoutMs       int      `yaml:"ranging_timeout_ms"`        // controller reply timeout
	HandleRangingTimeoutMs int      `yaml:"handle_ranging_timeout_ms"` // timeout when handle targets are present
	ThrottleExempt         []string `yaml:"throttle_exempt"`           // caller packages exempt from throttling

	// GatingConditions names external preconditions that must all hold for
	// ranging to be available (e.g. power-save off, location enabled).
	// Conditions start satisfied; collaborators toggle them at runtime.
	GatingConditions []string `yaml:"gating_conditions"`
}

// Default returns sensible defaults.
func Default() Config {
	return Config{
		Addr:                   ":8080",
		LogLevel:               "info",
		LogFormat:              "text",
		MaxTargets:             DefaultMaxTargets,
		FloodCap:               DefaultFloodCap,
		BackgroundGapMs:        DefaultBackgroundGapMs,
		RangingTimeoutMs:       DefaultRangingTimeoutMs,
		HandleRangingTimeoutMs: DefaultHandleRangingTimeoutMs,
	}
}

// Load reads a YAML config file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects nonsensical knob values.
func (c *Config) Validate() error {
	if c.FloodCap <= 0 {
		return fmt.Errorf("flood_cap must be positive, got %d", c.FloodCap)
	}
	if c.MaxTargets <= 0 {
		return fmt.Errorf("max_targets must be positive, got %d", c.MaxTargets)
	}
	if c.BackgroundGapMs < 0 {
		return fmt.Errorf("background_gap_ms must not be negative, got %d", c.BackgroundGapMs)
	}
	if c.RangingTimeoutMs <= 0 || c.HandleRangingTimeoutMs <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}

// BackgroundGap returns the throttle gap as a duration.
func (c *Config) BackgroundGap() time.Duration {
	return time.Duration(c.BackgroundGapMs) * time.Millisecond
}

// RangingTimeout returns the controller reply timeout as a duration.
func (c *Config) RangingTimeout() time.Duration {
	return time.Duration(c.RangingTimeoutMs) * time.Millisecond
}

// HandleRangingTimeout returns the reply timeout used when any target in the
// request is handle-derived.
func (c *Config) HandleRangingTimeout() time.Duration {
	return time.Duration(c.HandleRangingTimeoutMs) * time.Millisecond
}
