package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.FloodCap != DefaultFloodCap {
		t.Errorf("FloodCap = %d, want %d", cfg.FloodCap, DefaultFloodCap)
	}
	if cfg.RangingTimeout() != 5*time.Second {
		t.Errorf("RangingTimeout = %v, want 5s", cfg.RangingTimeout())
	}
	if cfg.HandleRangingTimeout() != 10*time.Second {
		t.Errorf("HandleRangingTimeout = %v, want 10s", cfg.HandleRangingTimeout())
	}
	if cfg.BackgroundGap() != 30*time.Minute {
		t.Errorf("BackgroundGap = %v, want 30m", cfg.BackgroundGap())
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rangerd.yaml")
	body := `
addr: ":9090"
flood_cap: 5
background_gap_ms: 60000
throttle_exempt: ["com.example.locator"]
gating_conditions: ["power_save_off", "location_enabled"]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Errorf("Addr = %q, want :9090", cfg.Addr)
	}
	if cfg.FloodCap != 5 {
		t.Errorf("FloodCap = %d, want 5", cfg.FloodCap)
	}
	if cfg.BackgroundGap() != time.Minute {
		t.Errorf("BackgroundGap = %v, want 1m", cfg.BackgroundGap())
	}
	// Untouched keys keep their defaults.
	if cfg.RangingTimeoutMs != DefaultRangingTimeoutMs {
		t.Errorf("RangingTimeoutMs = %d, want default", cfg.RangingTimeoutMs)
	}
	if len(cfg.GatingConditions) != 2 {
		t.Errorf("GatingConditions = %v, want 2 entries", cfg.GatingConditions)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero flood cap", "flood_cap: 0"},
		{"negative gap", "background_gap_ms: -1"},
		{"zero timeout", "ranging_timeout_ms: 0"},
		{"bad yaml", "flood_cap: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
