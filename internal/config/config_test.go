package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != Defaults() {
		t.Fatalf("empty path should return defaults, got %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	raw := `
world_id: basin_test
seed: 99
tick_rate_hz: 30
workers: 2
bounds_r: 8
snapshot_every_ticks: 100
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.WorldID != "basin_test" || cfg.Seed != 99 || cfg.TickRateHz != 30 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Workers != 2 || cfg.BoundsR != 8 || cfg.SnapshotEveryTicks != 100 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	// Untouched keys keep their defaults.
	if cfg.ListenAddr != Defaults().ListenAddr {
		t.Fatalf("listen_addr should default, got %q", cfg.ListenAddr)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"blank world id", "world_id: '  '\n"},
		{"zero tick rate", "tick_rate_hz: 0\n"},
		{"huge tick rate", "tick_rate_hz: 100000\n"},
		{"negative workers", "workers: -1\n"},
		{"negative bounds", "bounds_r: -4\n"},
		{"negative cadence", "snapshot_every_ticks: -1\n"},
		{"not yaml", "{{{\n"},
	}
	for _, tc := range cases {
		path := filepath.Join(t.TempDir(), "engine.yaml")
		if err := os.WriteFile(path, []byte(tc.raw), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		_, err := Load(path)
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), "engine.yaml") {
			t.Errorf("%s: error should name the config file, got %v", tc.name, err)
		}
	}
}
