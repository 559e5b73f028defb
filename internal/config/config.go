// Package config loads engine.yaml, the daemon's tuning file.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	WorldID string `yaml:"world_id"`
	Seed    int64  `yaml:"seed"`

	TickRateHz int `yaml:"tick_rate_hz"`

	// Workers is the simulation worker pool size; 0 uses GOMAXPROCS.
	Workers int `yaml:"workers"`

	// BoundsR limits the world to chunks with |cx|,|cy| <= bounds_r.
	// 0 means unbounded.
	BoundsR int `yaml:"bounds_r"`

	MaterialsDir string `yaml:"materials_dir"`

	SnapshotEveryTicks int    `yaml:"snapshot_every_ticks"`
	DataDir            string `yaml:"data_dir"`

	ListenAddr string `yaml:"listen_addr"`
}

func Defaults() Config {
	return Config{
		WorldID:            "world_1",
		Seed:               1337,
		TickRateHz:         60,
		Workers:            0,
		BoundsR:            64,
		MaterialsDir:       "./configs",
		SnapshotEveryTicks: 3600,
		DataDir:            "./data",
		ListenAddr:         "127.0.0.1:8420",
	}
}

// Load reads the config at path. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("engine.yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("engine.yaml: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.WorldID) == "" {
		return fmt.Errorf("world_id must not be empty")
	}
	if c.TickRateHz <= 0 || c.TickRateHz > 1000 {
		return fmt.Errorf("tick_rate_hz %d out of range (1..1000)", c.TickRateHz)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if c.BoundsR < 0 {
		return fmt.Errorf("bounds_r must not be negative")
	}
	if c.SnapshotEveryTicks < 0 {
		return fmt.Errorf("snapshot_every_ticks must not be negative")
	}
	return nil
}
