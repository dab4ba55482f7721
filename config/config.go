// Package config loads the reward server configuration from TOML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/warp/rewards-engine/generic"
	"github.com/warp/rewards-engine/generic/solver"
	"github.com/warp/rewards-engine/rewards"
)

type Config struct {
	ListenAddress   string   `toml:"ListenAddress"`
	DatabasePath    string   `toml:"DatabasePath"`
	CatalogPath     string   `toml:"CatalogPath"`
	DefaultStrategy string   `toml:"DefaultStrategy"`
	DefaultProgram  string   `toml:"DefaultProgram"`
	SolverNodeLimit int      `toml:"SolverNodeLimit"`
	AllowedOrigins  []string `toml:"AllowedOrigins"`
	MetricsEnabled  bool     `toml:"MetricsEnabled"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		ListenAddress:   ":8080",
		DatabasePath:    "rewards.db",
		DefaultStrategy: string(generic.StrategyOptimal),
		DefaultProgram:  rewards.ProgramStandard,
		SolverNodeLimit: solver.DefaultNodeLimit,
		AllowedOrigins:  []string{"*"},
		MetricsEnabled:  true,
	}
}

// Load reads path over the defaults. A missing file yields the defaults;
// unknown keys are rejected so typos do not silently fall back.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail at first use.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("ListenAddress must not be empty")
	}
	if _, err := generic.ParseStrategy(c.DefaultStrategy); err != nil {
		return fmt.Errorf("DefaultStrategy: %w", err)
	}
	if c.SolverNodeLimit <= 0 {
		return fmt.Errorf("SolverNodeLimit must be positive, got %d", c.SolverNodeLimit)
	}
	if c.AllowedOrigins == nil {
		c.AllowedOrigins = []string{}
	}
	return nil
}

// Strategy is DefaultStrategy parsed; Validate guarantees it succeeds.
func (c *Config) Strategy() generic.Strategy {
	s, err := generic.ParseStrategy(c.DefaultStrategy)
	if err != nil {
		return generic.StrategyOptimal
	}
	return s
}
