// Package config loads shard and server configuration from, in ascending
// priority order, built-in defaults, a YAML file, a .env file, and process
// environment variables, mirroring the layered configuration convention
// used throughout the example pack rather than the teacher's flag-only
// setup (the teacher has no config file at all; this domain's shard-count
// and per-shard tuning knobs are numerous enough to warrant one).
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/vortexdb/vortex/internal/constants"
)

// Config is the top-level configuration for a vortex server process.
type Config struct {
	Port        int    `yaml:"port"`
	StorageDir  string `yaml:"storage_dir"`
	ShardCount  int    `yaml:"shard_count"`
	Dim         int    `yaml:"dim"`
	Capacity    int    `yaml:"capacity"`
	MaxElements int    `yaml:"max_elements"`
	QueueDepth  uint32 `yaml:"queue_depth"`
	PinCPUs     bool   `yaml:"pin_cpus"`
}

// Default returns the built-in configuration baseline.
func Default() Config {
	return Config{
		Port:        7878,
		StorageDir:  "./data",
		ShardCount:  constants.DefaultShardCount,
		Dim:         constants.DefaultDimension,
		Capacity:    constants.DefaultConnectionCapacity,
		MaxElements: 1_000_000,
		QueueDepth:  constants.DefaultQueueDepth,
		PinCPUs:     true,
	}
}

// Load builds a Config by layering, in order, built-in defaults, the YAML
// file at yamlPath (if it exists), the .env file at envPath (if it
// exists), and whatever VORTEX_* environment variables are set. Each
// layer only overrides fields it actually specifies.
func Load(yamlPath, envPath string) (Config, error) {
	cfg := Default()

	if yamlPath != "" {
		if data, err := os.ReadFile(yamlPath); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("config: parse %s: %w", yamlPath, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("config: read %s: %w", yamlPath, err)
		}
	}

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("config: load %s: %w", envPath, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("VORTEX_PORT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v, ok := os.LookupEnv("VORTEX_STORAGE_DIR"); ok {
		cfg.StorageDir = v
	}
	if v, ok := os.LookupEnv("VORTEX_SHARD_COUNT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ShardCount = n
		}
	}
	if v, ok := os.LookupEnv("VORTEX_DIM"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Dim = n
		}
	}
	if v, ok := os.LookupEnv("VORTEX_CAPACITY"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Capacity = n
		}
	}
	if v, ok := os.LookupEnv("VORTEX_MAX_ELEMENTS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxElements = n
		}
	}
	if v, ok := os.LookupEnv("VORTEX_QUEUE_DEPTH"); ok {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.QueueDepth = uint32(n)
		}
	}
	if v, ok := os.LookupEnv("VORTEX_PIN_CPUS"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.PinCPUs = b
		}
	}
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	if c.ShardCount <= 0 {
		return fmt.Errorf("config: shard_count must be positive, got %d", c.ShardCount)
	}
	if c.Dim <= 0 {
		return fmt.Errorf("config: dim must be positive, got %d", c.Dim)
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("config: capacity must be positive, got %d", c.Capacity)
	}
	return nil
}
