package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "vortex.yaml")
	if err := os.WriteFile(yamlPath, []byte("port: 9000\nshard_count: 4\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(yamlPath, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9000 || cfg.ShardCount != 4 {
		t.Fatalf("cfg = %+v, want port=9000 shard_count=4", cfg)
	}
	if cfg.Dim != Default().Dim {
		t.Fatalf("unspecified field Dim changed: %d", cfg.Dim)
	}
}

func TestLoadMissingYAMLIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("cfg = %+v, want defaults", cfg)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	yamlPath := filepath.Join(t.TempDir(), "vortex.yaml")
	if err := os.WriteFile(yamlPath, []byte("port: 9000\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VORTEX_PORT", "1234")
	cfg, err := Load(yamlPath, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 1234 {
		t.Fatalf("cfg.Port = %d, want 1234", cfg.Port)
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := Default()
	cfg.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidateRejectsNonPositiveShardCount(t *testing.T) {
	cfg := Default()
	cfg.ShardCount = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive shard_count")
	}
}
