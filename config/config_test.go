package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestStorageConfig_PathRequired(t *testing.T) {
	cfg := StorageConfig{}
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty path without in_memory should fail")
	}
}

func TestStorageConfig_InMemorySkipsPath(t *testing.T) {
	cfg := StorageConfig{InMemory: true}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("in-memory config should not require a path: %v", err)
	}
}

func TestIngestionConfig_Bounds(t *testing.T) {
	cfg := IngestionConfig{PoolSize: 0, MaxTags: 5}
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero pool size should fail")
	}
	cfg = IngestionConfig{PoolSize: 2, MaxTags: 100}
	if err := cfg.Validate(); err == nil {
		t.Fatal("max_tags above the tag cap should fail")
	}
}

func TestMaintenanceConfig_Bounds(t *testing.T) {
	cfg := MaintenanceConfig{Interval: time.Millisecond, RelationTTL: time.Hour}
	if err := cfg.Validate(); err == nil {
		t.Fatal("sub-second interval should fail")
	}
	cfg = MaintenanceConfig{Interval: time.Hour, RelationTTL: time.Hour, DecayFactor: 1.5}
	if err := cfg.Validate(); err == nil {
		t.Fatal("decay factor above 1 should fail")
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("HINATA_DB_PATH", "/tmp/hinata-test.db")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
storage:
  path: ${HINATA_DB_PATH}
ingestion:
  pool_size: 4
  max_tags: 8
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Storage.Path != "/tmp/hinata-test.db" {
		t.Errorf("path = %q, want env-expanded value", cfg.Storage.Path)
	}
	if cfg.Ingestion.PoolSize != 4 || cfg.Ingestion.MaxTags != 8 {
		t.Errorf("ingestion = %+v, want pool_size 4 and max_tags 8", cfg.Ingestion)
	}
	// Sections absent from the file keep their defaults.
	if cfg.Maintenance.Interval != time.Hour {
		t.Errorf("interval = %v, want default", cfg.Maintenance.Interval)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "ingestion:\n  pool_size: 0\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("invalid config should fail to load")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file should fail to load")
	}
}
