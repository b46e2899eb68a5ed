// Package config provides YAML-based configuration loading with environment
// variable expansion.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig `yaml:"app"`
	Storage     StorageConfig     `yaml:"storage"`
	Ingestion   IngestionConfig   `yaml:"ingestion"`
	Recommend   RecommendConfig   `yaml:"recommend"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Ingestion.Validate(); err != nil {
		return err
	}
	if err := c.Recommend.Validate(); err != nil {
		return err
	}
	return c.Maintenance.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// StorageConfig holds the location of the badger database.
// InMemory discards all data on close and ignores Path.
type StorageConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	if c.InMemory {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// IngestionConfig holds capture pipeline configuration.
type IngestionConfig struct {
	PoolSize int `yaml:"pool_size"`
	MaxTags  int `yaml:"max_tags"`
}

// Validate validates the ingestion configuration.
func (c *IngestionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.PoolSize, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxTags, validation.Required, validation.Min(1), validation.Max(20)),
	)
}

// RecommendConfig holds tag recommendation configuration.
type RecommendConfig struct {
	MinConfidence float64 `yaml:"min_confidence"`
}

// Validate validates the recommendation configuration.
func (c *RecommendConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MinConfidence, validation.Min(0.0), validation.Max(1.0)),
	)
}

// MaintenanceConfig holds janitor configuration.
type MaintenanceConfig struct {
	Interval    time.Duration `yaml:"interval"`
	RelationTTL time.Duration `yaml:"relation_ttl"`
	DecayFactor float64       `yaml:"decay_factor"`
	DecayFloor  float64       `yaml:"decay_floor"`
}

// Validate validates the maintenance configuration.
func (c *MaintenanceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Interval, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.RelationTTL, validation.Required, validation.Min(time.Minute)),
		validation.Field(&c.DecayFactor, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.DecayFloor, validation.Min(0.0), validation.Max(1.0)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Storage: StorageConfig{
			Path: "./hinata.db",
		},
		Ingestion: IngestionConfig{
			PoolSize: 2,
			MaxTags:  5,
		},
		Recommend: RecommendConfig{
			MinConfidence: 0.5,
		},
		Maintenance: MaintenanceConfig{
			Interval:    time.Hour,
			RelationTTL: 90 * 24 * time.Hour,
			DecayFactor: 0.9,
			DecayFloor:  0.1,
		},
	}
}

// Load loads configuration from a YAML file with environment variable
// expansion. Missing sections keep their defaults.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := NewDefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}
