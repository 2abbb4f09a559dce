// Package config loads the version database server configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/sushant-115/versiondb/core/versiondb"
	"github.com/sushant-115/versiondb/pkg/logger"
	"github.com/sushant-115/versiondb/pkg/telemetry"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the top-level server configuration.
type Config struct {
	Logger    logger.Config           `yaml:"logger"`
	Telemetry telemetry.Config        `yaml:"telemetry"`
	VersionDb versiondb.Config        `yaml:"versiondb"`
	Flusher   versiondb.FlusherConfig `yaml:"flusher"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Logger:    logger.DefaultConfig(),
		Telemetry: telemetry.DefaultConfig(),
		VersionDb: versiondb.Config{PartitionCount: versiondb.DefaultPartitionCount},
		Flusher:   versiondb.FlusherConfig{VisitsPerSecond: versiondb.DefaultVisitsPerSecond},
	}
}

// Load reads path and overlays it on Default. Keys absent from the file keep
// their default values; unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open config %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail at startup.
func (c Config) Validate() error {
	if c.VersionDb.PartitionCount <= 0 {
		return fmt.Errorf("%w: versiondb.partition_count must be positive, got %d",
			ErrInvalidConfig, c.VersionDb.PartitionCount)
	}
	if c.Flusher.VisitsPerSecond <= 0 {
		return fmt.Errorf("%w: flusher.visits_per_second must be positive, got %v",
			ErrInvalidConfig, c.Flusher.VisitsPerSecond)
	}
	if c.Telemetry.TraceSampleRatio < 0 || c.Telemetry.TraceSampleRatio > 1 {
		return fmt.Errorf("%w: telemetry.trace_sample_ratio must be in [0, 1], got %v",
			ErrInvalidConfig, c.Telemetry.TraceSampleRatio)
	}
	return nil
}
