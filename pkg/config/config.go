// Package config provides YAML-backed configuration for a hnswbuild
// run: DefaultConfig, an optional YAML file loaded over it, then CLI
// flag overrides applied last.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Build holds the HNSW construction parameters.
type Build struct {
	M              int    `yaml:"m"`
	M0             int    `yaml:"m0"`
	EfConstruct    int    `yaml:"ef_construct"`
	Metric         string `yaml:"metric"` // "cosine" or "dot"
	EntryPointsNum int    `yaml:"entry_points_num"`
}

// Logging selects the log level, encoding, and destination.
type Logging struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
	Output string `yaml:"output"` // stdout, stderr, file
	File   string `yaml:"file"`
}

// Ingest controls the throttled bulk loader.
type Ingest struct {
	RateLimit int `yaml:"rate_limit"` // vectors/sec, 0 = unlimited
	Burst     int `yaml:"burst"`
	BatchSize int `yaml:"batch_size"` // points buffered per producer flush
}

// Config is the full hnswbuild run configuration.
type Config struct {
	Build   Build   `yaml:"build"`
	Logging Logging `yaml:"logging"`
	Ingest  Ingest  `yaml:"ingest"`
}

// DefaultConfig returns the default run configuration (M=16, M0=32,
// ef_construct=200, cosine metric).
func DefaultConfig() *Config {
	return &Config{
		Build: Build{
			M:              16,
			M0:             32,
			EfConstruct:    200,
			Metric:         "cosine",
			EntryPointsNum: 1,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Ingest: Ingest{
			RateLimit: 0,
			Burst:     1,
			BatchSize: 256,
		},
	}
}

// LoadConfig reads and parses a YAML config file, starting from
// DefaultConfig so unset fields keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CLIOverrides holds flag values that take precedence over a loaded
// config file. A zero value for any field means "not set on the
// command line".
type CLIOverrides struct {
	M           int
	M0          int
	EfConstruct int
	Metric      string
	LogLevel    string
}

// ApplyOverrides overwrites cfg's fields with any non-zero override.
func (c *Config) ApplyOverrides(o CLIOverrides) {
	if o.M > 0 {
		c.Build.M = o.M
	}
	if o.M0 > 0 {
		c.Build.M0 = o.M0
	}
	if o.EfConstruct > 0 {
		c.Build.EfConstruct = o.EfConstruct
	}
	if o.Metric != "" {
		c.Build.Metric = o.Metric
	}
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
}

// Validate rejects configurations the builder cannot run with.
func (c *Config) Validate() error {
	if c.Build.M <= 0 {
		return fmt.Errorf("config: build.m must be positive, got %d", c.Build.M)
	}
	if c.Build.M0 <= 0 {
		return fmt.Errorf("config: build.m0 must be positive, got %d", c.Build.M0)
	}
	if c.Build.EfConstruct <= 0 {
		return fmt.Errorf("config: build.ef_construct must be positive, got %d", c.Build.EfConstruct)
	}
	switch c.Build.Metric {
	case "cosine", "dot":
	default:
		return fmt.Errorf("config: build.metric must be \"cosine\" or \"dot\", got %q", c.Build.Metric)
	}
	if c.Build.EntryPointsNum <= 0 {
		return fmt.Errorf("config: build.entry_points_num must be positive, got %d", c.Build.EntryPointsNum)
	}
	return nil
}
