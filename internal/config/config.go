package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the per-project configuration file read from the
// analyzed tree's root.
const ConfigFileName = ".flowgraph.yml"

// Config holds user-overridable analysis settings.
type Config struct {
	Weights    Weights    `yaml:"weights"`
	Thresholds Thresholds `yaml:"thresholds"`
	Probe      Probe      `yaml:"probe"`
	Validation Validation `yaml:"validation"`

	// Ignore lists extra glob patterns excluded from discovery,
	// merged with the built-in ignore set and .flowgraphignore.
	Ignore []string `yaml:"ignore"`
}

// Weights are the per-unit latency estimates, in milliseconds.
// They are calibration constants, not measurements.
type Weights struct {
	DBCallMs     int `yaml:"db_call_ms"`
	APICallMs    int `yaml:"api_call_ms"`
	LoopMs       int `yaml:"loop_ms"`
	ComplexityMs int `yaml:"complexity_ms"`
}

// Thresholds control bottleneck and risk classification.
type Thresholds struct {
	// MaxDBCalls is the database-call count above which a node is flagged
	// multiple-db-calls.
	MaxDBCalls int `yaml:"max_db_calls"`
	// HeavyComplexity is the complexity above which a node is flagged
	// heavy-computation.
	HeavyComplexity int `yaml:"heavy_complexity"`
	// PathComplexity is the aggregate complexity above which a critical
	// path is rated medium error risk.
	PathComplexity int `yaml:"path_complexity"`
	// HighLatencyMs marks nodes as slow in the diagram export.
	HighLatencyMs int `yaml:"high_latency_ms"`
}

// Probe configures the optional endpoint prober.
type Probe struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	Concurrency int    `yaml:"concurrency"`
}

// Validation configures input-validation detection.
type Validation struct {
	// Patterns are method-call tokens recognized as validation sites,
	// added to the built-in set (.parse, .safeParse, .validate).
	Patterns []string `yaml:"patterns"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Weights: Weights{
			DBCallMs:     50,
			APICallMs:    100,
			LoopMs:       10,
			ComplexityMs: 2,
		},
		Thresholds: Thresholds{
			MaxDBCalls:      3,
			HeavyComplexity: 10,
			PathComplexity:  20,
			HighLatencyMs:   200,
		},
		Probe: Probe{
			BaseURL:     "http://localhost:3000",
			TimeoutMs:   5000,
			Concurrency: 8,
		},
	}
}

// Load reads ConfigFileName from the given directory. A missing file yields
// the defaults; a present but unreadable or invalid file is an error, since
// silently ignoring a broken config would make every weight wrong.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
