package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/opendata-br/govetl/internal/storage"
)

// Config is the runtime configuration for one run. Values come from
// defaults, then an optional YAML file, then environment overrides.
type Config struct {
	// CatalogPath points at the TOML endpoint catalog.
	CatalogPath string `yaml:"catalog"`

	// DataDir is the base directory for raw downloads (and for output
	// when the local storage backend is used).
	DataDir string `yaml:"data_dir"`

	Storage    storage.Config   `yaml:"storage"`
	Convert    ConvertConfig    `yaml:"convert"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Perf       PerfConfig       `yaml:"perf"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
}

// ConvertConfig configures the normalization engine.
type ConvertConfig struct {
	Compression string `yaml:"compression"` // "snappy" | "zstd"
	Statistics  bool   `yaml:"statistics"`
	SampleSize  int    `yaml:"sample_size"` // records used for schema inference
}

// FetchConfig configures the download layer.
type FetchConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// PerfConfig bounds the worker pool.
type PerfConfig struct {
	Workers int `yaml:"workers"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Format string `yaml:"format"` // "json" | "text"
	Level  string `yaml:"level"`  // "debug" | "info" | "warn" | "error"
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // e.g. ":9090"
}

// CheckpointConfig enables resuming an interrupted run.
type CheckpointConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		CatalogPath: "endpoints_publicos.toml",
		DataDir:     "data",
		Storage:     storage.Config{Backend: "local"},
		Convert:     ConvertConfig{Compression: "snappy", Statistics: true, SampleSize: 1000},
		Fetch:       FetchConfig{TimeoutSeconds: 300},
		Perf:        PerfConfig{Workers: 1},
		Logging:     LoggingConfig{Format: "text", Level: "info"},
		Metrics:     MetricsConfig{Address: ":9090"},
		Checkpoint:  CheckpointConfig{Dir: ".govetl"},
	}
}

// Load builds the runtime configuration. path points at an optional
// YAML file; an empty path or a missing file falls back to defaults
// plus environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// defaults apply
		default:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if cfg.Perf.Workers < 1 {
		cfg.Perf.Workers = 1
	}
	if cfg.Storage.Backend == "local" && cfg.Storage.LocalDir == "" {
		cfg.Storage.LocalDir = cfg.DataDir
	}
	return cfg, nil
}

// applyEnv layers environment overrides on top of file values.
func applyEnv(cfg *Config) {
	cfg.CatalogPath = getenvDefault("GOVETL_CATALOG", cfg.CatalogPath)
	cfg.DataDir = getenvDefault("GOVETL_DATA_DIR", cfg.DataDir)
	cfg.Storage.Backend = getenvDefault("GOVETL_STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.Bucket = getenvDefault("GOVETL_STORAGE_BUCKET", cfg.Storage.Bucket)
	cfg.Convert.Compression = getenvDefault("GOVETL_COMPRESSION", cfg.Convert.Compression)

	if v := os.Getenv("GOVETL_WORKERS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Perf.Workers = parsed
		}
	}
	if v := os.Getenv("GOVETL_SAMPLE_SIZE"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Convert.SampleSize = parsed
		}
	}
	if v := os.Getenv("GOVETL_STATISTICS"); v != "" {
		cfg.Convert.Statistics = v == "true"
	}
	if v := os.Getenv("GOVETL_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = v == "true"
	}
	if v := os.Getenv("GOVETL_CHECKPOINT_ENABLED"); v != "" {
		cfg.Checkpoint.Enabled = v == "true"
	}
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}
