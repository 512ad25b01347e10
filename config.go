package mvi

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the file form of the store options.
//
//	failure_policy: propagate
//	log_level: debug
//	pool_size: 4
//	metrics:
//	  enabled: true
//	  namespace: counter
//	tracing:
//	  enabled: true
//	  tracer_name: counter
type Config struct {
	FailurePolicy string        `yaml:"failure_policy"`
	LogLevel      string        `yaml:"log_level"`
	PoolSize      int           `yaml:"pool_size"`
	Metrics       MetricsConfig `yaml:"metrics"`
	Tracing       TracingConfig `yaml:"tracing"`
}

// MetricsConfig toggles the prometheus extension.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// TracingConfig toggles the opentelemetry extension.
type TracingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	TracerName string `yaml:"tracer_name"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		FailurePolicy: PolicyIsolate.String(),
		LogLevel:      "info",
		PoolSize:      4,
		Metrics: MetricsConfig{
			Namespace: "mvi",
		},
		Tracing: TracingConfig{
			TracerName: "mvi",
		},
	}
}

// LoadConfig reads and validates a YAML config file. Fields missing from the
// file keep their defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read the config file %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig parses and validates YAML config data.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse the config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	if _, err := ParseFailurePolicy(c.FailurePolicy); err != nil {
		errs = append(errs, fmt.Errorf("failure_policy: %w", err))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.PoolSize < 1 {
		errs = append(errs, fmt.Errorf("pool_size: must be at least 1, got %d", c.PoolSize))
	}
	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		errs = append(errs, errors.New("metrics.namespace: required when metrics are enabled"))
	}
	if c.Tracing.Enabled && c.Tracing.TracerName == "" {
		errs = append(errs, errors.New("tracing.tracer_name: required when tracing is enabled"))
	}
	return errors.Join(errs...)
}

// Policy returns the parsed failure policy.
func (c Config) Policy() FailurePolicy {
	p, _ := ParseFailurePolicy(c.FailurePolicy)
	return p
}

// Level returns the parsed log level.
func (c Config) Level() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

// StoreOptions turns the config into store options. A nil logger is replaced
// by a text logger on stderr at the configured level.
func (c Config) StoreOptions(logger *slog.Logger) []StoreOption {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: c.Level(),
		}))
	}
	return []StoreOption{
		WithLogger(logger),
		WithFailurePolicy(c.Policy()),
	}
}

func parseLevel(s string) (slog.Level, error) {
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, err
	}
	return l, nil
}
