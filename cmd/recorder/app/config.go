package app

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/simdebrief/flight-telemetry/internal/telemetry"
)

// Config represents the main application configuration
type Config struct {
	Settings  Settings        `yaml:"settings"`
	Feed      FeedConfig      `yaml:"feed"`
	Processor ProcessorConfig `yaml:"processor"`
	Anomaly   []AnomalyRule   `yaml:"anomaly"`
	Storage   StorageConfig   `yaml:"storage"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
	Aircraft string `yaml:"aircraft"`
}

// Level maps the configured log level name onto a slog level. Unknown
// names fall back to info.
func (s Settings) Level() slog.Level {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// FeedConfig configures the synthetic flight feed.
type FeedConfig struct {
	Rate int   `yaml:"rate"`
	Seed int64 `yaml:"seed"`
}

// ProcessorConfig configures the telemetry processing engine.
type ProcessorConfig struct {
	QueueCapacity    int     `yaml:"queueCapacity"`
	BatchSize        int     `yaml:"batchSize"`
	HistoryCapacity  int     `yaml:"historyCapacity"`
	Filter           string  `yaml:"filter"`
	FilterAlpha      float64 `yaml:"filterAlpha"`
	FilterWindow     int     `yaml:"filterWindow"`
	LowPassCutoffHz  float64 `yaml:"lowPassCutoffHz"`
	EnableDerivative bool    `yaml:"enableDerivative"`
	Vectorized       bool    `yaml:"vectorized"`
	IdleSleepMs      int     `yaml:"idleSleepMs"`
}

// Options maps the configuration onto processor options. Zero-valued
// fields keep the engine defaults.
func (c ProcessorConfig) Options() telemetry.Options {
	return telemetry.Options{
		QueueCapacity:    c.QueueCapacity,
		BatchSize:        c.BatchSize,
		HistoryCapacity:  c.HistoryCapacity,
		Filter:           telemetry.FilterAlgorithm(c.Filter),
		FilterAlpha:      c.FilterAlpha,
		FilterWindow:     c.FilterWindow,
		LowPassCutoffHz:  c.LowPassCutoffHz,
		EnableDerivative: c.EnableDerivative,
		Vectorized:       c.Vectorized,
		IdleSleep:        time.Duration(c.IdleSleepMs) * time.Millisecond,
	}
}

// AnomalyRule enables anomaly detection for a group of parameters
// sharing the same thresholds.
type AnomalyRule struct {
	Parameters         []string `yaml:"parameters"`
	MinValue           float64  `yaml:"minValue"`
	MaxValue           float64  `yaml:"maxValue"`
	DeviationThreshold float64  `yaml:"deviationThreshold"`
}

// StorageConfig represents storage settings
type StorageConfig struct {
	DataDirectory    string `yaml:"dataDirectory"`
	ArchiveQueueSize int    `yaml:"archiveQueueSize"`
}

// MetricsConfig configures the optional Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if config.Metrics.Enabled && config.Metrics.Listen == "" {
		return nil, fmt.Errorf("metrics enabled without a listen address")
	}
	for i, rule := range config.Anomaly {
		if len(rule.Parameters) == 0 {
			return nil, fmt.Errorf("anomaly rule %d names no parameters", i)
		}
	}

	return &config, nil
}
