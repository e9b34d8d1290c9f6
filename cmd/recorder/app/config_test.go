package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/simdebrief/flight-telemetry/internal/telemetry"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recorder.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
settings:
  logLevel: debug
  aircraft: C172
feed:
  rate: 50
  seed: 42
processor:
  queueCapacity: 1024
  filter: kalman
  enableDerivative: true
  idleSleepMs: 2
anomaly:
  - parameters: [altitude, vspeed]
    minValue: -1000
    maxValue: 50000
    deviationThreshold: 3
storage:
  dataDirectory: data
  archiveQueueSize: 128
metrics:
  enabled: true
  listen: ":9090"
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}

	if config.Settings.Level() != slog.LevelDebug {
		t.Errorf("expected debug level, got %v", config.Settings.Level())
	}
	if config.Settings.Aircraft != "C172" {
		t.Errorf("aircraft mismatch: %s", config.Settings.Aircraft)
	}
	if config.Feed.Rate != 50 || config.Feed.Seed != 42 {
		t.Errorf("feed config mismatch: %+v", config.Feed)
	}

	opts := config.Processor.Options()
	if opts.QueueCapacity != 1024 {
		t.Errorf("queue capacity %d, expected 1024", opts.QueueCapacity)
	}
	if opts.Filter != telemetry.FilterKalman {
		t.Errorf("filter %s, expected kalman", opts.Filter)
	}
	if !opts.EnableDerivative {
		t.Error("derivative stage should be enabled")
	}
	if opts.IdleSleep != 2*time.Millisecond {
		t.Errorf("idle sleep %v, expected 2ms", opts.IdleSleep)
	}

	if len(config.Anomaly) != 1 || len(config.Anomaly[0].Parameters) != 2 {
		t.Fatalf("anomaly rules malformed: %+v", config.Anomaly)
	}
	if config.Metrics.Listen != ":9090" {
		t.Errorf("metrics listen mismatch: %s", config.Metrics.Listen)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "settings:\n  aircraft: C172\n")

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}

	if config.Settings.Level() != slog.LevelInfo {
		t.Errorf("expected info fallback level, got %v", config.Settings.Level())
	}

	// Zero-valued processor fields defer to engine defaults.
	opts := config.Processor.Options()
	if opts.QueueCapacity != 0 || opts.Filter != "" {
		t.Errorf("expected zero options to pass through, got %+v", opts)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"metrics without listen", "metrics:\n  enabled: true\n"},
		{"anomaly rule without parameters", "anomaly:\n  - minValue: 0\n    maxValue: 1\n"},
		{"malformed yaml", "settings: ["},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tc.body)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
