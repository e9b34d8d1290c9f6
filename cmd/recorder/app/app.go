package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/simdebrief/flight-telemetry/internal/simfeed"
	"github.com/simdebrief/flight-telemetry/internal/storage"
	"github.com/simdebrief/flight-telemetry/internal/telemetry"
)

const (
	storageDir = "data"

	feedSource = "simfeed"
)

// Run wires the synthetic feed, the processing engine and the flight
// archive together and blocks until ctx is cancelled.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	store, err := createStorage(&config.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	defer store.Close()

	proc, err := telemetry.New(config.Processor.Options(), telemetry.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("creating processor: %w", err)
	}

	for i, rule := range config.Anomaly {
		cfg := telemetry.ParameterConfig{
			MinValue:           rule.MinValue,
			MaxValue:           rule.MaxValue,
			DeviationThreshold: rule.DeviationThreshold,
		}
		if err := proc.EnableAnomalyDetection(rule.Parameters, cfg); err != nil {
			return fmt.Errorf("enabling anomaly rule %d: %w", i, err)
		}
	}

	sessionID, err := store.CreateSession(ctx, feedSource, config.Settings.Aircraft, config)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	logger.Info("recording session created", slog.Int64("session", sessionID))

	archiverOpts := []func(*storage.Archiver){storage.WithArchiverLogger(logger)}
	if config.Storage.ArchiveQueueSize > 0 {
		archiverOpts = append(archiverOpts, storage.WithArchiverQueueSize(config.Storage.ArchiveQueueSize))
	}
	archiver := storage.NewArchiver(store, sessionID, archiverOpts...)

	if config.Metrics.Enabled {
		shutdown, err := serveMetrics(proc, config.Metrics.Listen, logger)
		if err != nil {
			return fmt.Errorf("starting metrics endpoint: %w", err)
		}
		defer shutdown()
	}

	proc.Start()
	archiver.Start(proc)

	feedOpts := []func(*simfeed.Feed){simfeed.WithLogger(logger)}
	if config.Feed.Rate > 0 {
		feedOpts = append(feedOpts, simfeed.WithRate(config.Feed.Rate))
	}
	if config.Feed.Seed != 0 {
		feedOpts = append(feedOpts, simfeed.WithSeed(config.Feed.Seed))
	}
	feed := simfeed.New(proc, feedOpts...)

	runErr := feed.Run(ctx)

	proc.Stop()
	archiver.Stop()

	logger.Info("session summary",
		slog.Int64("session", sessionID),
		slog.String("processed", humanize.Comma(int64(proc.ProcessedSamples()))),
		slog.String("dropped", humanize.Comma(int64(proc.DroppedSamples()))),
		slog.String("archived", humanize.Comma(int64(archiver.StoredFrames()))),
		slog.String("rate", fmt.Sprintf("%.1f frames/s", proc.SamplesPerSecond())),
		slog.Duration("avg_processing", proc.AverageProcessingTime()))

	return runErr
}

// serveMetrics exposes the processor's collector on /metrics with a
// per-instance registry.
func serveMetrics(proc *telemetry.Processor, listen string, logger *slog.Logger) (shutdown func(), err error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(telemetry.NewCollector(proc, "recorder")); err != nil {
		return nil, fmt.Errorf("registering collector: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: listen, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics endpoint failed", slog.Any("error", err))
		}
	}()
	logger.Info("metrics endpoint listening", slog.String("addr", listen))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func createStorage(config *StorageConfig) (*storage.SqliteStore, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current working directory: %w", err)
	}

	var dbPath string
	if config.DataDirectory != "" {
		dbPath = filepath.Join(wd, config.DataDirectory)
	} else {
		dbPath = filepath.Join(wd, storageDir)
	}

	stat, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("storage directory '%s' does not exist: %w", dbPath, err)
		}
		return nil, fmt.Errorf("checking storage directory '%s': %w", dbPath, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("invalid storage directory '%s'", dbPath)
	}

	dbPath = filepath.Join(dbPath, fmt.Sprintf("flight_session_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	return storage.NewSqliteStore(dbPath), nil
}
