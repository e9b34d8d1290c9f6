package app

import (
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"time"

	"github.com/simdebrief/flight-telemetry/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	return plotParameters(ctx, store, config, logger)
}

func plotParameters(ctx context.Context, store *storage.SqliteStore, config *Config, logger *slog.Logger) error {
	opts := []storage.ReaderOption{storage.WithParameters(config.Parameters...)}
	var filters []any

	switch {
	case config.MinTimestamp != nil && config.MaxTimestamp != nil:
		opts = append(opts, storage.WithTimeRange(config.MinTimestamp.UTC(), config.MaxTimestamp.UTC()))

		filters = append(filters,
			slog.String("minTimestamp", config.MinTimestamp.UTC().Format(time.DateTime)),
			slog.String("maxTimestamp", config.MaxTimestamp.UTC().Format(time.DateTime)))

	case config.MinTimestamp != nil:
		opts = append(opts, storage.WithStartTime(config.MinTimestamp.UTC()))
		filters = append(filters, slog.String("minTimestamp", config.MinTimestamp.UTC().Format(time.DateTime)))

	case config.MaxTimestamp != nil:
		opts = append(opts, storage.WithEndTime(config.MaxTimestamp.UTC()))
		filters = append(filters, slog.String("maxTimestamp", config.MaxTimestamp.UTC().Format(time.DateTime)))
	}

	logger.Info("reader configuration", filters...)

	reader, err := store.ReadFrames(ctx, config.SessionID, opts...)
	if err != nil {
		return err
	}
	defer reader.Close()

	data := NewTraceData(config.Parameters)
	for reader.Next(ctx) {
		data.Update(reader.Current())
	}
	if err = reader.Error(); err != nil {
		return err
	}
	if data.Empty() {
		return fmt.Errorf("session %d holds no samples for the requested parameters", config.SessionID)
	}

	if !config.NoAnomalies {
		events, err := store.ReadAnomalies(ctx, config.SessionID)
		if err != nil {
			return fmt.Errorf("reading anomalies: %w", err)
		}
		data.AddAnomalies(events)
	}

	logger.Info("finished reading samples",
		slog.Group("stats",
			slog.Int("samples", data.Samples()),
			slog.Int("anomalies", len(data.Anomalies)),
			slog.String("start", data.TimestampStart.Local().Format(time.DateTime)),
			slog.String("end", data.TimestampEnd.Local().Format(time.DateTime)),
		))

	renderer, err := NewTraceRenderer(RenderConfig{
		Width:      config.Width,
		Height:     config.Height,
		ColorTheme: config.Theme,
	})
	if err != nil {
		return fmt.Errorf("creating trace renderer: %w", err)
	}

	logger.Info("rendering traces",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.String("theme", string(config.Theme)),
			slog.Int("width", config.Width),
			slog.Int("height", config.Height),
		))

	img, err := renderer.Render(data)
	if err != nil {
		return fmt.Errorf("rendering traces: %w", err)
	}

	if config.FontPath != "" {
		annotator, err := NewAnnotator(config.FontPath, config.Theme)
		if err != nil {
			return fmt.Errorf("creating annotator: %w", err)
		}
		if err := annotator.Annotate(img, data); err != nil {
			return fmt.Errorf("annotating traces: %w", err)
		}
	} else {
		logger.Warn("no font configured, skipping scale annotations")
	}

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	switch config.Format {
	case ImagePNG:
		err = png.Encode(out, img)

	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{
			Quality: 98,
		})
	}
	return err
}
