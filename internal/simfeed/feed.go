// Package simfeed generates a synthetic flight-profile telemetry feed.
// It stands in for the simulator transport during development and
// testing: one goroutine produces frames at a fixed rate and pushes them
// into a processor, honoring the single-producer contract.
package simfeed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/simdebrief/flight-telemetry/internal/telemetry"
)

const (
	// DefaultRate is the frame generation rate in frames per second.
	DefaultRate = 100
)

// Sink accepts generated frames. *telemetry.Processor satisfies it.
type Sink interface {
	Push(f telemetry.Frame) (accepted bool, err error)
}

// WithLogger sets the logger for the feed.
func WithLogger(logger *slog.Logger) func(*Feed) {
	return func(f *Feed) {
		f.logger = logger
	}
}

// WithRate sets the generation rate in frames per second.
func WithRate(framesPerSecond int) func(*Feed) {
	return func(f *Feed) {
		f.rate = framesPerSecond
	}
}

// WithSeed fixes the noise generator seed for reproducible runs.
func WithSeed(seed int64) func(*Feed) {
	return func(f *Feed) {
		f.rng = rand.New(rand.NewSource(seed))
	}
}

// Feed drives a flight profile through a Sink until its context is
// cancelled.
type Feed struct {
	sink    Sink
	profile *profile
	rate    int
	rng     *rand.Rand
	logger  *slog.Logger

	running  atomic.Bool
	pushed   atomic.Uint64
	rejected atomic.Uint64
}

// New creates a feed pushing into sink with a discard logger.
func New(sink Sink, options ...func(*Feed)) *Feed {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	f := Feed{
		sink:   sink,
		rate:   DefaultRate,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: logger,
	}

	for _, option := range options {
		option(&f)
	}
	f.profile = newProfile(f.rng)

	return &f
}

// Run generates frames until ctx is cancelled. It blocks the calling
// goroutine; that goroutine is the feed's single producer.
func (f *Feed) Run(ctx context.Context) error {
	if !f.running.CompareAndSwap(false, true) {
		return fmt.Errorf("feed is already running")
	}
	defer f.running.Store(false)

	f.pushed.Store(0)
	f.rejected.Store(0)

	interval := time.Second / time.Duration(f.rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	f.logger.Info("starting flight feed", slog.Int("rate", f.rate))

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("flight feed stopped",
				slog.Uint64("pushed", f.pushed.Load()),
				slog.Uint64("rejected", f.rejected.Load()))
			return nil

		case now := <-ticker.C:
			frame := f.profile.next(now.UTC())
			accepted, err := f.sink.Push(frame)
			if err != nil {
				return fmt.Errorf("pushing frame: %w", err)
			}
			if accepted {
				f.pushed.Add(1)
			} else {
				f.rejected.Add(1)
			}
		}
	}
}

// Pushed returns the number of frames accepted by the sink.
func (f *Feed) Pushed() uint64 {
	return f.pushed.Load()
}

// Rejected returns the number of frames the sink's full queue refused.
func (f *Feed) Rejected() uint64 {
	return f.rejected.Load()
}
