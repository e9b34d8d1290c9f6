package storage

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/simdebrief/flight-telemetry/internal/telemetry"
)

const defaultArchiveQueueSize = 256

// Pipeline is the subscription surface of the telemetry processor the
// archiver attaches to.
type Pipeline interface {
	OnProcessedBatch(fn telemetry.BatchFunc) (remove func())
	OnAnomaly(fn telemetry.AnomalyFunc) (remove func())
}

// WithArchiverLogger sets the logger for the archiver.
func WithArchiverLogger(logger *slog.Logger) func(*Archiver) {
	return func(a *Archiver) {
		a.logger = logger
	}
}

// WithArchiverQueueSize sets the number of processed batches the
// archiver buffers between the processor's callback and the database
// writer.
func WithArchiverQueueSize(size int) func(*Archiver) {
	return func(a *Archiver) {
		a.queueSize = size
	}
}

// Archiver persists processed frames and anomaly events into a Store.
// The processor delivers callbacks synchronously on its worker
// goroutine, so the archiver only copies and enqueues there; a dedicated
// writer goroutine performs the actual database transactions. When the
// writer falls behind and the buffer fills, batches are dropped and
// counted rather than stalling the pipeline.
type Archiver struct {
	store     Store
	sessionID int64
	logger    *slog.Logger
	queueSize int

	frames chan []telemetry.Frame
	events chan telemetry.AnomalyEvent

	dropped atomic.Uint64
	stored  atomic.Uint64

	running atomic.Bool
	stopc   chan struct{}
	wg      sync.WaitGroup

	removeBatch   func()
	removeAnomaly func()
}

// NewArchiver creates an archiver writing into the given session with a
// discard logger.
func NewArchiver(store Store, sessionID int64, options ...func(*Archiver)) *Archiver {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	a := Archiver{
		store:     store,
		sessionID: sessionID,
		logger:    logger,
		queueSize: defaultArchiveQueueSize,
	}

	for _, option := range options {
		option(&a)
	}

	return &a
}

// Start launches the writer goroutine and subscribes to the pipeline.
// It is a no-op if the archiver is already running.
func (a *Archiver) Start(p Pipeline) {
	if !a.running.CompareAndSwap(false, true) {
		return
	}

	a.frames = make(chan []telemetry.Frame, a.queueSize)
	a.events = make(chan telemetry.AnomalyEvent, a.queueSize)
	a.stopc = make(chan struct{})

	a.wg.Add(1)
	go a.write()

	a.removeBatch = p.OnProcessedBatch(a.handleBatch)
	a.removeAnomaly = p.OnAnomaly(a.handleAnomaly)
}

// Stop unsubscribes from the pipeline, flushes everything still queued
// and waits for the writer to finish. It is a no-op if the archiver is
// not running.
func (a *Archiver) Stop() {
	if !a.running.CompareAndSwap(true, false) {
		return
	}

	a.removeBatch()
	a.removeAnomaly()

	close(a.stopc)
	a.wg.Wait()

	if n := a.dropped.Load(); n > 0 {
		a.logger.Warn("archiver dropped batches on a full buffer", slog.Uint64("batches", n))
	}
}

// StoredFrames returns the number of frames written to the store.
func (a *Archiver) StoredFrames() uint64 {
	return a.stored.Load()
}

// DroppedBatches returns the number of batches discarded because the
// writer could not keep up.
func (a *Archiver) DroppedBatches() uint64 {
	return a.dropped.Load()
}

// handleBatch runs on the processor's worker goroutine. The delivered
// slice is reused by the dispatcher, so it is copied before handoff.
func (a *Archiver) handleBatch(frames []telemetry.Frame) {
	batch := make([]telemetry.Frame, len(frames))
	copy(batch, frames)

	select {
	case a.frames <- batch:
	default:
		a.dropped.Add(1)
	}
}

func (a *Archiver) handleAnomaly(ev telemetry.AnomalyEvent) {
	select {
	case a.events <- ev:
	default:
		a.dropped.Add(1)
	}
}

func (a *Archiver) write() {
	defer a.wg.Done()

	ctx := context.Background()

	for {
		select {
		case batch := <-a.frames:
			a.storeBatch(ctx, batch)

		case ev := <-a.events:
			a.storeEvent(ctx, ev)

		case <-a.stopc:
			// Unsubscribed already; drain whatever is buffered.
			for {
				select {
				case batch := <-a.frames:
					a.storeBatch(ctx, batch)
				case ev := <-a.events:
					a.storeEvent(ctx, ev)
				default:
					return
				}
			}
		}
	}
}

func (a *Archiver) storeBatch(ctx context.Context, batch []telemetry.Frame) {
	if err := a.store.StoreFrames(ctx, a.sessionID, batch); err != nil {
		a.logger.Error("storing frames", slog.Any("error", err))
		return
	}
	a.stored.Add(uint64(len(batch)))
}

func (a *Archiver) storeEvent(ctx context.Context, ev telemetry.AnomalyEvent) {
	if err := a.store.StoreAnomaly(ctx, a.sessionID, ev); err != nil {
		a.logger.Error("storing anomaly", slog.Any("error", err))
	}
}
