package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/simdebrief/flight-telemetry/internal/telemetry"
)

// fakeStore records writes in memory so archiver tests don't need a
// database.
type fakeStore struct {
	mu      sync.Mutex
	frames  []telemetry.Frame
	events  []telemetry.AnomalyEvent
	session int64
}

func (f *fakeStore) CreateSession(ctx context.Context, source, aircraft string, config any) (int64, error) {
	return 1, nil
}

func (f *fakeStore) Session(ctx context.Context, id int64) (*FlightSession, error) {
	return &FlightSession{ID: id}, nil
}

func (f *fakeStore) Sessions(ctx context.Context) ([]*FlightSession, error) {
	return nil, nil
}

func (f *fakeStore) StoreFrames(ctx context.Context, sessionID int64, frames []telemetry.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = sessionID
	f.frames = append(f.frames, frames...)
	return nil
}

func (f *fakeStore) StoreAnomaly(ctx context.Context, sessionID int64, ev telemetry.AnomalyEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeStore) ReadFrames(ctx context.Context, sessionID int64, opts ...ReaderOption) (*FrameReader, error) {
	return nil, ErrNoData
}

func (f *fakeStore) ReadAnomalies(ctx context.Context, sessionID int64) ([]telemetry.AnomalyEvent, error) {
	return nil, nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

// fakePipeline captures subscriptions and lets the test drive callbacks
// directly.
type fakePipeline struct {
	batch   telemetry.BatchFunc
	anomaly telemetry.AnomalyFunc
	removed int
}

func (p *fakePipeline) OnProcessedBatch(fn telemetry.BatchFunc) func() {
	p.batch = fn
	return func() { p.removed++ }
}

func (p *fakePipeline) OnAnomaly(fn telemetry.AnomalyFunc) func() {
	p.anomaly = fn
	return func() { p.removed++ }
}

func TestArchiver_StoresDeliveredBatches(t *testing.T) {
	store := &fakeStore{}
	pipe := &fakePipeline{}
	a := NewArchiver(store, 7)

	a.Start(pipe)

	batch := []telemetry.Frame{
		testFrame(0, map[string]float64{"altitude": 1000}),
		testFrame(1, map[string]float64{"altitude": 1001}),
	}
	pipe.batch(batch)
	pipe.anomaly(telemetry.AnomalyEvent{
		Parameter: "altitude",
		Value:     49_000,
		Score:     9,
		Timestamp: time.UnixMilli(1).UTC(),
		Severity:  telemetry.SeverityHigh,
	})

	a.Stop()

	if got := store.frameCount(); got != 2 {
		t.Errorf("expected 2 stored frames, got %d", got)
	}
	if store.session != 7 {
		t.Errorf("frames stored under session %d, expected 7", store.session)
	}
	if len(store.events) != 1 {
		t.Errorf("expected 1 stored anomaly, got %d", len(store.events))
	}
	if a.StoredFrames() != 2 {
		t.Errorf("stored counter reports %d, expected 2", a.StoredFrames())
	}
	if pipe.removed != 2 {
		t.Errorf("expected both subscriptions removed, got %d", pipe.removed)
	}
}

func TestArchiver_CopiesCallbackSlice(t *testing.T) {
	store := &fakeStore{}
	pipe := &fakePipeline{}
	a := NewArchiver(store, 1)

	a.Start(pipe)

	// The dispatcher reuses its batch slice; mutating it after the
	// callback must not corrupt what gets stored.
	batch := []telemetry.Frame{testFrame(5, map[string]float64{"altitude": 1000})}
	pipe.batch(batch)
	batch[0] = testFrame(99, nil)

	a.Stop()

	if got := store.frameCount(); got != 1 {
		t.Fatalf("expected 1 stored frame, got %d", got)
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if got := store.frames[0].Timestamp.UnixMilli(); got != 5 {
		t.Errorf("stored frame mutated after callback: %dms", got)
	}
}

func TestArchiver_DropsWhenBufferFull(t *testing.T) {
	store := &fakeStore{}
	a := NewArchiver(store, 1, WithArchiverQueueSize(1))

	// Not started: no writer drains the buffer, so the second enqueue
	// must drop instead of blocking the caller.
	a.frames = make(chan []telemetry.Frame, 1)
	a.handleBatch([]telemetry.Frame{testFrame(0, nil)})
	a.handleBatch([]telemetry.Frame{testFrame(1, nil)})

	if a.DroppedBatches() != 1 {
		t.Errorf("expected 1 dropped batch, got %d", a.DroppedBatches())
	}
}

func TestArchiver_StartStopIdempotent(t *testing.T) {
	store := &fakeStore{}
	pipe := &fakePipeline{}
	a := NewArchiver(store, 1)

	a.Stop() // stop before start is a no-op

	a.Start(pipe)
	a.Start(pipe)
	a.Stop()
	a.Stop()

	if pipe.removed != 2 {
		t.Errorf("expected exactly one unsubscribe pair, got %d removals", pipe.removed)
	}
}
