package telemetry

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// BatchFunc receives each processed batch in order. Delivery happens on
// the processing goroutine: a slow callback directly reduces pipeline
// throughput. The slice is reused between batches; callbacks that need
// the frames beyond the call must copy them.
type BatchFunc func(frames []Frame)

// AnomalyFunc receives each anomaly event, synchronously, on the
// processing goroutine.
type AnomalyFunc func(event AnomalyEvent)

type batchSub struct {
	id int
	fn BatchFunc
}

type anomalySub struct {
	id int
	fn AnomalyFunc
}

// dispatcher delivers batches and anomaly events to subscribers in
// registration order. Registration and removal are safe while a dispatch
// is in flight: delivery iterates a snapshot, so a callback removed
// mid-dispatch either finishes its current invocation or is skipped. A
// panic escaping a callback is recovered, logged and counted; it never
// aborts the loop or the remaining callbacks.
type dispatcher struct {
	logger *slog.Logger

	mu       sync.Mutex
	nextID   int
	batch    []batchSub
	anomaly  []anomalySub
	failures atomic.Uint64
}

func newDispatcher(logger *slog.Logger) *dispatcher {
	return &dispatcher{logger: logger}
}

func (d *dispatcher) subscribeBatch(fn BatchFunc) (remove func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextID
	d.nextID++
	d.batch = append(d.batch, batchSub{id: id, fn: fn})

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, s := range d.batch {
			if s.id == id {
				d.batch = append(d.batch[:i:i], d.batch[i+1:]...)
				return
			}
		}
	}
}

func (d *dispatcher) subscribeAnomaly(fn AnomalyFunc) (remove func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextID
	d.nextID++
	d.anomaly = append(d.anomaly, anomalySub{id: id, fn: fn})

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, s := range d.anomaly {
			if s.id == id {
				d.anomaly = append(d.anomaly[:i:i], d.anomaly[i+1:]...)
				return
			}
		}
	}
}

func (d *dispatcher) dispatchBatch(frames []Frame) {
	d.mu.Lock()
	subs := d.batch
	d.mu.Unlock()

	for _, s := range subs {
		d.invoke(func() { s.fn(frames) })
	}
}

func (d *dispatcher) dispatchAnomaly(event AnomalyEvent) {
	d.mu.Lock()
	subs := d.anomaly
	d.mu.Unlock()

	for _, s := range subs {
		d.invoke(func() { s.fn(event) })
	}
}

func (d *dispatcher) callbackFailures() uint64 {
	return d.failures.Load()
}

func (d *dispatcher) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.failures.Add(1)
			d.logger.Error(fmt.Sprintf("subscriber callback panicked: %v", r))
		}
	}()
	fn()
}
