package telemetry

import (
	"testing"
	"time"
)

func frameAt(ms int64, params map[string]float64) Frame {
	f := NewFrame(time.Unix(0, ms*int64(time.Millisecond)).UTC())
	for id, v := range params {
		f.Set(id, Float64Value(v))
	}
	return f
}

func TestIngressQueue_PushPop(t *testing.T) {
	q := newIngressQueue(3)

	for i := int64(0); i < 3; i++ {
		if !q.push(frameAt(i, nil)) {
			t.Fatalf("push %d rejected on non-full queue", i)
		}
	}

	// Full queue rejects without blocking.
	if q.push(frameAt(3, nil)) {
		t.Error("push on full queue should return false")
	}
	if q.len() != 3 {
		t.Errorf("expected size 3, got %d", q.len())
	}

	for i := int64(0); i < 3; i++ {
		f, ok := q.pop()
		if !ok {
			t.Fatalf("pop %d on non-empty queue returned false", i)
		}
		if got := f.Timestamp.UnixMilli(); got != i {
			t.Errorf("pop %d: expected timestamp %dms, got %dms", i, i, got)
		}
	}

	if _, ok := q.pop(); ok {
		t.Error("pop on empty queue should return false")
	}
}

func TestIngressQueue_Wraparound(t *testing.T) {
	q := newIngressQueue(4)

	next := int64(0)
	expect := int64(0)
	for round := 0; round < 10; round++ {
		for i := 0; i < 3; i++ {
			if !q.push(frameAt(next, nil)) {
				t.Fatalf("push %d rejected", next)
			}
			next++
		}
		for i := 0; i < 3; i++ {
			f, ok := q.pop()
			if !ok {
				t.Fatal("pop returned false")
			}
			if got := f.Timestamp.UnixMilli(); got != expect {
				t.Fatalf("expected frame %d, got %d", expect, got)
			}
			expect++
		}
	}
}

func TestIngressQueue_Drain(t *testing.T) {
	q := newIngressQueue(8)
	for i := int64(0); i < 5; i++ {
		q.push(frameAt(i, nil))
	}

	buf := make([]Frame, 0, 3)
	got := q.drain(buf)
	if len(got) != 3 {
		t.Fatalf("expected 3 drained frames, got %d", len(got))
	}
	for i, f := range got {
		if f.Timestamp.UnixMilli() != int64(i) {
			t.Errorf("drained frame %d out of order: %d", i, f.Timestamp.UnixMilli())
		}
	}

	got = q.drain(got[:0])
	if len(got) != 2 {
		t.Fatalf("expected 2 remaining frames, got %d", len(got))
	}
	if got = q.drain(got[:0]); len(got) != 0 {
		t.Errorf("drain on empty queue returned %d frames", len(got))
	}
}

// One producer and one consumer running concurrently must neither lose
// nor duplicate frames except for counted full-queue drops.
func TestIngressQueue_SingleProducerSingleConsumer(t *testing.T) {
	const total = 10_000

	q := newIngressQueue(64)
	dropped := 0
	done := make(chan []int64)

	go func() {
		var seen []int64
		for {
			f, ok := q.pop()
			if !ok {
				time.Sleep(10 * time.Microsecond)
				continue
			}
			if f.Timestamp.UnixMilli() == total {
				break // sentinel
			}
			seen = append(seen, f.Timestamp.UnixMilli())
		}
		done <- seen
	}()

	for i := int64(0); i < total; i++ {
		if !q.push(frameAt(i, nil)) {
			dropped++
		}
	}
	// Sentinel terminates the consumer; retry until accepted.
	for !q.push(frameAt(total, nil)) {
		time.Sleep(10 * time.Microsecond)
	}

	seen := <-done
	if len(seen)+dropped != total {
		t.Fatalf("received %d + dropped %d != pushed %d", len(seen), dropped, total)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] <= seen[i-1] {
			t.Fatalf("frames out of order or duplicated: %d after %d", seen[i], seen[i-1])
		}
	}
}
