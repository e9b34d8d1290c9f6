package telemetry

import (
	"math"
	"testing"
	"time"
)

func TestHistoryStore_Eviction(t *testing.T) {
	h := NewHistoryStore(100)

	const n = 150
	for i := int64(0); i < n; i++ {
		h.AddFrame(frameAt(i, map[string]float64{"altitude": float64(i)}))
	}

	if h.Len() != 100 {
		t.Fatalf("expected 100 stored frames, got %d", h.Len())
	}

	// Exactly the oldest n-capacity frames are gone.
	all := h.QueryTimeRange(time.Unix(0, 0), time.Unix(0, n*int64(time.Millisecond)), 0, nil)
	if len(all) != 100 {
		t.Fatalf("expected 100 frames from full-range query, got %d", len(all))
	}
	if got := all[0].Timestamp.UnixMilli(); got != 50 {
		t.Errorf("expected oldest surviving frame at 50ms, got %dms", got)
	}
	if got := all[99].Timestamp.UnixMilli(); got != 149 {
		t.Errorf("expected newest frame at 149ms, got %dms", got)
	}
}

func TestHistoryStore_QueryTimeRange(t *testing.T) {
	h := NewHistoryStore(100)
	for i := int64(0); i < 50; i++ {
		h.AddFrame(frameAt(i, map[string]float64{"altitude": float64(i), "airspeed": 120}))
	}

	start := time.UnixMilli(10).UTC()
	end := time.UnixMilli(19).UTC()

	got := h.QueryTimeRange(start, end, 0, nil)
	if len(got) != 10 {
		t.Fatalf("expected 10 frames, got %d", len(got))
	}
	for i, f := range got {
		if f.Timestamp.Before(start) || f.Timestamp.After(end) {
			t.Errorf("frame %d at %s outside requested range", i, f.Timestamp)
		}
	}

	t.Run("parameter narrowing", func(t *testing.T) {
		got := h.QueryTimeRange(start, end, 0, []string{"airspeed"})
		for _, f := range got {
			if _, ok := f.Get("altitude"); ok {
				t.Fatal("narrowed frame still carries altitude")
			}
			if _, ok := f.Get("airspeed"); !ok {
				t.Fatal("narrowed frame lost requested parameter")
			}
		}
	})

	t.Run("max samples is deterministic", func(t *testing.T) {
		a := h.QueryTimeRange(time.UnixMilli(0), time.UnixMilli(100), 10, nil)
		b := h.QueryTimeRange(time.UnixMilli(0), time.UnixMilli(100), 10, nil)

		if len(a) == 0 || len(a) > 10 {
			t.Fatalf("expected at most 10 samples, got %d", len(a))
		}
		if len(a) != len(b) {
			t.Fatalf("repeated query returned different sizes: %d vs %d", len(a), len(b))
		}
		for i := range a {
			if !a[i].Timestamp.Equal(b[i].Timestamp) {
				t.Fatal("repeated query returned different frames")
			}
		}
		if a[0].Timestamp.UnixMilli() != 0 {
			t.Error("first matching frame must always be included")
		}
	})

	t.Run("empty range", func(t *testing.T) {
		if got := h.QueryTimeRange(time.UnixMilli(1000), time.UnixMilli(2000), 0, nil); got != nil {
			t.Errorf("expected nil result, got %d frames", len(got))
		}
	})
}

func TestHistoryStore_Latest(t *testing.T) {
	h := NewHistoryStore(10)

	if _, ok := h.Latest(); ok {
		t.Error("empty store must report no latest frame")
	}

	for i := int64(0); i < 25; i++ {
		h.AddFrame(frameAt(i, nil))
	}
	f, ok := h.Latest()
	if !ok {
		t.Fatal("expected a latest frame")
	}
	if got := f.Timestamp.UnixMilli(); got != 24 {
		t.Errorf("expected latest frame at 24ms, got %dms", got)
	}
}

func TestHistoryStore_CalculateAggregates(t *testing.T) {
	h := NewHistoryStore(100)
	for i, v := range []float64{10, 20, 30, 40, 50} {
		h.AddFrame(frameAt(int64(i), map[string]float64{"altitude": v}))
	}

	agg, ok := h.CalculateAggregates("altitude", time.UnixMilli(0), time.UnixMilli(100))
	if !ok {
		t.Fatal("expected aggregates for populated range")
	}
	if agg.Count != 5 {
		t.Errorf("expected count 5, got %d", agg.Count)
	}
	if agg.Min != 10 || agg.Max != 50 {
		t.Errorf("expected min/max 10/50, got %g/%g", agg.Min, agg.Max)
	}
	if agg.Avg != 30 {
		t.Errorf("expected avg 30, got %g", agg.Avg)
	}
	if agg.Median != 30 {
		t.Errorf("expected median 30, got %g", agg.Median)
	}
	if math.Abs(agg.StdDev-math.Sqrt(200)) > 1e-12 {
		t.Errorf("expected stddev sqrt(200), got %g", agg.StdDev)
	}

	t.Run("even sample count median", func(t *testing.T) {
		agg, ok := h.CalculateAggregates("altitude", time.UnixMilli(0), time.UnixMilli(3))
		if !ok {
			t.Fatal("expected aggregates")
		}
		if agg.Count != 4 || agg.Median != 25 {
			t.Errorf("expected count 4 median 25, got %d / %g", agg.Count, agg.Median)
		}
	})

	t.Run("empty range sentinel", func(t *testing.T) {
		agg, ok := h.CalculateAggregates("altitude", time.UnixMilli(500), time.UnixMilli(600))
		if ok {
			t.Error("expected ok=false for empty range")
		}
		if agg != (Aggregates{}) {
			t.Errorf("expected zero aggregates sentinel, got %+v", agg)
		}
	})

	t.Run("unknown parameter sentinel", func(t *testing.T) {
		if _, ok := h.CalculateAggregates("vspeed", time.UnixMilli(0), time.UnixMilli(100)); ok {
			t.Error("expected ok=false for unknown parameter")
		}
	})
}

func TestHistoryStore_PruneBefore(t *testing.T) {
	h := NewHistoryStore(100)
	for i := int64(0); i < 50; i++ {
		h.AddFrame(frameAt(i, nil))
	}

	pruned := h.PruneBefore(time.UnixMilli(20))
	if pruned != 20 {
		t.Fatalf("expected 20 pruned frames, got %d", pruned)
	}
	if h.Len() != 30 {
		t.Errorf("expected 30 remaining frames, got %d", h.Len())
	}

	f, _ := h.Latest()
	if got := f.Timestamp.UnixMilli(); got != 49 {
		t.Errorf("latest frame changed after prune: %dms", got)
	}

	all := h.QueryTimeRange(time.UnixMilli(0), time.UnixMilli(100), 0, nil)
	if got := all[0].Timestamp.UnixMilli(); got != 20 {
		t.Errorf("expected oldest frame at 20ms after prune, got %dms", got)
	}
}

// Concurrent readers against a writing loop must always see consistent
// snapshots. Run with -race.
func TestHistoryStore_ConcurrentReaders(t *testing.T) {
	h := NewHistoryStore(256)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := int64(0); i < 2000; i++ {
			h.AddFrame(frameAt(i, map[string]float64{"altitude": float64(i)}))
		}
	}()

	for {
		select {
		case <-done:
			return
		default:
		}

		frames := h.QueryTimeRange(time.UnixMilli(0), time.UnixMilli(5000), 0, nil)
		for i := 1; i < len(frames); i++ {
			if frames[i].Timestamp.Before(frames[i-1].Timestamp) {
				t.Fatal("snapshot frames out of order")
			}
		}
		h.CalculateAggregates("altitude", time.UnixMilli(0), time.UnixMilli(5000))
		h.Latest()
	}
}
