package telemetry

import (
	"math"
	"slices"
	"sync"
	"time"
)

// Aggregates summarises one parameter over a time range. Count == 0 is
// the empty-range sentinel; the statistics are zero and must be ignored.
type Aggregates struct {
	Count  int
	Min    float64
	Max    float64
	Avg    float64
	Median float64
	StdDev float64
}

// HistoryStore is a fixed-capacity ring of processed frames with FIFO
// eviction. The processing loop is the sole writer; arbitrary reader
// goroutines get consistent snapshots. The lock covers only the ring
// scan-and-copy, never a query's post-processing: stored frames are
// immutable once appended, so snapshots share their value maps safely.
type HistoryStore struct {
	mu     sync.Mutex
	frames []Frame
	head   int
	size   int
}

// NewHistoryStore creates a store holding up to capacity frames.
func NewHistoryStore(capacity int) *HistoryStore {
	return &HistoryStore{frames: make([]Frame, capacity)}
}

// AddFrame appends a frame, evicting the oldest when full. The frame must
// not be mutated after the call.
func (h *HistoryStore) AddFrame(f Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.size == len(h.frames) {
		h.frames[h.head] = f
		h.head = (h.head + 1) % len(h.frames)
		return
	}
	h.frames[(h.head+h.size)%len(h.frames)] = f
	h.size++
}

// Latest returns the most recently stored frame.
func (h *HistoryStore) Latest() (Frame, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.size == 0 {
		return Frame{}, false
	}
	return h.frames[(h.head+h.size-1)%len(h.frames)], true
}

// Len returns the number of stored frames.
func (h *HistoryStore) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.size
}

// QueryTimeRange returns stored frames with start <= timestamp <= end in
// insertion order. When parameters is non-empty, returned frames carry
// only the requested ids and frames containing none of them are dropped.
// When maxSamples > 0 and more frames match, the
// result is downsampled with a deterministic stride; the first matching
// frame is always included.
func (h *HistoryStore) QueryTimeRange(start, end time.Time, maxSamples int, parameters []string) []Frame {
	matched := h.snapshotRange(start, end)
	if len(matched) == 0 {
		return nil
	}

	if maxSamples > 0 && len(matched) > maxSamples {
		stride := (len(matched) + maxSamples - 1) / maxSamples
		sampled := make([]Frame, 0, maxSamples)
		for i := 0; i < len(matched); i += stride {
			sampled = append(sampled, matched[i])
		}
		matched = sampled
	}

	if len(parameters) == 0 {
		return matched
	}

	narrowed := make([]Frame, 0, len(matched))
	for _, f := range matched {
		nf := Frame{Timestamp: f.Timestamp, Values: make(map[string]Value, len(parameters))}
		for _, id := range parameters {
			if v, ok := f.Values[id]; ok {
				nf.Values[id] = v
			}
		}
		if len(nf.Values) > 0 {
			narrowed = append(narrowed, nf)
		}
	}
	return narrowed
}

// CalculateAggregates computes min/max/avg/median/stddev for one numeric
// parameter over [start, end]. The second result is false when no
// matching samples exist; callers get the zero Aggregates, never an
// error.
func (h *HistoryStore) CalculateAggregates(parameter string, start, end time.Time) (Aggregates, bool) {
	matched := h.snapshotRange(start, end)

	var values []float64
	for _, f := range matched {
		if v, ok := f.Values[parameter]; ok {
			if x, ok := v.Float(); ok {
				values = append(values, x)
			}
		}
	}
	if len(values) == 0 {
		return Aggregates{}, false
	}

	agg := Aggregates{
		Count: len(values),
		Min:   values[0],
		Max:   values[0],
	}

	var sum float64
	for _, v := range values {
		sum += v
		agg.Min = math.Min(agg.Min, v)
		agg.Max = math.Max(agg.Max, v)
	}
	agg.Avg = sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - agg.Avg
		sq += d * d
	}
	agg.StdDev = math.Sqrt(sq / float64(len(values)))

	slices.Sort(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		agg.Median = values[mid]
	} else {
		agg.Median = (values[mid-1] + values[mid]) / 2
	}

	return agg, true
}

// PruneBefore removes frames older than the cutoff and returns how many
// were evicted.
func (h *HistoryStore) PruneBefore(cutoff time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	pruned := 0
	for h.size > 0 && h.frames[h.head].Timestamp.Before(cutoff) {
		h.frames[h.head] = Frame{}
		h.head = (h.head + 1) % len(h.frames)
		h.size--
		pruned++
	}
	return pruned
}

// snapshotRange copies the in-range frame headers under the lock.
func (h *HistoryStore) snapshotRange(start, end time.Time) []Frame {
	h.mu.Lock()
	defer h.mu.Unlock()

	var matched []Frame
	for i := 0; i < h.size; i++ {
		f := h.frames[(h.head+i)%len(h.frames)]
		if f.Timestamp.Before(start) || f.Timestamp.After(end) {
			continue
		}
		matched = append(matched, f)
	}
	return matched
}
