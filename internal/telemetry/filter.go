package telemetry

import (
	"math"
	"sort"
	"time"
)

// Filter smooths successive raw samples of a single parameter. Instances
// are owned by the processing loop and need no internal locking.
type Filter interface {
	// Apply consumes the next raw sample and returns the smoothed value.
	// dt is the elapsed time since the previous sample of the same
	// parameter, zero for the first sample.
	Apply(raw float64, dt time.Duration) float64

	// Reset discards accumulated state. Called on processor restart.
	Reset()
}

// exponentialFilter implements exponential smoothing:
// filtered = (1-alpha)*prev + alpha*raw. The first sample seeds the state
// unchanged.
type exponentialFilter struct {
	alpha  float64
	prev   float64
	seeded bool
}

func newExponentialFilter(alpha float64) *exponentialFilter {
	return &exponentialFilter{alpha: alpha}
}

func (f *exponentialFilter) Apply(raw float64, _ time.Duration) float64 {
	if !f.seeded {
		f.prev = raw
		f.seeded = true
		return raw
	}
	f.prev = (1-f.alpha)*f.prev + f.alpha*raw
	return f.prev
}

func (f *exponentialFilter) Reset() {
	f.prev = 0
	f.seeded = false
}

// rollingMeanFilter averages the last window samples with a running sum.
type rollingMeanFilter struct {
	window []float64
	head   int
	size   int
	sum    float64
}

func newRollingMeanFilter(window int) *rollingMeanFilter {
	return &rollingMeanFilter{window: make([]float64, window)}
}

func (f *rollingMeanFilter) Apply(raw float64, _ time.Duration) float64 {
	if f.size == len(f.window) {
		f.sum -= f.window[f.head]
		f.window[f.head] = raw
		f.head = (f.head + 1) % len(f.window)
	} else {
		f.window[(f.head+f.size)%len(f.window)] = raw
		f.size++
	}
	f.sum += raw
	return f.sum / float64(f.size)
}

func (f *rollingMeanFilter) Reset() {
	f.head, f.size, f.sum = 0, 0, 0
}

// movingMedianFilter returns the median of the last window samples. The
// even-length median is the mean of the two middle samples.
type movingMedianFilter struct {
	window  []float64
	scratch []float64
	head    int
	size    int
}

func newMovingMedianFilter(window int) *movingMedianFilter {
	return &movingMedianFilter{
		window:  make([]float64, window),
		scratch: make([]float64, 0, window),
	}
}

func (f *movingMedianFilter) Apply(raw float64, _ time.Duration) float64 {
	if f.size == len(f.window) {
		f.window[f.head] = raw
		f.head = (f.head + 1) % len(f.window)
	} else {
		f.window[(f.head+f.size)%len(f.window)] = raw
		f.size++
	}

	f.scratch = f.scratch[:0]
	for i := 0; i < f.size; i++ {
		f.scratch = append(f.scratch, f.window[(f.head+i)%len(f.window)])
	}
	sort.Float64s(f.scratch)

	mid := f.size / 2
	if f.size%2 == 1 {
		return f.scratch[mid]
	}
	return (f.scratch[mid-1] + f.scratch[mid]) / 2
}

func (f *movingMedianFilter) Reset() {
	f.head, f.size = 0, 0
}

// lowPassFilter is a first-order RC low-pass. The smoothing factor is
// derived from the sample spacing: alpha = dt / (rc + dt).
type lowPassFilter struct {
	rc     float64
	prev   float64
	seeded bool
}

func newLowPassFilter(cutoffHz float64) *lowPassFilter {
	return &lowPassFilter{rc: 1 / (2 * math.Pi * cutoffHz)}
}

func (f *lowPassFilter) Apply(raw float64, dt time.Duration) float64 {
	if !f.seeded || dt <= 0 {
		f.prev = raw
		f.seeded = true
		return raw
	}
	s := dt.Seconds()
	alpha := s / (f.rc + s)
	f.prev += alpha * (raw - f.prev)
	return f.prev
}

func (f *lowPassFilter) Reset() {
	f.prev = 0
	f.seeded = false
}

// kalmanFilter is a 1-D random-walk Kalman estimator. q is the process
// noise variance, r the measurement noise variance.
type kalmanFilter struct {
	x      float64
	p      float64
	q      float64
	r      float64
	seeded bool
}

func newKalmanFilter() *kalmanFilter {
	return &kalmanFilter{p: 1, q: 0.01, r: 0.5}
}

func (f *kalmanFilter) Apply(raw float64, _ time.Duration) float64 {
	if !f.seeded {
		f.x = raw
		f.seeded = true
		return raw
	}

	f.p += f.q
	k := f.p / (f.p + f.r)
	f.x += k * (raw - f.x)
	f.p *= 1 - k
	return f.x
}

func (f *kalmanFilter) Reset() {
	f.x, f.p, f.seeded = 0, 1, false
}

// filterStage applies the configured smoothing filter to every numeric
// parameter of a frame. Filtered samples are written back as
// double-precision values regardless of the raw sample width; non-numeric
// samples pass through unchanged. State is keyed by parameter id and owned
// by the processing loop.
type filterStage struct {
	factory  func() Filter
	filters  map[string]Filter
	lastSeen map[string]time.Time

	// vectorized batch path, exponential filter only
	vector *vectorExponential
}

func newFilterStage(opts Options) *filterStage {
	s := &filterStage{
		filters:  make(map[string]Filter),
		lastSeen: make(map[string]time.Time),
	}

	switch {
	case opts.CustomFilter != nil:
		s.factory = opts.CustomFilter

	case opts.Filter == FilterRollingMean:
		s.factory = func() Filter { return newRollingMeanFilter(opts.FilterWindow) }

	case opts.Filter == FilterMovingMedian:
		s.factory = func() Filter { return newMovingMedianFilter(opts.FilterWindow) }

	case opts.Filter == FilterLowPass:
		s.factory = func() Filter { return newLowPassFilter(opts.LowPassCutoffHz) }

	case opts.Filter == FilterKalman:
		s.factory = func() Filter { return newKalmanFilter() }

	default:
		s.factory = func() Filter { return newExponentialFilter(opts.FilterAlpha) }
	}

	if opts.Vectorized && opts.CustomFilter == nil && (opts.Filter == FilterExponential || opts.Filter == "") {
		s.vector = newVectorExponential(opts.FilterAlpha)
	}

	return s
}

// applyBatch smooths every frame of a batch in order. The vectorized path
// handles whole batches; the scalar path is the behavioral reference.
func (s *filterStage) applyBatch(frames []Frame) {
	if s.vector != nil {
		s.vector.applyBatch(frames)
		return
	}
	for i := range frames {
		s.apply(frames[i])
	}
}

func (s *filterStage) apply(f Frame) {
	for id, v := range f.Values {
		raw, ok := v.Float()
		if !ok {
			continue
		}

		flt, ok := s.filters[id]
		if !ok {
			flt = s.factory()
			s.filters[id] = flt
		}

		var dt time.Duration
		if last, ok := s.lastSeen[id]; ok {
			dt = f.Timestamp.Sub(last)
		}
		s.lastSeen[id] = f.Timestamp

		f.Values[id] = Float64Value(flt.Apply(raw, dt))
	}
}

func (s *filterStage) reset() {
	clear(s.filters)
	clear(s.lastSeen)
	if s.vector != nil {
		s.vector.reset()
	}
}
