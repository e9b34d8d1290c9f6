package telemetry

import (
	"fmt"
	"math"
	"sync"
	"time"
)

const (
	// DefaultDeviationThreshold is the z-score above which a sample is
	// flagged.
	DefaultDeviationThreshold = 3.0

	// windowCapacity bounds the rolling window of recent samples kept per
	// monitored parameter.
	windowCapacity = 1000

	// minWindowSamples is the history required before deviation scoring
	// starts.
	minWindowSamples = 10
)

// Severity ranks an anomaly for downstream prioritization.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AnomalyEvent describes one flagged sample. Events are transient: they
// are delivered to subscribers and not retained by the core.
type AnomalyEvent struct {
	Parameter string
	Value     float64
	Score     float64
	Timestamp time.Time
	Severity  Severity
}

// ParameterConfig holds per-parameter anomaly thresholds. A sample
// outside [MinValue, MaxValue] is flagged as a range violation; otherwise
// its deviation from the rolling window is scored against
// DeviationThreshold.
type ParameterConfig struct {
	MinValue           float64
	MaxValue           float64
	DeviationThreshold float64
}

// Validate checks threshold consistency. Returned errors wrap
// ErrInvalidConfig.
func (c ParameterConfig) Validate() error {
	if c.MinValue >= c.MaxValue {
		return fmt.Errorf("%w: parameter range [%g, %g] is empty", ErrInvalidConfig, c.MinValue, c.MaxValue)
	}
	if c.DeviationThreshold <= 0 {
		return fmt.Errorf("%w: deviation threshold must be positive, got %g", ErrInvalidConfig, c.DeviationThreshold)
	}
	return nil
}

// rollingWindow keeps a bounded ring of recent samples with running sums
// for O(1) mean and standard deviation.
type rollingWindow struct {
	values []float64
	head   int
	size   int
	sum    float64
	sumSq  float64
}

func newRollingWindow(capacity int) *rollingWindow {
	return &rollingWindow{values: make([]float64, capacity)}
}

func (w *rollingWindow) push(v float64) {
	if w.size == len(w.values) {
		old := w.values[w.head]
		w.sum -= old
		w.sumSq -= old * old
		w.values[w.head] = v
		w.head = (w.head + 1) % len(w.values)
	} else {
		w.values[(w.head+w.size)%len(w.values)] = v
		w.size++
	}
	w.sum += v
	w.sumSq += v * v
}

func (w *rollingWindow) stats() (mean, stddev float64) {
	if w.size == 0 {
		return 0, 0
	}
	n := float64(w.size)
	mean = w.sum / n

	// Running sums can drift a hair negative on constant signals.
	variance := w.sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}

// anomalyDetector scores monitored parameters against their rolling
// windows. Window state is owned by the processing loop; the registration
// map is the only shared state and sits behind a narrow lock so callers
// may enable parameters while the processor runs.
type anomalyDetector struct {
	mu      sync.Mutex
	configs map[string]ParameterConfig

	windows map[string]*rollingWindow
}

func newAnomalyDetector() *anomalyDetector {
	return &anomalyDetector{
		configs: make(map[string]ParameterConfig),
		windows: make(map[string]*rollingWindow),
	}
}

func (d *anomalyDetector) enable(parameters []string, cfg ParameterConfig) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range parameters {
		d.configs[id] = cfg
	}
}

func (d *anomalyDetector) config(parameter string) (ParameterConfig, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cfg, ok := d.configs[parameter]
	return cfg, ok
}

func (d *anomalyDetector) hasConfigs() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.configs) > 0
}

// evaluate scores every monitored numeric parameter of a frame and
// returns the events to dispatch. Unmonitored parameters are skipped.
// Each sample is scored against the window of preceding samples, then
// appended to it, so a single outlier cannot inflate its own baseline.
func (d *anomalyDetector) evaluate(f Frame, events []AnomalyEvent) []AnomalyEvent {
	for id, v := range f.Values {
		cfg, ok := d.config(id)
		if !ok {
			continue
		}
		val, ok := v.Float()
		if !ok {
			continue
		}

		w, ok := d.windows[id]
		if !ok {
			w = newRollingWindow(windowCapacity)
			d.windows[id] = w
		}

		if val < cfg.MinValue || val > cfg.MaxValue {
			events = append(events, AnomalyEvent{
				Parameter: id,
				Value:     val,
				Score:     rangeScore(val, w),
				Timestamp: f.Timestamp,
				Severity:  SeverityCritical,
			})
			w.push(val)
			continue
		}

		if w.size >= minWindowSamples {
			mean, stddev := w.stats()
			// A constant signal never flags, regardless of the sample.
			if stddev > 0 {
				z := math.Abs(val-mean) / stddev
				if z > cfg.DeviationThreshold {
					events = append(events, AnomalyEvent{
						Parameter: id,
						Value:     val,
						Score:     z,
						Timestamp: f.Timestamp,
						Severity:  severityFor(z, cfg.DeviationThreshold),
					})
				}
			}
		}
		w.push(val)
	}
	return events
}

func (d *anomalyDetector) reset() {
	clear(d.windows)
}

// rangeScore reports the deviation score of an out-of-range sample when
// the window supports one, zero otherwise.
func rangeScore(val float64, w *rollingWindow) float64 {
	if w.size < minWindowSamples {
		return 0
	}
	mean, stddev := w.stats()
	if stddev == 0 {
		return 0
	}
	return math.Abs(val-mean) / stddev
}

// severityFor tiers a deviation score at multiples of the threshold.
func severityFor(z, threshold float64) Severity {
	switch {
	case z > 3*threshold:
		return SeverityCritical
	case z > 2*threshold:
		return SeverityHigh
	case z > 1.5*threshold:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
