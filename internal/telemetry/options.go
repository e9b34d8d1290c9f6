package telemetry

import (
	"fmt"
	"time"
)

// FilterAlgorithm selects the smoothing algorithm applied to numeric
// parameters before the derivative and anomaly stages.
type FilterAlgorithm string

const (
	FilterExponential   FilterAlgorithm = "exponential"
	FilterRollingMean   FilterAlgorithm = "rolling-mean"
	FilterMovingMedian  FilterAlgorithm = "moving-median"
	FilterLowPass       FilterAlgorithm = "low-pass"
	FilterKalman        FilterAlgorithm = "kalman"
)

const (
	// DefaultQueueCapacity bounds the ingress queue between the feed and
	// the processing loop.
	DefaultQueueCapacity = 4096

	// DefaultBatchSize is the maximum number of frames drained per loop
	// iteration.
	DefaultBatchSize = 64

	// DefaultHistoryCapacity bounds the in-memory history ring.
	DefaultHistoryCapacity = 10_000

	// DefaultFilterAlpha is the exponential smoothing factor.
	DefaultFilterAlpha = 0.2

	// DefaultFilterWindow is the window length for the rolling-mean and
	// moving-median filters.
	DefaultFilterWindow = 16

	// DefaultLowPassCutoffHz is the low-pass filter cutoff frequency.
	DefaultLowPassCutoffHz = 1.0

	// DefaultIdleSleep is how long the processing loop sleeps when the
	// ingress queue is empty.
	DefaultIdleSleep = time.Millisecond
)

// Options configures a Processor instance. Options are immutable once the
// processor is constructed.
type Options struct {
	// QueueCapacity is the ingress queue size. Frames pushed while the
	// queue is full are dropped and counted, never blocking the feed.
	QueueCapacity int

	// BatchSize caps how many frames one loop iteration drains and
	// delivers to batch subscribers.
	BatchSize int

	// HistoryCapacity is the history ring size; the oldest frame is
	// evicted on overflow.
	HistoryCapacity int

	// Filter selects the smoothing algorithm. Ignored when CustomFilter
	// is set.
	Filter FilterAlgorithm

	// FilterAlpha is the smoothing factor for the exponential filter.
	// Must be in (0, 1].
	FilterAlpha float64

	// FilterWindow is the window length for the rolling-mean and
	// moving-median filters.
	FilterWindow int

	// LowPassCutoffHz is the low-pass filter cutoff frequency.
	LowPassCutoffHz float64

	// CustomFilter supplies per-parameter filter instances and takes
	// precedence over Filter when non-nil.
	CustomFilter func() Filter

	// EnableDerivative turns on the rate-of-change stage. Off by default;
	// enabling costs one pass over the previous frame per current frame.
	EnableDerivative bool

	// Vectorized opts in to the batch-width filter execution path. Only
	// the exponential filter has a vectorized implementation; other
	// algorithms fall back to the scalar path.
	Vectorized bool

	// IdleSleep is the bounded wait applied when the queue is empty.
	IdleSleep time.Duration
}

// DefaultOptions returns the options used when a zero value is supplied
// for a field.
func DefaultOptions() Options {
	return Options{
		QueueCapacity:   DefaultQueueCapacity,
		BatchSize:       DefaultBatchSize,
		HistoryCapacity: DefaultHistoryCapacity,
		Filter:          FilterExponential,
		FilterAlpha:     DefaultFilterAlpha,
		FilterWindow:    DefaultFilterWindow,
		LowPassCutoffHz: DefaultLowPassCutoffHz,
		IdleSleep:       DefaultIdleSleep,
	}
}

// withDefaults fills zero-valued fields from DefaultOptions.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.QueueCapacity == 0 {
		o.QueueCapacity = def.QueueCapacity
	}
	if o.BatchSize == 0 {
		o.BatchSize = def.BatchSize
	}
	if o.HistoryCapacity == 0 {
		o.HistoryCapacity = def.HistoryCapacity
	}
	if o.Filter == "" {
		o.Filter = def.Filter
	}
	if o.FilterAlpha == 0 {
		o.FilterAlpha = def.FilterAlpha
	}
	if o.FilterWindow == 0 {
		o.FilterWindow = def.FilterWindow
	}
	if o.LowPassCutoffHz == 0 {
		o.LowPassCutoffHz = def.LowPassCutoffHz
	}
	if o.IdleSleep == 0 {
		o.IdleSleep = def.IdleSleep
	}
	return o
}

// Validate checks option consistency. Returned errors wrap
// ErrInvalidConfig.
func (o Options) Validate() error {
	if o.QueueCapacity < 0 {
		return fmt.Errorf("%w: queue capacity must be positive, got %d", ErrInvalidConfig, o.QueueCapacity)
	}
	if o.BatchSize < 0 {
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidConfig, o.BatchSize)
	}
	if o.HistoryCapacity < 0 {
		return fmt.Errorf("%w: history capacity must be positive, got %d", ErrInvalidConfig, o.HistoryCapacity)
	}
	if o.FilterAlpha < 0 || o.FilterAlpha > 1 {
		return fmt.Errorf("%w: filter alpha must be in (0, 1], got %g", ErrInvalidConfig, o.FilterAlpha)
	}
	if o.FilterWindow < 0 {
		return fmt.Errorf("%w: filter window must be positive, got %d", ErrInvalidConfig, o.FilterWindow)
	}
	if o.LowPassCutoffHz < 0 {
		return fmt.Errorf("%w: low-pass cutoff must be positive, got %g", ErrInvalidConfig, o.LowPassCutoffHz)
	}
	if o.CustomFilter == nil {
		switch o.Filter {
		case FilterExponential, FilterRollingMean, FilterMovingMedian, FilterLowPass, FilterKalman, "":
		default:
			return fmt.Errorf("%w: unknown filter algorithm '%s'", ErrInvalidConfig, o.Filter)
		}
	}
	if o.IdleSleep < 0 {
		return fmt.Errorf("%w: idle sleep must be positive, got %s", ErrInvalidConfig, o.IdleSleep)
	}
	return nil
}
