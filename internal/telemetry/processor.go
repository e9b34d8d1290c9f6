package telemetry

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// WithLogger sets the logger for the processor.
func WithLogger(logger *slog.Logger) func(*Processor) {
	return func(p *Processor) {
		p.logger = logger
	}
}

// Processor is the real-time telemetry processing engine. One feed
// goroutine pushes frames into a bounded queue; one dedicated processing
// goroutine drains it and runs each frame through smoothing, derivative
// and anomaly stages before appending it to the in-memory history and
// delivering it to subscribers.
//
// The single-consumer design means all stage state is owned by the
// processing goroutine with no internal locking; the history store and
// the subscriber registry are the only structures shared with caller
// goroutines. Multiple Processor instances may run in parallel, but each
// instance supports exactly one producer.
type Processor struct {
	opts   Options
	logger *slog.Logger

	queue    *ingressQueue
	filters  *filterStage
	deriv    *derivativeStage
	detector *anomalyDetector
	history  *HistoryStore
	dispatch *dispatcher

	mu      sync.Mutex // guards Start/Stop transitions
	running atomic.Bool
	stopc   chan struct{}
	wg      sync.WaitGroup

	processed     atomic.Uint64
	dropped       atomic.Uint64
	procNanos     atomic.Int64
	startedAtNano atomic.Int64
}

// New creates a processor from the given options. Zero-valued option
// fields take their defaults; invalid options are reported as an
// ErrInvalidConfig error.
func New(opts Options, options ...func(*Processor)) (*Processor, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	p := Processor{
		opts:     opts,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
		queue:    newIngressQueue(opts.QueueCapacity),
		filters:  newFilterStage(opts),
		deriv:    newDerivativeStage(),
		detector: newAnomalyDetector(),
		history:  NewHistoryStore(opts.HistoryCapacity),
	}

	for _, option := range options {
		option(&p)
	}
	p.dispatch = newDispatcher(p.logger)

	return &p, nil
}

// Start launches the processing loop. Calling Start on a running
// processor is a no-op. Stage state and diagnostics counters reset on
// every (re)start; registered anomaly parameters and subscribers are
// kept.
func (p *Processor) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running.Load() {
		return
	}

	p.filters.reset()
	p.deriv.reset()
	p.detector.reset()
	p.processed.Store(0)
	p.dropped.Store(0)
	p.procNanos.Store(0)
	p.startedAtNano.Store(time.Now().UnixNano())

	p.stopc = make(chan struct{})
	p.running.Store(true)
	p.wg.Add(1)
	go p.run(p.stopc)

	p.logger.Info("telemetry processor started",
		slog.Int("queueCapacity", p.opts.QueueCapacity),
		slog.Int("batchSize", p.opts.BatchSize),
		slog.String("filter", string(p.opts.Filter)),
		slog.Bool("derivative", p.opts.EnableDerivative),
		slog.Bool("vectorized", p.opts.Vectorized))
}

// Stop halts the processing loop and blocks until it has exited. Frames
// still queued at this point are dropped; this is the documented
// shutdown policy, not an error. Stop on a stopped processor is a no-op.
func (p *Processor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running.Load() {
		return
	}

	close(p.stopc)
	p.wg.Wait()
	p.running.Store(false)

	if n := p.queue.len(); n > 0 {
		p.logger.Info("telemetry processor stopped", slog.Int("undrainedFrames", n))
	} else {
		p.logger.Info("telemetry processor stopped")
	}
}

// IsRunning reports whether the processing loop is active.
func (p *Processor) IsRunning() bool {
	return p.running.Load()
}

// Push offers one frame to the ingress queue from the feed goroutine. It
// never blocks: a full queue drops the frame, increments the dropped
// counter and returns accepted=false. Pushing to a stopped processor
// returns ErrNotRunning.
func (p *Processor) Push(f Frame) (accepted bool, err error) {
	if !p.running.Load() {
		return false, ErrNotRunning
	}
	if !p.queue.push(f) {
		p.dropped.Add(1)
		return false, nil
	}
	return true, nil
}

// PushBatch offers a batch of frames in order and returns how many were
// accepted. Frames rejected by a full queue are dropped and counted, and
// the remainder of the batch is still offered.
func (p *Processor) PushBatch(frames []Frame) (accepted int, err error) {
	if !p.running.Load() {
		return 0, ErrNotRunning
	}
	for _, f := range frames {
		if p.queue.push(f) {
			accepted++
		} else {
			p.dropped.Add(1)
		}
	}
	return accepted, nil
}

// EnableAnomalyDetection registers parameters for rolling-window
// deviation scoring. Safe to call while the processor runs; re-enabling a
// parameter replaces its thresholds but keeps its window.
func (p *Processor) EnableAnomalyDetection(parameters []string, cfg ParameterConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	p.detector.enable(parameters, cfg)
	return nil
}

// OnProcessedBatch subscribes to processed batches. The returned function
// removes the subscription and is safe to call concurrently with
// delivery.
func (p *Processor) OnProcessedBatch(fn BatchFunc) (remove func()) {
	return p.dispatch.subscribeBatch(fn)
}

// OnAnomaly subscribes to anomaly events.
func (p *Processor) OnAnomaly(fn AnomalyFunc) (remove func()) {
	return p.dispatch.subscribeAnomaly(fn)
}

// QueryHistory returns processed frames in [start, end]; see
// HistoryStore.QueryTimeRange.
func (p *Processor) QueryHistory(start, end time.Time, maxSamples int, parameters []string) []Frame {
	return p.history.QueryTimeRange(start, end, maxSamples, parameters)
}

// Latest returns the most recently processed frame.
func (p *Processor) Latest() (Frame, bool) {
	return p.history.Latest()
}

// CalculateAggregates summarises one parameter over [start, end]; see
// HistoryStore.CalculateAggregates.
func (p *Processor) CalculateAggregates(parameter string, start, end time.Time) (Aggregates, bool) {
	return p.history.CalculateAggregates(parameter, start, end)
}

// PruneHistory removes stored frames older than maxAge and returns how
// many were evicted.
func (p *Processor) PruneHistory(maxAge time.Duration) int {
	return p.history.PruneBefore(time.Now().Add(-maxAge))
}

// ProcessedSamples returns the number of frames fully processed and
// delivered since the last Start.
func (p *Processor) ProcessedSamples() uint64 {
	return p.processed.Load()
}

// DroppedSamples returns the number of frames rejected by a full queue
// since the last Start.
func (p *Processor) DroppedSamples() uint64 {
	return p.dropped.Load()
}

// CallbackFailures returns the number of recovered subscriber panics.
func (p *Processor) CallbackFailures() uint64 {
	return p.dispatch.callbackFailures()
}

// QueueDepth returns the number of frames waiting in the ingress queue.
func (p *Processor) QueueDepth() int {
	return p.queue.len()
}

// SamplesPerSecond returns the average processing rate since the last
// Start.
func (p *Processor) SamplesPerSecond() float64 {
	started := p.startedAtNano.Load()
	if started == 0 {
		return 0
	}
	elapsed := time.Since(time.Unix(0, started)).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(p.processed.Load()) / elapsed
}

// AverageProcessingTime returns the mean per-sample pipeline time since
// the last Start.
func (p *Processor) AverageProcessingTime() time.Duration {
	n := p.processed.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(p.procNanos.Load() / int64(n))
}

// run is the processing loop. It owns every stage's state.
func (p *Processor) run(stopc <-chan struct{}) {
	defer p.wg.Done()

	batch := make([]Frame, 0, p.opts.BatchSize)
	events := make([]AnomalyEvent, 0, 8)

	for {
		select {
		case <-stopc:
			return
		default:
		}

		batch = p.queue.drain(batch[:0])
		if len(batch) == 0 {
			select {
			case <-stopc:
				return
			case <-time.After(p.opts.IdleSleep):
			}
			continue
		}

		start := time.Now()

		p.filters.applyBatch(batch)

		scoreAnomalies := p.detector.hasConfigs()
		for i := range batch {
			if p.opts.EnableDerivative {
				p.deriv.apply(batch[i])
			}
			if scoreAnomalies {
				events = p.detector.evaluate(batch[i], events[:0])
				for _, ev := range events {
					p.dispatch.dispatchAnomaly(ev)
				}
			}
			p.history.AddFrame(batch[i])
		}

		p.dispatch.dispatchBatch(batch)

		p.procNanos.Add(time.Since(start).Nanoseconds())
		p.processed.Add(uint64(len(batch)))
	}
}
