package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Collector exposes processor diagnostics as prometheus metrics. It reads
// the atomic counters on scrape, so registering it adds no cost to the
// processing loop. One collector serves one processor instance; the
// instance label keeps parallel processors apart in a shared registry.
type Collector struct {
	p *Processor

	processed   *prometheus.Desc
	dropped     *prometheus.Desc
	failures    *prometheus.Desc
	queueDepth  *prometheus.Desc
	historyLen  *prometheus.Desc
	sampleRate  *prometheus.Desc
	avgProcTime *prometheus.Desc
}

// NewCollector creates a collector for the given processor.
func NewCollector(p *Processor, instance string) *Collector {
	labels := prometheus.Labels{"instance": instance}
	return &Collector{
		p: p,
		processed: prometheus.NewDesc("telemetry_processed_samples_total",
			"Frames fully processed and delivered since the last start.", nil, labels),
		dropped: prometheus.NewDesc("telemetry_dropped_samples_total",
			"Frames rejected by a full ingress queue since the last start.", nil, labels),
		failures: prometheus.NewDesc("telemetry_callback_failures_total",
			"Recovered subscriber callback panics.", nil, labels),
		queueDepth: prometheus.NewDesc("telemetry_queue_depth",
			"Frames waiting in the ingress queue.", nil, labels),
		historyLen: prometheus.NewDesc("telemetry_history_frames",
			"Frames held in the in-memory history ring.", nil, labels),
		sampleRate: prometheus.NewDesc("telemetry_samples_per_second",
			"Average processing rate since the last start.", nil, labels),
		avgProcTime: prometheus.NewDesc("telemetry_avg_processing_seconds",
			"Mean per-sample pipeline time since the last start.", nil, labels),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.processed
	ch <- c.dropped
	ch <- c.failures
	ch <- c.queueDepth
	ch <- c.historyLen
	ch <- c.sampleRate
	ch <- c.avgProcTime
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.processed, prometheus.CounterValue, float64(c.p.ProcessedSamples()))
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(c.p.DroppedSamples()))
	ch <- prometheus.MustNewConstMetric(c.failures, prometheus.CounterValue, float64(c.p.CallbackFailures()))
	ch <- prometheus.MustNewConstMetric(c.queueDepth, prometheus.GaugeValue, float64(c.p.QueueDepth()))
	ch <- prometheus.MustNewConstMetric(c.historyLen, prometheus.GaugeValue, float64(c.p.history.Len()))
	ch <- prometheus.MustNewConstMetric(c.sampleRate, prometheus.GaugeValue, c.p.SamplesPerSecond())
	ch <- prometheus.MustNewConstMetric(c.avgProcTime, prometheus.GaugeValue, c.p.AverageProcessingTime().Seconds())
}
