package app

import (
	"math"
	"time"

	"github.com/simdebrief/flight-telemetry/internal/telemetry"
)

// Series is the plotted time series of one parameter.
type Series struct {
	Parameter string
	Times     []time.Time
	Values    []float64
	Min       float64
	Max       float64
}

// TraceData accumulates the selected parameter series and the session's
// anomaly events while iterating stored frames.
type TraceData struct {
	Series []*Series

	TimestampStart time.Time
	TimestampEnd   time.Time
	ValueMin       float64
	ValueMax       float64

	Anomalies []telemetry.AnomalyEvent

	byParameter map[string]*Series
	samples     int
}

func NewTraceData(parameters []string) *TraceData {
	d := TraceData{
		ValueMin:    math.Inf(1),
		ValueMax:    math.Inf(-1),
		byParameter: make(map[string]*Series, len(parameters)),
	}
	for _, id := range parameters {
		s := &Series{Parameter: id, Min: math.Inf(1), Max: math.Inf(-1)}
		d.Series = append(d.Series, s)
		d.byParameter[id] = s
	}
	return &d
}

// Update appends the frame's numeric samples for the tracked parameters.
func (d *TraceData) Update(f telemetry.Frame) {
	for id, s := range d.byParameter {
		raw, ok := f.Get(id)
		if !ok {
			continue
		}
		v, ok := raw.Float()
		if !ok {
			continue
		}

		s.Times = append(s.Times, f.Timestamp)
		s.Values = append(s.Values, v)
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)

		d.ValueMin = math.Min(d.ValueMin, v)
		d.ValueMax = math.Max(d.ValueMax, v)

		if d.samples == 0 || f.Timestamp.Before(d.TimestampStart) {
			d.TimestampStart = f.Timestamp
		}
		if d.samples == 0 || f.Timestamp.After(d.TimestampEnd) {
			d.TimestampEnd = f.Timestamp
		}
		d.samples++
	}
}

// AddAnomalies keeps the events falling inside the plotted time range.
func (d *TraceData) AddAnomalies(events []telemetry.AnomalyEvent) {
	for _, ev := range events {
		if ev.Timestamp.Before(d.TimestampStart) || ev.Timestamp.After(d.TimestampEnd) {
			continue
		}
		if _, ok := d.byParameter[ev.Parameter]; !ok {
			continue
		}
		d.Anomalies = append(d.Anomalies, ev)
	}
}

// Empty reports whether no samples were collected.
func (d *TraceData) Empty() bool {
	return d.samples == 0
}

// Samples returns the total number of collected samples.
func (d *TraceData) Samples() int {
	return d.samples
}

// Span returns the plotted wall-clock duration.
func (d *TraceData) Span() time.Duration {
	return d.TimestampEnd.Sub(d.TimestampStart)
}
