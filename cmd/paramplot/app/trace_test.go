package app

import (
	"testing"
	"time"

	"github.com/simdebrief/flight-telemetry/internal/telemetry"
)

func traceFrame(ms int64, params map[string]float64) telemetry.Frame {
	f := telemetry.NewFrame(time.UnixMilli(ms).UTC())
	for id, v := range params {
		f.Set(id, telemetry.Float64Value(v))
	}
	return f
}

func TestTraceData_Update(t *testing.T) {
	data := NewTraceData([]string{"altitude", "airspeed"})

	if !data.Empty() {
		t.Fatal("fresh trace data must be empty")
	}

	for i := int64(0); i < 10; i++ {
		data.Update(traceFrame(i, map[string]float64{
			"altitude": 1000 + float64(i)*10,
			"airspeed": 120,
			"heading":  90, // not tracked
		}))
	}

	if data.Empty() {
		t.Fatal("trace data must not be empty after updates")
	}
	if data.Samples() != 20 {
		t.Errorf("expected 20 tracked samples, got %d", data.Samples())
	}
	if len(data.Series) != 2 {
		t.Fatalf("expected 2 series, got %d", len(data.Series))
	}

	alt := data.Series[0]
	if alt.Parameter != "altitude" || len(alt.Values) != 10 {
		t.Errorf("altitude series malformed: %s with %d samples", alt.Parameter, len(alt.Values))
	}
	if alt.Min != 1000 || alt.Max != 1090 {
		t.Errorf("altitude min/max %g/%g, expected 1000/1090", alt.Min, alt.Max)
	}

	if data.ValueMin != 120 || data.ValueMax != 1090 {
		t.Errorf("global min/max %g/%g, expected 120/1090", data.ValueMin, data.ValueMax)
	}
	if got := data.TimestampStart.UnixMilli(); got != 0 {
		t.Errorf("start timestamp %dms, expected 0", got)
	}
	if got := data.TimestampEnd.UnixMilli(); got != 9 {
		t.Errorf("end timestamp %dms, expected 9", got)
	}
}

func TestTraceData_SkipsNonNumericSamples(t *testing.T) {
	data := NewTraceData([]string{"gear_down"})

	f := telemetry.NewFrame(time.UnixMilli(0).UTC())
	f.Set("gear_down", telemetry.BoolValue(true))
	data.Update(f)

	if !data.Empty() {
		t.Error("boolean samples must not be plotted")
	}
}

func TestTraceData_AddAnomalies(t *testing.T) {
	data := NewTraceData([]string{"altitude"})
	for i := int64(10); i < 20; i++ {
		data.Update(traceFrame(i, map[string]float64{"altitude": 1000}))
	}

	events := []telemetry.AnomalyEvent{
		{Parameter: "altitude", Timestamp: time.UnixMilli(15).UTC()}, // kept
		{Parameter: "altitude", Timestamp: time.UnixMilli(5).UTC()},  // before range
		{Parameter: "airspeed", Timestamp: time.UnixMilli(15).UTC()}, // not plotted
	}
	data.AddAnomalies(events)

	if len(data.Anomalies) != 1 {
		t.Errorf("expected 1 kept anomaly, got %d", len(data.Anomalies))
	}
}
