package telemetry

import (
	"math"
	"testing"
)

func altitudeConfig() ParameterConfig {
	return ParameterConfig{MinValue: 0, MaxValue: 50_000, DeviationThreshold: 3.0}
}

func TestParameterConfig_Validate(t *testing.T) {
	cases := []struct {
		name string
		cfg  ParameterConfig
	}{
		{"empty range", ParameterConfig{MinValue: 10, MaxValue: 10, DeviationThreshold: 3}},
		{"inverted range", ParameterConfig{MinValue: 10, MaxValue: 5, DeviationThreshold: 3}},
		{"zero threshold", ParameterConfig{MinValue: 0, MaxValue: 10, DeviationThreshold: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	if err := altitudeConfig().Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

// A constant signal has stddev 0 and must never flag, regardless of how
// far off the next sample is.
func TestAnomalyDetector_ConstantSignalNeverFlags(t *testing.T) {
	d := newAnomalyDetector()
	d.enable([]string{"altitude"}, altitudeConfig())

	for i := int64(0); i < 10; i++ {
		events := d.evaluate(frameAt(i, map[string]float64{"altitude": 1000}), nil)
		if len(events) != 0 {
			t.Fatalf("constant sample %d flagged: %+v", i, events)
		}
	}

	events := d.evaluate(frameAt(10, map[string]float64{"altitude": 40_000}), nil)
	if len(events) != 0 {
		t.Errorf("stddev=0 window flagged an anomaly: %+v", events)
	}
}

func TestAnomalyDetector_FlagsDeviation(t *testing.T) {
	d := newAnomalyDetector()
	d.enable([]string{"altitude"}, altitudeConfig())

	// Alternating values give the window real variance: mean 1005,
	// stddev 5.
	for i := int64(0); i < 20; i++ {
		v := 1000.0
		if i%2 == 1 {
			v = 1010
		}
		if events := d.evaluate(frameAt(i, map[string]float64{"altitude": v}), nil); len(events) != 0 {
			t.Fatalf("baseline sample %d flagged: %+v", i, events)
		}
	}

	// z = |1025-1005|/5 = 4 > 3.
	events := d.evaluate(frameAt(20, map[string]float64{"altitude": 1025}), nil)
	if len(events) != 1 {
		t.Fatalf("expected exactly one event, got %d", len(events))
	}

	ev := events[0]
	if ev.Parameter != "altitude" {
		t.Errorf("expected parameter altitude, got %s", ev.Parameter)
	}
	if ev.Value != 1025 {
		t.Errorf("expected value 1025, got %g", ev.Value)
	}
	if math.Abs(ev.Score-4.0) > 1e-9 {
		t.Errorf("expected score 4.0, got %g", ev.Score)
	}
	if ev.Severity != SeverityLow {
		t.Errorf("expected severity low for z=4 at threshold 3, got %s", ev.Severity)
	}
}

func TestAnomalyDetector_MinimumHistory(t *testing.T) {
	d := newAnomalyDetector()
	d.enable([]string{"altitude"}, altitudeConfig())

	// Wildly varying values, but fewer than the minimum window size:
	// nothing may fire.
	values := []float64{100, 9000, 42, 30_000, 7, 25_000, 3, 18_000, 60}
	for i, v := range values {
		if events := d.evaluate(frameAt(int64(i), map[string]float64{"altitude": v}), nil); len(events) != 0 {
			t.Fatalf("sample %d flagged before minimum history: %+v", i, events)
		}
	}
}

func TestAnomalyDetector_UnregisteredParameterSkipped(t *testing.T) {
	d := newAnomalyDetector()
	d.enable([]string{"altitude"}, altitudeConfig())

	for i := int64(0); i < 30; i++ {
		f := frameAt(i, map[string]float64{"altitude": 1000, "airspeed": float64(i * 1000)})
		if events := d.evaluate(f, nil); len(events) != 0 {
			t.Fatalf("unregistered parameter flagged: %+v", events)
		}
	}
}

func TestAnomalyDetector_RangeViolation(t *testing.T) {
	d := newAnomalyDetector()
	d.enable([]string{"altitude"}, altitudeConfig())

	events := d.evaluate(frameAt(0, map[string]float64{"altitude": -50}), nil)
	if len(events) != 1 {
		t.Fatalf("expected one range violation event, got %d", len(events))
	}
	if events[0].Severity != SeverityCritical {
		t.Errorf("expected critical severity, got %s", events[0].Severity)
	}
}

func TestSeverityFor(t *testing.T) {
	const threshold = 3.0

	cases := []struct {
		z    float64
		want Severity
	}{
		{3.5, SeverityLow},
		{4.6, SeverityMedium},
		{6.5, SeverityHigh},
		{9.5, SeverityCritical},
	}
	for _, tc := range cases {
		if got := severityFor(tc.z, threshold); got != tc.want {
			t.Errorf("z=%g: expected %s, got %s", tc.z, tc.want, got)
		}
	}
}

func TestRollingWindow_Stats(t *testing.T) {
	w := newRollingWindow(4)

	for _, v := range []float64{2, 4, 6, 8} {
		w.push(v)
	}
	mean, stddev := w.stats()
	if mean != 5 {
		t.Errorf("expected mean 5, got %g", mean)
	}
	if math.Abs(stddev-math.Sqrt(5)) > 1e-12 {
		t.Errorf("expected stddev sqrt(5), got %g", stddev)
	}

	// Eviction keeps the running sums consistent.
	w.push(10) // window {4, 6, 8, 10}
	mean, _ = w.stats()
	if mean != 7 {
		t.Errorf("after eviction expected mean 7, got %g", mean)
	}
}
