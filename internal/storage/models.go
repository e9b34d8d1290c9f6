package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/simdebrief/flight-telemetry/internal/telemetry"
)

// FlightSession describes one recorded flight in the archive.
type FlightSession struct {
	ID        int64
	StartTime time.Time
	Source    string
	Aircraft  string
	Config    *string
}

// sampleData is one parameter sample row. Exactly one value column is
// non-NULL, selected by Kind.
type sampleData struct {
	ID        int64
	SessionID int64
	Timestamp time.Time
	Parameter string
	Kind      string
	BoolValue sql.NullBool
	IntValue  sql.NullInt64
	RealValue sql.NullFloat64
	TextValue sql.NullString
}

type anomalyData struct {
	ID        int64
	SessionID int64
	Timestamp time.Time
	Parameter string
	Value     float64
	Score     float64
	Severity  string
}

func toSampleData(sessionID int64, ts time.Time, parameter string, v telemetry.Value) *sampleData {
	d := sampleData{
		SessionID: sessionID,
		Timestamp: ts.UTC(),
		Parameter: parameter,
		Kind:      v.Kind().String(),
	}

	switch v.Kind() {
	case telemetry.KindBool:
		d.BoolValue = sql.NullBool{Bool: v.Bool(), Valid: true}
	case telemetry.KindInt:
		d.IntValue = sql.NullInt64{Int64: v.Int(), Valid: true}
	case telemetry.KindFloat32, telemetry.KindFloat64:
		f, _ := v.Float()
		d.RealValue = sql.NullFloat64{Float64: f, Valid: true}
	case telemetry.KindText:
		d.TextValue = sql.NullString{String: v.Text(), Valid: true}
	}
	return &d
}

func (d *sampleData) value() (telemetry.Value, error) {
	switch d.Kind {
	case "bool":
		return telemetry.BoolValue(d.BoolValue.Bool), nil
	case "int":
		return telemetry.IntValue(d.IntValue.Int64), nil
	case "float32":
		return telemetry.Float32Value(float32(d.RealValue.Float64)), nil
	case "float64":
		return telemetry.Float64Value(d.RealValue.Float64), nil
	case "text":
		return telemetry.TextValue(d.TextValue.String), nil
	default:
		return telemetry.Value{}, fmt.Errorf("unknown sample kind %q", d.Kind)
	}
}

func toAnomalyData(sessionID int64, ev telemetry.AnomalyEvent) *anomalyData {
	return &anomalyData{
		SessionID: sessionID,
		Timestamp: ev.Timestamp.UTC(),
		Parameter: ev.Parameter,
		Value:     ev.Value,
		Score:     ev.Score,
		Severity:  string(ev.Severity),
	}
}

func (d *anomalyData) event() telemetry.AnomalyEvent {
	return telemetry.AnomalyEvent{
		Parameter: d.Parameter,
		Value:     d.Value,
		Score:     d.Score,
		Timestamp: d.Timestamp,
		Severity:  telemetry.Severity(d.Severity),
	}
}
