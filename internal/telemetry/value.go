package telemetry

import (
	"fmt"
	"strconv"
)

// Kind discriminates the payload carried by a Value.
type Kind uint8

const (
	KindBool Kind = iota
	KindInt
	KindFloat32
	KindFloat64
	KindText
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a tagged telemetry sample. Exactly one payload slot is valid,
// selected by the kind. Values are immutable; stages that transform a
// sample produce a new Value.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
}

// BoolValue wraps a boolean sample.
func BoolValue(v bool) Value {
	return Value{kind: KindBool, b: v}
}

// IntValue wraps an integer sample.
func IntValue(v int64) Value {
	return Value{kind: KindInt, i: v}
}

// Float32Value wraps a single-precision sample.
func Float32Value(v float32) Value {
	return Value{kind: KindFloat32, f: float64(v)}
}

// Float64Value wraps a double-precision sample.
func Float64Value(v float64) Value {
	return Value{kind: KindFloat64, f: v}
}

// TextValue wraps a text sample.
func TextValue(v string) Value {
	return Value{kind: KindText, s: v}
}

// Kind returns the payload discriminant.
func (v Value) Kind() Kind {
	return v.kind
}

// Bool returns the boolean payload. Valid only for KindBool.
func (v Value) Bool() bool {
	return v.b
}

// Int returns the integer payload. Valid only for KindInt.
func (v Value) Int() int64 {
	return v.i
}

// Text returns the text payload. Valid only for KindText.
func (v Value) Text() string {
	return v.s
}

// Float returns the sample as a float64 and reports whether the value is
// numeric. Integer samples are widened; boolean and text samples report
// false.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat32, KindFloat64:
		return v.f, true
	case KindBool, KindText:
		return 0, false
	default:
		return 0, false
	}
}

// IsNumeric reports whether the value participates in filtering,
// derivative and anomaly stages.
func (v Value) IsNumeric() bool {
	_, ok := v.Float()
	return ok
}

// String renders the payload for logs and annotations.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat32, KindFloat64:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindText:
		return v.s
	default:
		return ""
	}
}
