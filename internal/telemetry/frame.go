package telemetry

import "time"

// Frame is one timestamped set of parameter samples from the telemetry
// source. The core assumes a parameter keeps the same value kind across
// frames within a processor instance but does not enforce it; schema
// validation belongs to the feed.
//
// Ownership passes to the processor on Push. The producer must not retain
// or mutate a frame after a successful push.
type Frame struct {
	Timestamp time.Time
	Values    map[string]Value
}

// NewFrame creates an empty frame with the given timestamp.
func NewFrame(ts time.Time) Frame {
	return Frame{Timestamp: ts, Values: make(map[string]Value)}
}

// Set stores a parameter sample, replacing any previous sample with the
// same id.
func (f Frame) Set(parameter string, v Value) {
	f.Values[parameter] = v
}

// Get returns the sample for a parameter id.
func (f Frame) Get(parameter string) (Value, bool) {
	v, ok := f.Values[parameter]
	return v, ok
}

// Clone returns a deep copy of the frame. Stored history frames are
// immutable, so cloning is only needed when a caller wants to mutate a
// queried frame.
func (f Frame) Clone() Frame {
	c := Frame{Timestamp: f.Timestamp, Values: make(map[string]Value, len(f.Values))}
	for id, v := range f.Values {
		c.Values[id] = v
	}
	return c
}
