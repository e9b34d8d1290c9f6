package telemetry

import "strings"

// DerivedSuffix marks rate-of-change parameters produced by the
// derivative stage, e.g. "altitude.rate" for "altitude". The derived
// value is expressed in parameter units per second.
const DerivedSuffix = ".rate"

// IsDerived reports whether a parameter id names a derivative-stage
// output rather than a feed sample.
func IsDerived(parameter string) bool {
	return strings.HasSuffix(parameter, DerivedSuffix)
}

// derivativeStage computes per-parameter rates of change between
// consecutive frames. A parameter missing from either frame is skipped;
// dt <= 0 skips the whole frame, guarding against non-causal ordering and
// division by zero. State is owned by the processing loop.
type derivativeStage struct {
	prev    map[string]float64
	prevTS  int64 // UnixNano of the previous frame
	hasPrev bool
}

func newDerivativeStage() *derivativeStage {
	return &derivativeStage{prev: make(map[string]float64)}
}

func (s *derivativeStage) apply(f Frame) {
	dt := float64(f.Timestamp.UnixNano()-s.prevTS) / 1e9

	if s.hasPrev && dt > 0 {
		for id, v := range f.Values {
			if IsDerived(id) {
				continue
			}
			cur, ok := v.Float()
			if !ok {
				continue
			}
			last, ok := s.prev[id]
			if !ok {
				continue
			}
			f.Values[id+DerivedSuffix] = Float64Value((cur - last) / dt)
		}
	}

	clear(s.prev)
	for id, v := range f.Values {
		if IsDerived(id) {
			continue
		}
		if cur, ok := v.Float(); ok {
			s.prev[id] = cur
		}
	}
	s.prevTS = f.Timestamp.UnixNano()
	s.hasPrev = true
}

func (s *derivativeStage) reset() {
	clear(s.prev)
	s.prevTS = 0
	s.hasPrev = false
}
