package telemetry

// vectorExponential is the batch-width execution path for the exponential
// filter. Samples are gathered into per-parameter columns so the smoothing
// recurrence runs as a tight loop over contiguous float64 slices instead
// of a map lookup per sample. It reproduces the scalar path exactly: the
// recurrence and evaluation order per parameter are identical.
type vectorExponential struct {
	alpha float64
	prev  map[string]float64
	cols  map[string]*column
}

type column struct {
	vals []float64
	rows []int
}

func newVectorExponential(alpha float64) *vectorExponential {
	return &vectorExponential{
		alpha: alpha,
		prev:  make(map[string]float64),
		cols:  make(map[string]*column),
	}
}

func (v *vectorExponential) applyBatch(frames []Frame) {
	for _, c := range v.cols {
		c.vals = c.vals[:0]
		c.rows = c.rows[:0]
	}

	// Gather numeric samples into columns, preserving frame order.
	for i := range frames {
		for id, val := range frames[i].Values {
			raw, ok := val.Float()
			if !ok {
				continue
			}
			c, ok := v.cols[id]
			if !ok {
				c = &column{}
				v.cols[id] = c
			}
			c.vals = append(c.vals, raw)
			c.rows = append(c.rows, i)
		}
	}

	for id, c := range v.cols {
		if len(c.vals) == 0 {
			continue
		}

		prev, seeded := v.prev[id]
		oneMinus := 1 - v.alpha
		for j, raw := range c.vals {
			if !seeded {
				prev = raw
				seeded = true
			} else {
				prev = oneMinus*prev + v.alpha*raw
			}
			c.vals[j] = prev
		}
		v.prev[id] = prev

		for j, row := range c.rows {
			frames[row].Values[id] = Float64Value(c.vals[j])
		}
	}
}

func (v *vectorExponential) reset() {
	clear(v.prev)
	clear(v.cols)
}
