package graph

// curveKeys is the keyframe storage of an animCurve node. Keys are held in
// ascending time order; evaluation interpolates linearly between keys and
// holds the boundary values outside the keyed range.
type curveKeys struct {
	times  []float64
	values []float64
}

func (c *curveKeys) set(times, values []float64) {
	c.times = make([]float64, len(times))
	c.values = make([]float64, len(values))
	copy(c.times, times)
	copy(c.values, values)
}

func (c *curveKeys) evaluate(t float64) float64 {
	if len(c.times) == 0 {
		return 0
	}
	if t <= c.times[0] {
		return c.values[0]
	}
	last := len(c.times) - 1
	if t >= c.times[last] {
		return c.values[last]
	}
	// Linear scan: curves in this graph carry at most a few hundred keys and
	// are evaluated sparsely.
	for i := 1; i <= last; i++ {
		if t <= c.times[i] {
			span := c.times[i] - c.times[i-1]
			if span <= 0 {
				return c.values[i]
			}
			f := (t - c.times[i-1]) / span
			return c.values[i-1] + (c.values[i]-c.values[i-1])*f
		}
	}
	return c.values[last]
}
