package postprocess

// RunningMean is an incremental mean. Each Add updates the average in place,
// so no running sum is kept.
type RunningMean struct {
	n   int
	avg float64
}

// Add folds x into the mean.
func (m *RunningMean) Add(x float64) {
	m.n++
	m.avg += (x - m.avg) / float64(m.n)
}

// Mean returns the current average, 0 when empty.
func (m *RunningMean) Mean() float64 { return m.avg }

// Count returns how many values were added.
func (m *RunningMean) Count() int { return m.n }
