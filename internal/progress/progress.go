// Package progress publishes a run's percent complete to a file that
// external tooling can watch.
package progress

import (
	"math"
	"strconv"
	"sync"
)

// Step is the granularity of published values.
const Step = 5

// Writer stores the published value. artifact.Store satisfies it.
type Writer interface {
	WriteBytes(name string, data []byte) (string, error)
}

// Tracker publishes percent complete in multiples of Step. Values only grow:
// a lower or equal value is ignored. Safe for concurrent use.
type Tracker struct {
	w    Writer
	name string

	mu   sync.Mutex
	last int
}

// NewTracker returns a tracker that writes name through w. A nil w keeps the
// value in memory only.
func NewTracker(w Writer, name string) *Tracker {
	return &Tracker{w: w, name: name, last: -1}
}

// Set publishes fraction (0..1) rounded to the nearest Step percent.
// It reports whether a new value was written.
func (t *Tracker) Set(fraction float64) (bool, error) {
	pct := Round(fraction)

	t.mu.Lock()
	defer t.mu.Unlock()

	if pct <= t.last {
		return false, nil
	}
	if t.w != nil {
		if _, err := t.w.WriteBytes(t.name, []byte(strconv.Itoa(pct))); err != nil {
			return false, err
		}
	}
	t.last = pct
	return true, nil
}

// Percent returns the last published value, or -1 before the first Set.
func (t *Tracker) Percent() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Round converts fraction to a percentage rounded to the nearest Step,
// clamped to [0, 100].
func Round(fraction float64) int {
	if math.IsNaN(fraction) || fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	return int(math.Round(fraction*100/Step)) * Step
}
