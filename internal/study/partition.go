package study

import "fmt"

// BatchCount returns how many batches are needed for total items,
// never more than maxBatches.
func BatchCount(total, batchSize, maxBatches int) int {
	if total <= 0 || batchSize <= 0 || maxBatches <= 0 {
		return 0
	}
	n := (total + batchSize - 1) / batchSize
	return min(n, maxBatches)
}

// Partition splits ids into consecutive batches of at most batchSize.
// Under the cap every id lands in exactly one batch. When the cap is hit the
// ids that did not fit are counted in skipped so the caller can report them.
func Partition(ids []string, batchSize, maxBatches int) (batches [][]string, skipped int) {
	n := BatchCount(len(ids), batchSize, maxBatches)
	batches = make([][]string, 0, n)
	for i := 0; i < n; i++ {
		start := i * batchSize
		end := min(start+batchSize, len(ids))
		batches = append(batches, ids[start:end:end])
	}
	return batches, len(ids) - min(len(ids), n*batchSize)
}

// Window is a page of a service-side selection.
type Window struct {
	Offset int
	Limit  int
}

// Windows pages total items into batch windows, with the same capping
// rule as Partition.
func Windows(total, batchSize, maxBatches int) (windows []Window, skipped int) {
	n := BatchCount(total, batchSize, maxBatches)
	windows = make([]Window, 0, n)
	for i := 0; i < n; i++ {
		offset := i * batchSize
		windows = append(windows, Window{Offset: offset, Limit: min(batchSize, total-offset)})
	}
	return windows, total - min(total, n*batchSize)
}

// SweepValues returns steps evenly spaced values from lo to hi inclusive.
func SweepValues(lo, hi float64, steps int) ([]float64, error) {
	switch {
	case steps < 1:
		return nil, fmt.Errorf("steps must be at least 1, got %d", steps)
	case hi < lo:
		return nil, fmt.Errorf("sweep max %v is below min %v", hi, lo)
	case steps == 1:
		return []float64{lo}, nil
	}
	values := make([]float64, steps)
	step := (hi - lo) / float64(steps-1)
	for i := range values {
		values[i] = lo + float64(i)*step
	}
	values[steps-1] = hi
	return values, nil
}
