package bench

import (
	"math"
	"slices"
	"time"
)

// Sample collects the timings of repeated runs of one operation batch.
// Spread statistics use the population standard deviation.
type Sample []time.Duration

// Median returns the middle timing, interpolating between the two middle
// values for even counts. Zero for an empty sample.
func (s Sample) Median() time.Duration {
	count := len(s)
	if count == 0 {
		return 0
	}

	sorted := slices.Clone(s)
	slices.Sort(sorted)

	if count%2 == 1 {
		return sorted[count/2]
	}

	return (sorted[count/2-1] + sorted[count/2]) / 2
}

// Spread returns the standard deviation relative to the mean, or 0 when the
// sample has fewer than two timings.
func (s Sample) Spread() float64 {
	if len(s) < 2 {
		return 0
	}

	var sum float64

	for _, d := range s {
		sum += float64(d)
	}

	mean := sum / float64(len(s))
	if mean == 0 {
		return 0
	}

	var sumSq float64

	for _, d := range s {
		diff := float64(d) - mean
		sumSq += diff * diff
	}

	return math.Sqrt(sumSq/float64(len(s))) / mean
}
