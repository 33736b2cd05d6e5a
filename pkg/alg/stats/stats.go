// Package stats provides the small numeric helpers shared by estimation and
// evaluation. Standard deviations are population deviations (÷n).
package stats

import (
	"cmp"
	"math"
)

// Mean returns the arithmetic mean of values.
// Returns 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64

	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

// NaNMean returns the mean of the values that are not NaN, or NaN when
// every value is NaN.
func NaNMean(values []float64) float64 {
	var (
		sum   float64
		count int
	)

	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}

		sum += v
		count++
	}

	if count == 0 {
		return math.NaN()
	}

	return sum / float64(count)
}

// WindowMean returns the mean of the last size values. It reports false for
// an empty slice.
func WindowMean(values []float64, size int) (float64, bool) {
	if len(values) == 0 || size <= 0 {
		return 0, false
	}

	start := max(len(values)-size, 0)

	return Mean(values[start:]), true
}

// Clamp restricts val to the range [lo, hi].
func Clamp[T cmp.Ordered](val, lo, hi T) T {
	return max(lo, min(val, hi))
}

// SafeDiv returns num/den, or NaN when den is zero.
func SafeDiv(num, den float64) float64 {
	if den == 0 {
		return math.NaN()
	}

	return num / den
}
