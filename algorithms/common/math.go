package common

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Median returns the median of data without modifying it. Even-length input
// averages the two middle values. Returns NaN for empty input.
func Median(data []float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	return MedianInPlace(sorted)
}

// MedianInPlace is Median but sorts data in place to avoid the copy
func MedianInPlace(data []float64) float64 {
	n := len(data)
	if n == 0 {
		return math.NaN()
	}

	sort.Float64s(data)

	mid := n / 2
	if n%2 == 0 {
		return (data[mid-1] + data[mid]) / 2.0
	}
	return data[mid]
}

// MedianOfRows returns, per column, the median of the given rows. scratch is
// reused between columns when it has enough capacity.
func MedianOfRows(rows [][]float64, scratch []float64) []float64 {
	if len(rows) == 0 {
		return nil
	}

	cols := len(rows[0])
	result := make([]float64, cols)

	if cap(scratch) < len(rows) {
		scratch = make([]float64, len(rows))
	}
	scratch = scratch[:len(rows)]

	for j := range cols {
		for i, row := range rows {
			scratch[i] = row[j]
		}
		result[j] = MedianInPlace(scratch)
	}

	return result
}

// ArgMax returns the index of the first maximum of data in [start, end).
// Returns -1 when the range is empty.
func ArgMax(data []float64, start, end int) int {
	start = max(start, 0)
	end = min(end, len(data))
	if start >= end {
		return -1
	}

	// floats.MaxIdx returns the first index on ties
	return start + floats.MaxIdx(data[start:end])
}

// SecondsToFrames converts a duration to a whole number of hops
func SecondsToFrames(seconds float64, sampleRate, hop int) int {
	if hop <= 0 {
		return 0
	}
	return int(math.Round(seconds * float64(sampleRate) / float64(hop)))
}

// IsPowerOfTwo checks if n is a power of 2
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// NextPowerOfTwo finds the next power of 2 >= n
func NextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}

	power := 1
	for power < n {
		power <<= 1
	}
	return power
}

// CeilDiv returns ceil(a/b) for positive b
func CeilDiv(a, b int) int {
	return (a + b - 1) / b
}
