package stats

import (
	"sort"
)

// LocalMaxima returns the indices of the local maxima of values, strongest
// first.
//
// An index qualifies when its value is at least minValue, strictly greater
// than every earlier value within minDistance and not smaller than every
// later value within minDistance. Of two equal peaks closer than
// minDistance only the earlier survives. maxCount <= 0 returns all
// qualifiers. Equal values keep index order.
func LocalMaxima(values []float64, minValue float64, minDistance, maxCount int) []int {
	minDistance = max(minDistance, 0)

	var peaks []int
	for i, v := range values {
		if v < minValue {
			continue
		}
		if isLocalMaximum(values, i, minDistance) {
			peaks = append(peaks, i)
		}
	}

	sort.SliceStable(peaks, func(a, b int) bool {
		return values[peaks[a]] > values[peaks[b]]
	})

	if maxCount > 0 && len(peaks) > maxCount {
		peaks = peaks[:maxCount]
	}

	return peaks
}

func isLocalMaximum(values []float64, i, distance int) bool {
	v := values[i]

	for j := max(i-distance, 0); j < i; j++ {
		if values[j] >= v {
			return false
		}
	}

	for j := i + 1; j <= min(i+distance, len(values)-1); j++ {
		if values[j] > v {
			return false
		}
	}

	return true
}

// SimilarityIndices lists, for every frame j, the frames most similar to it:
// the local maxima of column j of a symmetric similarity matrix. A frame
// without any qualifying peak falls back to itself.
func SimilarityIndices(similarity [][]float64, threshold float64, distance, count int) [][]int {
	numFrames := len(similarity)
	result := make([][]int, numFrames)
	column := make([]float64, numFrames)

	for j := range numFrames {
		for i := range numFrames {
			column[i] = similarity[i][j]
		}

		indices := LocalMaxima(column, threshold, distance, count)
		if len(indices) == 0 {
			indices = []int{j}
		}
		result[j] = indices
	}

	return result
}
