package stats

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SelfSimilarity returns the cosine similarity between every pair of frames
// of a [frame][feature] matrix. The result is symmetric with a unit diagonal;
// a silent frame is treated as fully similar to itself and dissimilar to
// everything else.
func SelfSimilarity(frames [][]float64) [][]float64 {
	numFrames := len(frames)
	if numFrames == 0 {
		return [][]float64{}
	}

	numFeatures := len(frames[0])
	result := make([][]float64, numFrames)

	if numFeatures == 0 {
		for i := range result {
			result[i] = make([]float64, numFrames)
			result[i][i] = 1
		}
		return result
	}

	normalized := mat.NewDense(numFrames, numFeatures, nil)
	row := make([]float64, numFeatures)
	for i, frame := range frames {
		copy(row, frame)
		if norm := floats.Norm(row, 2); norm > 0 {
			floats.Scale(1/norm, row)
		} else {
			for j := range row {
				row[j] = 0
			}
		}
		normalized.SetRow(i, row)
	}

	var gram mat.SymDense
	gram.SymOuterK(1, normalized)

	for i := range numFrames {
		result[i] = make([]float64, numFrames)
		for j := range numFrames {
			result[i][j] = gram.At(i, j)
		}
		result[i][i] = 1
	}

	return result
}

// CrossSimilarity returns the cosine similarity of frame against each
// candidate. A silent frame matched against a silent candidate scores 1,
// against anything else 0.
func CrossSimilarity(frame []float64, candidates [][]float64) []float64 {
	result := make([]float64, len(candidates))
	frameNorm := floats.Norm(frame, 2)

	for i, candidate := range candidates {
		result[i] = cosineSimilarity(frame, frameNorm, candidate)
	}

	return result
}

func cosineSimilarity(a []float64, normA float64, b []float64) float64 {
	normB := floats.Norm(b, 2)

	switch {
	case normA == 0 && normB == 0:
		return 1
	case normA == 0 || normB == 0:
		return 0
	}

	return floats.Dot(a, b) / (normA * normB)
}
