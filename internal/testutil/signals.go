package testutil

import (
	"math"
	"math/rand"
)

// DeterministicSine generates a deterministic sine wave.
func DeterministicSine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// DeterministicNoise generates white noise in [-amplitude, amplitude) with a
// fixed seed for reproducibility.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// RandomMatrix returns a rows x cols matrix of uniform values in [0, 1).
func RandomMatrix(seed int64, rows, cols int) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([][]float64, rows)
	for i := range out {
		out[i] = make([]float64, cols)
		for j := range out[i] {
			out[i][j] = rng.Float64()
		}
	}
	return out
}

// Tile repeats the rows of segment count times.
func Tile(segment [][]float64, count int) [][]float64 {
	out := make([][]float64, 0, len(segment)*count)
	for range count {
		for _, row := range segment {
			out = append(out, append([]float64(nil), row...))
		}
	}
	return out
}

// Energy returns the sum of squares of data[start:end], clipped to bounds.
func Energy(data []float64, start, end int) float64 {
	start = max(start, 0)
	end = min(end, len(data))
	sum := 0.0
	for i := start; i < end; i++ {
		sum += data[i] * data[i]
	}
	return sum
}
