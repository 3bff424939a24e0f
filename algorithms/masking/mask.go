// Package masking builds soft time-frequency masks that keep the repeating
// part of a magnitude spectrogram. Every mask is indexed [frame][bin] over
// the one-sided bins and takes values in [0, 1].
package masking

import (
	"fmt"
	"math"

	"github.com/zafarrafii/REPET-Matlab-sub000/algorithms/common"
)

// Eps keeps mask ratios finite on silent bins (float64 machine epsilon)
const Eps = 2.220446049250313e-16

// RatioFrame returns the mask of one frame: the repeating estimate clipped
// to the observed magnitude, divided by the observed magnitude.
func RatioFrame(repeating, observed []float64) []float64 {
	mask := make([]float64, len(observed))
	for k, obs := range observed {
		mask[k] = (math.Min(repeating[k], obs) + Eps) / (obs + Eps)
	}
	return mask
}

// Ratio applies RatioFrame to every frame
func Ratio(repeating, observed [][]float64) [][]float64 {
	mask := make([][]float64, len(observed))
	for t := range observed {
		mask[t] = RatioFrame(repeating[t], observed[t])
	}
	return mask
}

// Identity returns an all-pass mask with the shape of spec
func Identity(spec [][]float64) [][]float64 {
	mask := make([][]float64, len(spec))
	for t := range spec {
		mask[t] = make([]float64, len(spec[t]))
		for k := range mask[t] {
			mask[t][k] = 1
		}
	}
	return mask
}

// FixedPeriod models the repeating background as one period-long segment:
// the element-wise median of the spectrogram cut into period-long pieces
// (the last piece may be shorter). A non-positive period yields the
// identity mask.
func FixedPeriod(spec [][]float64, period int) [][]float64 {
	numFrames := len(spec)
	if period <= 0 || numFrames == 0 {
		return Identity(spec)
	}

	numBins := len(spec[0])
	period = min(period, numFrames)
	numSegments := common.CeilDiv(numFrames, period)

	// One median per (phase, bin), gathered across segments
	model := make([][]float64, period)
	scratch := make([]float64, 0, numSegments)
	for phase := range period {
		model[phase] = make([]float64, numBins)
		for k := range numBins {
			scratch = scratch[:0]
			for t := phase; t < numFrames; t += period {
				scratch = append(scratch, spec[t][k])
			}
			model[phase][k] = common.MedianInPlace(scratch)
		}
	}

	repeating := make([][]float64, numFrames)
	for t := range numFrames {
		repeating[t] = model[t%period]
	}

	return Ratio(repeating, spec)
}

// Adaptive models the background of frame t as the median of the frames at
// multiples of its local period around it. filterOrder frames are used,
// centred on t; frames outside the spectrogram are skipped. A non-positive
// period uses frame t alone.
func Adaptive(spec [][]float64, periods []int, filterOrder int) ([][]float64, error) {
	if filterOrder <= 0 {
		return nil, fmt.Errorf("filter order must be positive, got %d", filterOrder)
	}
	if len(periods) != len(spec) {
		return nil, fmt.Errorf("got %d periods for %d frames", len(periods), len(spec))
	}

	numFrames := len(spec)
	center := common.CeilDiv(filterOrder, 2)
	repeating := make([][]float64, numFrames)
	rows := make([][]float64, 0, filterOrder)
	var scratch []float64

	for t := range numFrames {
		rows = rows[:0]
		if periods[t] <= 0 {
			rows = append(rows, spec[t])
		} else {
			for k := 1; k <= filterOrder; k++ {
				j := t + (k-center)*periods[t]
				if j >= 0 && j < numFrames {
					rows = append(rows, spec[j])
				}
			}
		}

		if cap(scratch) < len(rows) {
			scratch = make([]float64, len(rows))
		}
		repeating[t] = common.MedianOfRows(rows, scratch)
	}

	return Ratio(repeating, spec), nil
}

// Similarity models the background of frame t as the median of the frames
// listed in indices[t]. An empty list uses frame t alone.
func Similarity(spec [][]float64, indices [][]int) ([][]float64, error) {
	if len(indices) != len(spec) {
		return nil, fmt.Errorf("got %d index sets for %d frames", len(indices), len(spec))
	}

	numFrames := len(spec)
	repeating := make([][]float64, numFrames)
	var rows [][]float64
	var scratch []float64

	for t, set := range indices {
		rows = rows[:0]
		for _, j := range set {
			if j < 0 || j >= numFrames {
				return nil, fmt.Errorf("frame %d: similar frame index %d out of range", t, j)
			}
			rows = append(rows, spec[j])
		}
		if len(rows) == 0 {
			rows = append(rows, spec[t])
		}

		if cap(scratch) < len(rows) {
			scratch = make([]float64, len(rows))
		}
		repeating[t] = common.MedianOfRows(rows, scratch)
	}

	return Ratio(repeating, spec), nil
}

// HighPassBin returns the highest bin index at or below cutoffHz
// (rounded up) for a window of windowLength samples
func HighPassBin(cutoffHz float64, windowLength, sampleRate int) int {
	if cutoffHz <= 0 || sampleRate <= 0 {
		return 0
	}
	return int(math.Ceil(cutoffHz * float64(windowLength-1) / float64(sampleRate)))
}

// ApplyHighPass forces bins 1..bin of every frame to 1 so that low
// frequencies stay in the background. The DC bin is left unchanged.
func ApplyHighPass(mask [][]float64, bin int) {
	for _, frame := range mask {
		for k := 1; k <= min(bin, len(frame)-1); k++ {
			frame[k] = 1
		}
	}
}
