package spectral

import (
	"fmt"

	"github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/floats"
)

// OneSidedBins returns the number of independent bins of a real signal's
// spectrum, windowLength/2 + 1 (DC through Nyquist)
func OneSidedBins(windowLength int) int {
	return windowLength/2 + 1
}

// Magnitude returns the one-sided magnitude spectrogram [frame][bin] of a full
// complex spectrogram
func Magnitude(frames [][]complex128) [][]float64 {
	magnitude := make([][]float64, len(frames))
	for t, frame := range frames {
		magnitude[t] = FrameMagnitude(frame)
	}
	return magnitude
}

// FrameMagnitude returns |X[k]| for bins 0..len(frame)/2
func FrameMagnitude(frame []complex128) []float64 {
	if len(frame) == 0 {
		return []float64{}
	}

	bins := OneSidedBins(len(frame))
	re := make([]float64, bins)
	im := make([]float64, bins)
	for k := range bins {
		re[k] = real(frame[k])
		im[k] = imag(frame[k])
	}

	out := make([]float64, bins)
	vecmath.Magnitude(out, re, im)
	return out
}

// Power squares a magnitude spectrogram elementwise
func Power(magnitude [][]float64) [][]float64 {
	power := make([][]float64, len(magnitude))
	for t, frame := range magnitude {
		power[t] = make([]float64, len(frame))
		floats.MulTo(power[t], frame, frame)
	}
	return power
}

// MeanAcrossChannels averages per-channel spectrograms of identical shape
func MeanAcrossChannels(spectrograms [][][]float64) ([][]float64, error) {
	if len(spectrograms) == 0 {
		return nil, fmt.Errorf("no spectrograms to average")
	}

	first := spectrograms[0]
	mean := make([][]float64, len(first))
	for t := range first {
		mean[t] = make([]float64, len(first[t]))
	}

	for c, spec := range spectrograms {
		if len(spec) != len(first) {
			return nil, fmt.Errorf("channel %d has %d frames, want %d", c, len(spec), len(first))
		}
		for t := range spec {
			if len(spec[t]) != len(mean[t]) {
				return nil, fmt.Errorf("channel %d frame %d has %d bins, want %d", c, t, len(spec[t]), len(mean[t]))
			}
			floats.Add(mean[t], spec[t])
		}
	}

	if len(spectrograms) > 1 {
		scale := 1 / float64(len(spectrograms))
		for t := range mean {
			floats.Scale(scale, mean[t])
		}
	}

	return mean, nil
}

// Mirror expands a one-sided per-bin gain to all windowLength bins so it can be
// applied to a full conjugate-symmetric spectrum: [g0 .. gN/2, gN/2-1 .. g1].
func Mirror(oneSided []float64, windowLength int) []float64 {
	full := make([]float64, windowLength)
	half := windowLength / 2
	copy(full, oneSided[:half+1])
	for k := half + 1; k < windowLength; k++ {
		full[k] = oneSided[windowLength-k]
	}
	return full
}

// ApplyGain returns frame with every bin scaled by the matching real gain
func ApplyGain(frame []complex128, gain []float64) []complex128 {
	out := make([]complex128, len(frame))
	for k := range frame {
		out[k] = frame[k] * complex(gain[k], 0)
	}
	return out
}
