package windowing

import (
	"fmt"
)

// WindowType names a window function
type WindowType string

const (
	WindowHamming WindowType = "hamming"
	WindowHann    WindowType = "hann"
)

// Window is a fixed-size analysis window
type Window interface {
	Apply(signal []float64) []float64
	ApplyInPlace(signal []float64) error
	GetCoefficients() []float64
	GetSize() int
	GetType() string
}

// New creates a periodic window of the given type. Periodic Hamming and Hann
// windows with an even size satisfy constant overlap-add at half-window hops.
func New(windowType WindowType, size int) (Window, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive: %d", size)
	}

	switch windowType {
	case WindowHamming, "":
		return NewHamming(size, false), nil
	case WindowHann:
		return NewHann(size, false), nil
	default:
		return nil, fmt.Errorf("unsupported window type %q", windowType)
	}
}

// COLAGain returns sum(w[0::hop]), the constant that overlap-adding frames
// windowed by w at the given hop multiplies the signal by.
func COLAGain(w Window, hop int) float64 {
	if hop <= 0 {
		return 0
	}

	coeffs := w.GetCoefficients()
	gain := 0.0
	for i := 0; i < len(coeffs); i += hop {
		gain += coeffs[i]
	}
	return gain
}
