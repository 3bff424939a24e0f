package windowing

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"
)

// RaisedCosine is a two-term cosine window w[i] = a0 - (1-a0)*cos(2*pi*i/D),
// which covers both Hamming (a0 = 0.54) and Hann (a0 = 0.5).
type RaisedCosine struct {
	kind         WindowType
	a0           float64
	size         int
	symmetric    bool
	coefficients []float64
}

// NewHamming creates a Hamming window. A periodic window (symmetric=false)
// uses D = size, a symmetric one D = size-1.
func NewHamming(size int, symmetric bool) *RaisedCosine {
	return newRaisedCosine(WindowHamming, 0.54, size, symmetric)
}

// NewHann creates a Hann window
func NewHann(size int, symmetric bool) *RaisedCosine {
	return newRaisedCosine(WindowHann, 0.5, size, symmetric)
}

func newRaisedCosine(kind WindowType, a0 float64, size int, symmetric bool) *RaisedCosine {
	w := &RaisedCosine{
		kind:      kind,
		a0:        a0,
		size:      size,
		symmetric: symmetric,
	}
	w.generate()
	return w
}

func (w *RaisedCosine) generate() {
	w.coefficients = make([]float64, w.size)
	if w.size == 1 {
		w.coefficients[0] = 1
		return
	}

	denominator := float64(w.size)
	if w.symmetric {
		denominator = float64(w.size - 1)
	}

	a1 := 1 - w.a0
	for i := range w.size {
		w.coefficients[i] = w.a0 - a1*math.Cos(2*math.Pi*float64(i)/denominator)
	}
}

// Apply returns a windowed copy of signal, or nil on a size mismatch
func (w *RaisedCosine) Apply(signal []float64) []float64 {
	if len(signal) != w.size {
		return nil
	}

	windowed := make([]float64, w.size)
	vecmath.MulBlock(windowed, signal, w.coefficients)
	return windowed
}

// ApplyInPlace applies the window to a signal in-place
func (w *RaisedCosine) ApplyInPlace(signal []float64) error {
	if len(signal) != w.size {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), w.size)
	}

	vecmath.MulBlockInPlace(signal, w.coefficients)
	return nil
}

// GetCoefficients returns a copy of the window coefficients
func (w *RaisedCosine) GetCoefficients() []float64 {
	coeffs := make([]float64, len(w.coefficients))
	copy(coeffs, w.coefficients)
	return coeffs
}

// GetSize returns the window size
func (w *RaisedCosine) GetSize() int {
	return w.size
}

// GetType returns the window type
func (w *RaisedCosine) GetType() string {
	return string(w.kind)
}

// IsSymmetric reports whether the window was generated symmetric
func (w *RaisedCosine) IsSymmetric() bool {
	return w.symmetric
}
