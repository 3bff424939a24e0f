package stats

import (
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"
)

// AutoCorrelation computes unbiased autocorrelations of fixed-length series
// through the power spectrum (Wiener-Khinchin). One instance reuses its FFT
// plan and scratch buffers, so it is not safe for concurrent use.
//
// References:
// - Oppenheim, A.V., Schafer, R.W. (2010). "Discrete-Time Signal Processing"
type AutoCorrelation struct {
	size   int
	fft    *fourier.FFT
	padded []float64
	coeffs []complex128
	seq    []float64
}

// NewAutoCorrelation creates an autocorrelation calculator for series of
// the given length
func NewAutoCorrelation(size int) (*AutoCorrelation, error) {
	if size <= 0 {
		return nil, fmt.Errorf("autocorrelation size must be positive, got %d", size)
	}

	// Zero-padding to twice the length turns circular correlation into linear
	fftSize := 2 * size
	return &AutoCorrelation{
		size:   size,
		fft:    fourier.NewFFT(fftSize),
		padded: make([]float64, fftSize),
		coeffs: make([]complex128, fftSize/2+1),
		seq:    make([]float64, fftSize),
	}, nil
}

// Size returns the series length this calculator accepts
func (ac *AutoCorrelation) Size() int {
	return ac.size
}

// Compute returns the autocorrelation of series at lags 0..size-1. Lag k is
// the sum of x[i]*x[i+k] divided by size-k.
func (ac *AutoCorrelation) Compute(series []float64) ([]float64, error) {
	result := make([]float64, ac.size)
	if err := ac.ComputeInto(result, series); err != nil {
		return nil, err
	}
	return result, nil
}

// ComputeInto is Compute writing into dst, which must have length size
func (ac *AutoCorrelation) ComputeInto(dst, series []float64) error {
	if len(series) != ac.size {
		return fmt.Errorf("series length (%d) doesn't match autocorrelation size (%d)", len(series), ac.size)
	}
	if len(dst) != ac.size {
		return fmt.Errorf("destination length (%d) doesn't match autocorrelation size (%d)", len(dst), ac.size)
	}

	copy(ac.padded, series)
	for i := ac.size; i < len(ac.padded); i++ {
		ac.padded[i] = 0
	}

	ac.fft.Coefficients(ac.coeffs, ac.padded)
	for i, c := range ac.coeffs {
		ac.coeffs[i] = complex(real(c)*real(c)+imag(c)*imag(c), 0)
	}
	ac.fft.Sequence(ac.seq, ac.coeffs)

	// gonum leaves the inverse unnormalised
	scale := 1.0 / float64(len(ac.padded))
	for lag := range ac.size {
		dst[lag] = ac.seq[lag] * scale / float64(ac.size-lag)
	}

	return nil
}

// Autocorrelation is a convenience wrapper computing one unbiased
// autocorrelation. Empty input yields an empty result.
func Autocorrelation(series []float64) []float64 {
	if len(series) == 0 {
		return []float64{}
	}

	ac, _ := NewAutoCorrelation(len(series))
	result, _ := ac.Compute(series)
	return result
}

// AutocorrelateRows autocorrelates every row of a matrix whose rows share
// one length, reusing a single FFT plan.
func AutocorrelateRows(rows [][]float64) ([][]float64, error) {
	if len(rows) == 0 {
		return [][]float64{}, nil
	}

	size := len(rows[0])
	result := make([][]float64, len(rows))
	if size == 0 {
		for i := range result {
			result[i] = []float64{}
		}
		return result, nil
	}

	ac, err := NewAutoCorrelation(size)
	if err != nil {
		return nil, err
	}

	for i, row := range rows {
		result[i] = make([]float64, size)
		if err := ac.ComputeInto(result[i], row); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}

	return result, nil
}
