package testutil

import (
	"fmt"
	"math"
	"testing"
)

// RequireSliceNearlyEqual fails t if got and want differ in length or if
// any element pair exceeds eps (absolute tolerance).
func RequireSliceNearlyEqual(t *testing.T, got, want []float64, eps float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range got {
		diff := math.Abs(got[i] - want[i])
		if diff > eps {
			t.Fatalf("index %d: got %v, want %v (diff %v > eps %v)", i, got[i], want[i], diff, eps)
		}
	}
}

// RequireFinite fails t if any element is NaN or Inf.
func RequireFinite(t *testing.T, data []float64) {
	t.Helper()
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("index %d: non-finite value %v", i, v)
		}
	}
}

// RequireMaskBounded fails t if any mask entry leaves [0, 1+delta] or if
// mask*spec exceeds spec by more than delta.
func RequireMaskBounded(t *testing.T, mask, spec [][]float64, delta float64) {
	t.Helper()
	if len(mask) != len(spec) {
		t.Fatalf("mask has %d frames, spectrogram %d", len(mask), len(spec))
	}
	for i := range mask {
		if len(mask[i]) != len(spec[i]) {
			t.Fatalf("frame %d: mask has %d bins, spectrogram %d", i, len(mask[i]), len(spec[i]))
		}
		for j, m := range mask[i] {
			if math.IsNaN(m) || m < 0 || m > 1+delta {
				t.Fatalf("mask[%d][%d] = %v outside [0, 1+%v]", i, j, m, delta)
			}
			if m*spec[i][j] > spec[i][j]+delta {
				t.Fatalf("mask[%d][%d]*spec = %v exceeds spec %v", i, j, m*spec[i][j], spec[i][j])
			}
		}
	}
}

// MaxAbsDiff returns the maximum absolute difference between two slices.
// Returns an error if the slices differ in length.
func MaxAbsDiff(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("length mismatch: %d vs %d", len(a), len(b))
	}
	maxDiff := 0.0
	for i := range a {
		d := math.Abs(a[i] - b[i])
		if d > maxDiff {
			maxDiff = d
		}
	}
	return maxDiff, nil
}
