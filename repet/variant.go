package repet

import (
	"fmt"
	"strings"
)

// Variant selects a separation algorithm
type Variant int

const (
	// Original assumes one repeating period for the whole signal
	Original Variant = iota

	// Extended runs Original on overlapping segments and crossfades them
	Extended

	// Adaptive tracks a local period per frame with a beat spectrogram
	Adaptive

	// Sim replaces periodicity with the most similar frames
	Sim

	// SimOnline is Sim restricted to a causal buffer of past frames
	SimOnline
)

var variantNames = [...]string{
	Original:  "original",
	Extended:  "extended",
	Adaptive:  "adaptive",
	Sim:       "sim",
	SimOnline: "simonline",
}

func (v Variant) String() string {
	if v < 0 || int(v) >= len(variantNames) {
		return fmt.Sprintf("Variant(%d)", int(v))
	}
	return variantNames[v]
}

// ParseVariant maps a variant name to a Variant (case-insensitive)
func ParseVariant(name string) (Variant, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	for v, n := range variantNames {
		if n == lower {
			return Variant(v), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown variant %q", ErrInvalidParameter, name)
}

// Variants lists every supported variant
func Variants() []Variant {
	return []Variant{Original, Extended, Adaptive, Sim, SimOnline}
}
