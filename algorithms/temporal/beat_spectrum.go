package temporal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/zafarrafii/REPET-Matlab-sub000/algorithms/common"
	"github.com/zafarrafii/REPET-Matlab-sub000/algorithms/stats"
)

// BeatSpectrum measures the repetition strength of a power spectrogram
// ([frame][bin]) at every lag: the autocorrelation of each frequency bin's
// time series, averaged across bins. Lag 0 holds the energy maximum.
//
// References:
// - Foote, J., Uchihashi, S. (2001). "The Beat Spectrum: A New Approach to
//   Rhythm Analysis"
func BeatSpectrum(power [][]float64) ([]float64, error) {
	numFrames := len(power)
	if numFrames == 0 {
		return []float64{}, nil
	}

	numBins := len(power[0])
	if numBins == 0 {
		return make([]float64, numFrames), nil
	}

	ac, err := stats.NewAutoCorrelation(numFrames)
	if err != nil {
		return nil, err
	}

	return beatSpectrum(ac, power, 0, numFrames, numBins)
}

// beatSpectrum computes the beat spectrum of frames [start, start+length)
// of power, treating frames outside the matrix as silent.
func beatSpectrum(ac *stats.AutoCorrelation, power [][]float64, start, length, numBins int) ([]float64, error) {
	series := make([]float64, length)
	acfs := make([][]float64, numBins)

	for bin := range numBins {
		for i := range length {
			t := start + i
			if t >= 0 && t < len(power) {
				series[i] = power[t][bin]
			} else {
				series[i] = 0
			}
		}

		acfs[bin] = make([]float64, length)
		if err := ac.ComputeInto(acfs[bin], series); err != nil {
			return nil, fmt.Errorf("bin %d: %w", bin, err)
		}
	}

	result := make([]float64, length)
	column := make([]float64, numBins)
	for lag := range length {
		for bin := range numBins {
			column[bin] = acfs[bin][lag]
		}
		result[lag] = stat.Mean(column, nil)
	}

	return result, nil
}

// BeatSpectrogram computes a beat spectrum per frame over a sliding window of
// segmentLength frames centred on it, recomputed every segmentStep frames and
// held in between. The result is [frame][lag] with segmentLength lags.
func BeatSpectrogram(power [][]float64, segmentLength, segmentStep int) ([][]float64, error) {
	if segmentLength <= 0 {
		return nil, fmt.Errorf("segment length must be positive, got %d", segmentLength)
	}
	if segmentStep <= 0 {
		return nil, fmt.Errorf("segment step must be positive, got %d", segmentStep)
	}

	numFrames := len(power)
	result := make([][]float64, numFrames)
	if numFrames == 0 {
		return result, nil
	}

	numBins := len(power[0])
	ac, err := stats.NewAutoCorrelation(segmentLength)
	if err != nil {
		return nil, err
	}

	// Zero frames padded in front so that frame t sits in the middle of its
	// segment; the padding behind is implicit in beatSpectrum.
	frontPad := common.CeilDiv(segmentLength-1, 2)

	for t := 0; t < numFrames; t += segmentStep {
		var beat []float64
		if numBins == 0 {
			beat = make([]float64, segmentLength)
		} else {
			beat, err = beatSpectrum(ac, power, t-frontPad, segmentLength, numBins)
			if err != nil {
				return nil, fmt.Errorf("segment at frame %d: %w", t, err)
			}
		}

		for j := t; j < min(t+segmentStep, numFrames); j++ {
			result[j] = beat
		}
	}

	return result, nil
}

// SelectPeriod returns the lag of the strongest repetition in a beat
// spectrum within [minLag, maxLag]. Only lags up to a third of the spectrum
// are considered so that at least three repetitions back the estimate. The
// first lag wins ties. Returns 0 when no lag is admissible.
func SelectPeriod(beat []float64, minLag, maxLag int) int {
	lo := max(minLag, 1)
	hi := min(maxLag, len(beat)/3)
	if lo > hi {
		return 0
	}

	idx := common.ArgMax(beat, lo, hi+1)
	return max(idx, 0)
}

// SelectPeriods applies SelectPeriod to every frame of a beat spectrogram
func SelectPeriods(beatSpectrogram [][]float64, minLag, maxLag int) []int {
	periods := make([]int, len(beatSpectrogram))
	for t, beat := range beatSpectrogram {
		periods[t] = SelectPeriod(beat, minLag, maxLag)
	}
	return periods
}

// PeriodRangeFrames converts a period range in seconds to frames
func PeriodRangeFrames(seconds [2]float64, sampleRate, hop int) (int, int, error) {
	if sampleRate <= 0 || hop <= 0 {
		return 0, 0, fmt.Errorf("sample rate and hop must be positive, got %d and %d", sampleRate, hop)
	}
	if seconds[0] < 0 || seconds[1] < seconds[0] || math.IsNaN(seconds[0]) || math.IsNaN(seconds[1]) {
		return 0, 0, fmt.Errorf("invalid period range [%v, %v]", seconds[0], seconds[1])
	}

	return common.SecondsToFrames(seconds[0], sampleRate, hop),
		common.SecondsToFrames(seconds[1], sampleRate, hop), nil
}
