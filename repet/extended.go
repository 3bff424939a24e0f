package repet

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/zafarrafii/REPET-Matlab-sub000/logging"
	"github.com/zafarrafii/REPET-Matlab-sub000/repet/config"
)

// segment is a half-open sample range [start, end)
type segment struct {
	start, end int
}

// planSegments cuts length samples into segments of segmentLength samples
// starting every step samples. The last segment extends to the end. Signals
// shorter than segmentLength+step are processed as one segment.
func planSegments(length, segmentLength, step int) []segment {
	if length < segmentLength+step {
		return []segment{{0, length}}
	}

	count := 1 + (length-segmentLength)/step
	segments := make([]segment, count)
	for i := range count {
		segments[i] = segment{start: i * step, end: i*step + segmentLength}
	}
	segments[count-1].end = length
	return segments
}

// crossfadeRamp returns the rising half of a triangular window of length
// 2*overlap: (2k+1)/(2*overlap). The falling half is its mirror and the two
// sum to one.
func crossfadeRamp(overlap int) []float64 {
	ramp := make([]float64, overlap)
	for k := range overlap {
		ramp[k] = float64(2*k+1) / float64(2*overlap)
	}
	return ramp
}

// segmentWeights returns the crossfade envelope of segment i of n with the
// given overlap into its neighbours
func segmentWeights(length, overlap, i, n int) []float64 {
	weights := make([]float64, length)
	for k := range weights {
		weights[k] = 1
	}
	if overlap <= 0 {
		return weights
	}

	ramp := crossfadeRamp(min(overlap, length))
	if i > 0 {
		for k, r := range ramp {
			weights[k] *= r
		}
	}
	if i < n-1 {
		for k, r := range ramp {
			weights[length-1-k] *= r
		}
	}
	return weights
}

// separateExtended runs the fixed-period pipeline on overlapping segments in
// parallel and crossfades the segment backgrounds
func (s *Separator) separateExtended(audio [][]float64, frames config.Frames, logger logging.Logger) ([][]float64, error) {
	numChannels := len(audio)
	length := len(audio[0])
	segments := planSegments(length, frames.SegmentSamples, frames.SegmentStepSamples)
	overlap := frames.SegmentSamples - frames.SegmentStepSamples

	logger.Debug("extended segmentation", logging.Fields{
		"segments":        len(segments),
		"segment_samples": frames.SegmentSamples,
		"overlap_samples": overlap,
	})

	progress := newProgressCounter(s.progress, len(segments))
	results := make([][][]float64, len(segments))

	g := new(errgroup.Group)
	g.SetLimit(segmentWorkers())
	for i, seg := range segments {
		g.Go(func() error {
			chunk := make([][]float64, numChannels)
			for c := range numChannels {
				chunk[c] = audio[c][seg.start:seg.end]
			}

			segLogger := logger.WithFields(logging.Fields{"segment": i})
			bg, err := s.separateBatch(chunk, frames, FixedPeriodStrategy{}, segLogger)
			if err != nil {
				return fmt.Errorf("segment %d: %w", i, err)
			}

			results[i] = bg
			progress.increment()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	background := make([][]float64, numChannels)
	weightSum := make([]float64, length)
	for c := range numChannels {
		background[c] = make([]float64, length)
	}

	for i, seg := range segments {
		weights := segmentWeights(seg.end-seg.start, overlap, i, len(segments))
		for k, w := range weights {
			weightSum[seg.start+k] += w
			for c := range numChannels {
				background[c][seg.start+k] += w * results[i][c][k]
			}
		}
	}

	// Fades sum to one unless more than two segments overlap (step < length/2)
	for n, sum := range weightSum {
		if sum > 0 && sum != 1 {
			for c := range numChannels {
				background[c][n] /= sum
			}
		}
	}

	return background, nil
}
