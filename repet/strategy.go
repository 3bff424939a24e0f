package repet

import (
	"fmt"

	"github.com/zafarrafii/REPET-Matlab-sub000/algorithms/masking"
	"github.com/zafarrafii/REPET-Matlab-sub000/algorithms/spectral"
	"github.com/zafarrafii/REPET-Matlab-sub000/algorithms/stats"
	"github.com/zafarrafii/REPET-Matlab-sub000/algorithms/temporal"
	"github.com/zafarrafii/REPET-Matlab-sub000/logging"
	"github.com/zafarrafii/REPET-Matlab-sub000/repet/config"
)

// Params carries the frame-domain settings and logger a Strategy runs with
type Params struct {
	Frames config.Frames
	Logger logging.Logger
}

func (p Params) logger() logging.Logger {
	if p.Logger == nil {
		return &logging.NoOpLogger{}
	}
	return p.Logger
}

// Strategy estimates the repeating background of a multichannel magnitude
// spectrogram. Masks receives one-sided magnitudes indexed
// [channel][frame][bin] and returns one mask per channel with the same
// shape. The analysis runs on the channel mean so every channel shares one
// repetition model.
type Strategy interface {
	Name() string
	Masks(specs [][][]float64, p Params) ([][][]float64, error)
}

// StrategyFor returns the Strategy a batch variant uses. SimOnline has no
// batch strategy; it runs frame by frame through Online.
func StrategyFor(v Variant) (Strategy, error) {
	switch v {
	case Original, Extended:
		return FixedPeriodStrategy{}, nil
	case Adaptive:
		return AdaptivePeriodStrategy{}, nil
	case Sim:
		return SimilarityStrategy{}, nil
	default:
		return nil, invalidParameter("no batch strategy for variant %s", v)
	}
}

// FixedPeriodStrategy finds one repeating period in the beat spectrum and
// builds the background as the median repeating segment
type FixedPeriodStrategy struct{}

func (FixedPeriodStrategy) Name() string { return "fixed_period" }

func (FixedPeriodStrategy) Masks(specs [][][]float64, p Params) ([][][]float64, error) {
	mean, err := spectral.MeanAcrossChannels(specs)
	if err != nil {
		return nil, err
	}

	beat, err := temporal.BeatSpectrum(spectral.Power(mean))
	if err != nil {
		return nil, fmt.Errorf("beat spectrum: %w", err)
	}

	period := temporal.SelectPeriod(beat, p.Frames.MinPeriod, p.Frames.MaxPeriod)
	if period == 0 {
		p.logger().Warn("no repeating period in range, keeping the whole mixture as background", logging.Fields{
			"frames":     len(mean),
			"min_period": p.Frames.MinPeriod,
			"max_period": p.Frames.MaxPeriod,
		})
	} else {
		p.logger().Debug("repeating period selected", logging.Fields{
			"period_frames":  period,
			"period_seconds": float64(period*p.Frames.Hop) / float64(p.Frames.SampleRate),
		})
	}

	masks := make([][][]float64, len(specs))
	for c, spec := range specs {
		masks[c] = masking.FixedPeriod(spec, period)
	}
	return masks, nil
}

// AdaptivePeriodStrategy tracks a local period per frame and takes the
// median of the frames one period apart around it
type AdaptivePeriodStrategy struct{}

func (AdaptivePeriodStrategy) Name() string { return "adaptive_period" }

func (AdaptivePeriodStrategy) Masks(specs [][][]float64, p Params) ([][][]float64, error) {
	mean, err := spectral.MeanAcrossChannels(specs)
	if err != nil {
		return nil, err
	}

	beats, err := temporal.BeatSpectrogram(spectral.Power(mean), p.Frames.SegmentFrames, p.Frames.SegmentStepFrames)
	if err != nil {
		return nil, fmt.Errorf("beat spectrogram: %w", err)
	}

	periods := temporal.SelectPeriods(beats, p.Frames.MinPeriod, p.Frames.MaxPeriod)

	missing := 0
	for _, period := range periods {
		if period == 0 {
			missing++
		}
	}
	if missing > 0 {
		p.logger().Warn("frames without a repeating period keep the mixture as background", logging.Fields{
			"frames":         len(periods),
			"without_period": missing,
		})
	}

	masks := make([][][]float64, len(specs))
	for c, spec := range specs {
		masks[c], err = masking.Adaptive(spec, periods, p.Frames.FilterOrder)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", c, err)
		}
	}
	return masks, nil
}

// SimilarityStrategy takes, for every frame, the median of the frames most
// similar to it anywhere in the signal
type SimilarityStrategy struct{}

func (SimilarityStrategy) Name() string { return "similarity" }

func (SimilarityStrategy) Masks(specs [][][]float64, p Params) ([][][]float64, error) {
	mean, err := spectral.MeanAcrossChannels(specs)
	if err != nil {
		return nil, err
	}

	similarity := stats.SelfSimilarity(mean)
	indices := stats.SimilarityIndices(similarity,
		p.Frames.SimilarityThreshold, p.Frames.SimilarityDistance, p.Frames.SimilarityNumber)

	masks := make([][][]float64, len(specs))
	for c, spec := range specs {
		masks[c], err = masking.Similarity(spec, indices)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", c, err)
		}
	}
	return masks, nil
}
