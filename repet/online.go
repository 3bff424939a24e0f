package repet

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/zafarrafii/REPET-Matlab-sub000/algorithms/common"
	"github.com/zafarrafii/REPET-Matlab-sub000/algorithms/masking"
	"github.com/zafarrafii/REPET-Matlab-sub000/algorithms/spectral"
	"github.com/zafarrafii/REPET-Matlab-sub000/algorithms/stats"
	"github.com/zafarrafii/REPET-Matlab-sub000/algorithms/windowing"
	"github.com/zafarrafii/REPET-Matlab-sub000/logging"
	"github.com/zafarrafii/REPET-Matlab-sub000/repet/config"
)

// Online separates a stream block by block. Each frame is masked with the
// median of the most similar frames among the last BufferFrames frames,
// itself included, so no future input is ever used. Online is not safe for
// concurrent use.
type Online struct {
	frames   config.Frames
	window   windowing.Window
	fft      *spectral.FFT
	colaGain float64
	channels int

	framers    []*common.SlidingWindow
	magnitudes []*common.FrameRing
	mean       *common.FrameRing
	synthesis  []*common.OverlapAddBuffer

	written   int
	processed int
	flushed   bool

	logger   logging.Logger
	progress ProgressFunc
}

// NewOnline creates a streaming separator for the given sample rate and
// channel count
func NewOnline(cfg config.Config, sampleRate, channels int, opts ...Option) (*Online, error) {
	if channels <= 0 {
		return nil, invalidParameter("channel count must be positive, got %d", channels)
	}

	frames, err := cfg.Frames(sampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}

	window, err := windowing.New(windowing.WindowType(cfg.WindowType), frames.WindowLength)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}

	o := newOptions("repet_online", opts)
	online := &Online{
		frames:     frames,
		window:     window,
		fft:        spectral.NewFFT(),
		colaGain:   windowing.COLAGain(window, frames.Hop),
		channels:   channels,
		framers:    make([]*common.SlidingWindow, channels),
		magnitudes: make([]*common.FrameRing, channels),
		synthesis:  make([]*common.OverlapAddBuffer, channels),
		logger:     o.logger,
		progress:   o.progress,
	}

	for c := range channels {
		if online.framers[c], err = common.NewSlidingWindow(frames.WindowLength, frames.Hop); err != nil {
			return nil, err
		}
		if online.magnitudes[c], err = common.NewFrameRing(frames.BufferFrames); err != nil {
			return nil, err
		}
		if online.synthesis[c], err = common.NewOverlapAddBuffer(frames.WindowLength, frames.Hop); err != nil {
			return nil, err
		}
	}
	if online.mean, err = common.NewFrameRing(frames.BufferFrames); err != nil {
		return nil, err
	}

	online.logger.Debug("online separator ready", logging.Fields{
		"sample_rate":   sampleRate,
		"channels":      channels,
		"window_length": frames.WindowLength,
		"hop":           frames.Hop,
		"buffer_frames": frames.BufferFrames,
	})

	return online, nil
}

// Frames returns the frame-domain parameters in use
func (o *Online) Frames() config.Frames {
	return o.frames
}

// Write consumes one block of samples per channel and returns the background
// samples finalized so far, Hop samples per completed frame. Output lags the
// input by up to one window; Flush returns the remainder.
func (o *Online) Write(block [][]float64) ([][]float64, error) {
	if o.flushed {
		return nil, fmt.Errorf("online separator already flushed")
	}
	if len(block) != o.channels {
		return nil, invalidParameter("block has %d channels, want %d", len(block), o.channels)
	}
	for c := 1; c < o.channels; c++ {
		if len(block[c]) != len(block[0]) {
			return nil, invalidParameter("channel %d has %d samples, want %d", c, len(block[c]), len(block[0]))
		}
	}

	o.written += len(block[0])
	return o.consume(block)
}

// Flush pads the stream with zeros so that every input sample is covered
// by a frame, then returns all remaining background samples. The output of
// Write and Flush together covers at least every written sample.
func (o *Online) Flush() ([][]float64, error) {
	if o.flushed {
		return emptyChannels(o.channels), nil
	}
	o.flushed = true

	if o.written == 0 {
		return emptyChannels(o.channels), nil
	}

	w, h := o.frames.WindowLength, o.frames.Hop
	needed := max(int(math.Ceil(float64(o.written-w)/float64(h)))+1, 1)
	padding := max((needed-1)*h+w-o.written, 0)

	zeros := make([][]float64, o.channels)
	for c := range zeros {
		zeros[c] = make([]float64, padding)
	}

	out, err := o.consume(zeros)
	if err != nil {
		return nil, err
	}

	for c := range o.channels {
		tail := o.synthesis[c].Drain()
		floats.Scale(1/o.colaGain, tail)
		out[c] = append(out[c], tail...)
	}

	o.logger.Debug("online stream flushed", logging.Fields{
		"samples": o.written,
		"frames":  o.processed,
	})
	return out, nil
}

// consume frames the block and processes every completed frame
func (o *Online) consume(block [][]float64) ([][]float64, error) {
	pending := make([][][]float64, o.channels)
	for c := range o.channels {
		pending[c] = o.framers[c].AddSamples(block[c])
	}

	out := make([][]float64, o.channels)
	for c := range out {
		out[c] = make([]float64, 0, len(pending[0])*o.frames.Hop)
	}

	frame := make([][]float64, o.channels)
	for i := range pending[0] {
		for c := range o.channels {
			frame[c] = pending[c][i]
		}

		samples, err := o.processFrame(frame)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", o.processed, err)
		}
		for c := range o.channels {
			out[c] = append(out[c], samples[c]...)
		}
	}

	return out, nil
}

// processFrame masks one multichannel frame and returns Hop finalized
// samples per channel
func (o *Online) processFrame(frame [][]float64) ([][]float64, error) {
	w := o.frames.WindowLength

	spectra := make([][]complex128, o.channels)
	mags := make([][]float64, o.channels)
	for c := range o.channels {
		spectra[c] = o.fft.Compute(o.window.Apply(frame[c]))
		mags[c] = spectral.FrameMagnitude(spectra[c])
		o.magnitudes[c].Push(mags[c])
	}

	perChannel := make([][][]float64, o.channels)
	for c := range mags {
		perChannel[c] = [][]float64{mags[c]}
	}
	mean, err := spectral.MeanAcrossChannels(perChannel)
	if err != nil {
		return nil, err
	}
	o.mean.Push(mean[0])

	o.processed++
	defer o.reportProgress()

	synthesized := make([][]float64, o.channels)
	if !o.mean.IsFull() {
		// Still filling the buffer: emit silence
		for c := range synthesized {
			synthesized[c] = make([]float64, w)
		}
	} else {
		selected := o.selectSimilar()
		rows := make([][]float64, len(selected))
		for c := range o.channels {
			for i, idx := range selected {
				rows[i] = o.magnitudes[c].At(idx)
			}

			repeating := common.MedianOfRows(rows, nil)
			mask := [][]float64{masking.RatioFrame(repeating, mags[c])}
			masking.ApplyHighPass(mask, o.frames.CutoffBin)

			gain := spectral.Mirror(mask[0], w)
			synthesized[c] = o.fft.ComputeInverseReal(spectral.ApplyGain(spectra[c], gain))
		}
	}

	out := make([][]float64, o.channels)
	for c := range o.channels {
		samples, err := o.synthesis[c].AddFrame(synthesized[c])
		if err != nil {
			return nil, err
		}
		floats.Scale(1/o.colaGain, samples)
		out[c] = samples
	}
	return out, nil
}

// selectSimilar returns buffer positions (oldest first numbering) of the
// frames most similar to the newest one
func (o *Online) selectSimilar() []int {
	numFrames := o.mean.Len()
	current := o.mean.Newest()

	candidates := make([][]float64, numFrames)
	for i := range numFrames {
		candidates[i] = o.mean.At(i)
	}

	similarity := stats.CrossSimilarity(current, candidates)
	selected := stats.LocalMaxima(similarity,
		o.frames.SimilarityThreshold, o.frames.SimilarityDistance, o.frames.SimilarityNumber)
	if len(selected) == 0 {
		selected = []int{numFrames - 1}
	}
	return selected
}

func (o *Online) reportProgress() {
	if o.progress != nil {
		o.progress(o.processed, 0)
	}
}

// separateOnline streams the whole signal through an Online processor
func (s *Separator) separateOnline(audio [][]float64, frames config.Frames, logger logging.Logger) ([][]float64, error) {
	length := len(audio[0])
	hop := frames.Hop
	total := max(int(math.Ceil(float64(length-frames.WindowLength)/float64(hop)))+1, 1)
	progress := newProgressCounter(s.progress, total)

	online, err := NewOnline(s.config, frames.SampleRate, len(audio),
		WithLogger(logger),
		WithProgress(func(done, _ int) { progress.increment() }))
	if err != nil {
		return nil, err
	}

	head, err := online.Write(audio)
	if err != nil {
		return nil, err
	}
	tail, err := online.Flush()
	if err != nil {
		return nil, err
	}

	background := make([][]float64, len(audio))
	for c := range audio {
		full := append(head[c], tail[c]...)
		background[c] = full[:length]
	}
	return background, nil
}
