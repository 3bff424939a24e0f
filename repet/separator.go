package repet

import (
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/zafarrafii/REPET-Matlab-sub000/algorithms/masking"
	"github.com/zafarrafii/REPET-Matlab-sub000/algorithms/spectral"
	"github.com/zafarrafii/REPET-Matlab-sub000/algorithms/windowing"
	"github.com/zafarrafii/REPET-Matlab-sub000/logging"
	"github.com/zafarrafii/REPET-Matlab-sub000/repet/config"
	"github.com/zafarrafii/REPET-Matlab-sub000/transcode"
)

// ProgressFunc receives the number of completed and total work units
// (extended segments or online frames). total is 0 when a stream's length is
// unknown. Calls may come from several goroutines, one at a time.
type ProgressFunc func(done, total int)

// Option configures a Separator or an Online processor
type Option func(*options)

type options struct {
	logger   logging.Logger
	progress ProgressFunc
}

// WithLogger replaces the component logger
func WithLogger(logger logging.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithProgress installs a progress callback
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) {
		o.progress = fn
	}
}

func newOptions(component string, opts []Option) options {
	o := options{
		logger: logging.WithFields(logging.Fields{
			"component": component,
		}),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Separator splits mixtures into a repeating background and a non-repeating
// foreground. A Separator is immutable and safe for concurrent use.
type Separator struct {
	config   config.Config
	logger   logging.Logger
	progress ProgressFunc
}

// NewSeparator creates a separator; cfg is validated up front
func NewSeparator(cfg config.Config, opts ...Option) (*Separator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}

	o := newOptions("repet_separator", opts)
	return &Separator{
		config:   cfg,
		logger:   o.logger,
		progress: o.progress,
	}, nil
}

// Config returns the separator configuration
func (s *Separator) Config() config.Config {
	return s.config
}

// Separate returns the repeating background of audio ([channel][sample]),
// with the same shape as the input. The input is not modified.
func (s *Separator) Separate(audio [][]float64, sampleRate int, variant Variant) ([][]float64, error) {
	length, err := validateAudio(audio, sampleRate)
	if err != nil {
		s.logger.Error(err, "invalid audio")
		return nil, err
	}

	frames, err := s.config.Frames(sampleRate)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidParameter, err)
		s.logger.Error(err, "invalid configuration for sample rate", logging.Fields{"sample_rate": sampleRate})
		return nil, err
	}

	logger := s.logger.WithFields(logging.Fields{
		"variant":     variant.String(),
		"channels":    len(audio),
		"samples":     length,
		"sample_rate": sampleRate,
	})

	if length == 0 {
		logger.Debug("empty input")
		return emptyChannels(len(audio)), nil
	}

	logger.Debug("separating", logging.Fields{
		"window_length": frames.WindowLength,
		"hop":           frames.Hop,
	})

	var background [][]float64
	switch variant {
	case Original, Adaptive, Sim:
		strategy, _ := StrategyFor(variant)
		background, err = s.separateBatch(audio, frames, strategy, logger)
		if err == nil {
			newProgressCounter(s.progress, 1).increment()
		}
	case Extended:
		background, err = s.separateExtended(audio, frames, logger)
	case SimOnline:
		background, err = s.separateOnline(audio, frames, logger)
	default:
		err = invalidParameter("unknown variant %s", variant)
	}

	if err != nil {
		logger.Error(err, "separation failed")
		return nil, err
	}

	logger.Debug("separation complete")
	return background, nil
}

// SeparateAudio separates decoded audio and returns the background and
// foreground with the input's sample rate and bit depth
func (s *Separator) SeparateAudio(audio *transcode.AudioData, variant Variant) (*transcode.AudioData, *transcode.AudioData, error) {
	if audio == nil {
		return nil, nil, invalidParameter("audio data cannot be nil")
	}

	background, err := s.Separate(audio.Channels, audio.SampleRate, variant)
	if err != nil {
		return nil, nil, err
	}

	foreground, err := Foreground(audio.Channels, background)
	if err != nil {
		return nil, nil, err
	}

	return audio.WithChannels(background), audio.WithChannels(foreground), nil
}

// Foreground returns mixture minus background, channel by channel
func Foreground(mixture, background [][]float64) ([][]float64, error) {
	if len(mixture) != len(background) {
		return nil, invalidParameter("mixture has %d channels, background %d", len(mixture), len(background))
	}

	foreground := make([][]float64, len(mixture))
	for c := range mixture {
		if len(mixture[c]) != len(background[c]) {
			return nil, invalidParameter("channel %d: mixture has %d samples, background %d", c, len(mixture[c]), len(background[c]))
		}
		foreground[c] = make([]float64, len(mixture[c]))
		floats.SubTo(foreground[c], mixture[c], background[c])
	}
	return foreground, nil
}

// newSTFT builds the analysis transform described by frames
func (s *Separator) newSTFT(frames config.Frames) (*spectral.STFT, error) {
	window, err := windowing.New(windowing.WindowType(s.config.WindowType), frames.WindowLength)
	if err != nil {
		return nil, err
	}
	return spectral.NewSTFT(window, frames.Hop)
}

// separateBatch runs STFT, masking and ISTFT over whole channels
func (s *Separator) separateBatch(audio [][]float64, frames config.Frames, strategy Strategy, logger logging.Logger) ([][]float64, error) {
	stft, err := s.newSTFT(frames)
	if err != nil {
		return nil, err
	}

	numChannels := len(audio)
	length := len(audio[0])
	spectra := make([][][]complex128, numChannels)
	magnitudes := make([][][]float64, numChannels)

	var g errgroup.Group
	for c := range numChannels {
		g.Go(func() error {
			spectra[c] = stft.Forward(audio[c])
			magnitudes[c] = spectral.Magnitude(spectra[c])
			return nil
		})
	}
	_ = g.Wait()

	masks, err := strategy.Masks(magnitudes, Params{Frames: frames, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("%s masks: %w", strategy.Name(), err)
	}

	background := make([][]float64, numChannels)
	for c := range numChannels {
		g.Go(func() error {
			masking.ApplyHighPass(masks[c], frames.CutoffBin)

			filtered := make([][]complex128, len(spectra[c]))
			for t, frame := range spectra[c] {
				gain := spectral.Mirror(masks[c][t], frames.WindowLength)
				filtered[t] = spectral.ApplyGain(frame, gain)
			}

			out, err := stft.Inverse(filtered, length)
			if err != nil {
				return fmt.Errorf("channel %d: %w", c, err)
			}
			background[c] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return background, nil
}

// progressCounter serialises progress callbacks from concurrent workers
type progressCounter struct {
	mu    sync.Mutex
	fn    ProgressFunc
	done  int
	total int
}

func newProgressCounter(fn ProgressFunc, total int) *progressCounter {
	return &progressCounter{fn: fn, total: total}
}

func (p *progressCounter) increment() {
	if p == nil || p.fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	p.fn(p.done, p.total)
}

func emptyChannels(numChannels int) [][]float64 {
	out := make([][]float64, numChannels)
	for c := range out {
		out[c] = []float64{}
	}
	return out
}

func segmentWorkers() int {
	return max(1, runtime.GOMAXPROCS(0))
}
