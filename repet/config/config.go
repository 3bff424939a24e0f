package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/zafarrafii/REPET-Matlab-sub000/algorithms/common"
	"github.com/zafarrafii/REPET-Matlab-sub000/algorithms/masking"
	"github.com/zafarrafii/REPET-Matlab-sub000/algorithms/spectral"
	"github.com/zafarrafii/REPET-Matlab-sub000/algorithms/windowing"
)

// ErrInvalidConfig is wrapped by every validation error
var ErrInvalidConfig = errors.New("invalid config")

// Config holds the tunables of every separation variant. Durations are in
// seconds and frequencies in Hz; Frames converts them for a sample rate.
type Config struct {
	// Variant names the default algorithm ("original", "extended",
	// "adaptive", "sim", "simonline"); callers may override it.
	Variant string `json:"variant,omitempty"`

	// Framing
	WindowDuration float64 `json:"window_duration"`
	WindowType     string  `json:"window_type"` // "hamming", "hann"

	// Repeating period search range [min, max]
	PeriodRange [2]float64 `json:"period_range"`

	// Frequencies below the cutoff stay in the background
	CutoffFrequency float64 `json:"cutoff_frequency"`

	Segment    SegmentConfig    `json:"segment"`
	Adaptive   AdaptiveConfig   `json:"adaptive"`
	Similarity SimilarityConfig `json:"similarity"`
	Online     OnlineConfig     `json:"online"`
}

// SegmentConfig sizes the analysis segments of the extended variant and the
// beat spectrogram of the adaptive variant
type SegmentConfig struct {
	Length float64 `json:"length"`
	Step   float64 `json:"step"`
}

type AdaptiveConfig struct {
	FilterOrder int `json:"filter_order"`
}

// SimilarityConfig selects the similar frames of the sim variants
type SimilarityConfig struct {
	Threshold float64 `json:"threshold"` // minimum cosine similarity
	Distance  float64 `json:"distance"`  // minimum spacing between selected frames
	Number    int     `json:"number"`    // maximum frames per median
}

type OnlineConfig struct {
	BufferLength float64 `json:"buffer_length"`
}

// Frames holds Config expressed in samples and frames for one sample rate
type Frames struct {
	SampleRate   int
	WindowLength int
	Hop          int

	MinPeriod int
	MaxPeriod int
	CutoffBin int

	// Extended segments in samples
	SegmentSamples     int
	SegmentStepSamples int

	// Beat spectrogram segments in frames
	SegmentFrames     int
	SegmentStepFrames int

	FilterOrder int

	SimilarityThreshold float64
	SimilarityDistance  int
	SimilarityNumber    int

	BufferFrames int
}

// DefaultConfig returns the defaults shared by every variant
func DefaultConfig() Config {
	return Config{
		Variant:         "original",
		WindowDuration:  0.04,
		WindowType:      string(windowing.WindowHamming),
		PeriodRange:     [2]float64{1, 10},
		CutoffFrequency: 100,
		Segment: SegmentConfig{
			Length: 10,
			Step:   5,
		},
		Adaptive: AdaptiveConfig{
			FilterOrder: 5,
		},
		Similarity: SimilarityConfig{
			Threshold: 0,
			Distance:  1,
			Number:    100,
		},
		Online: OnlineConfig{
			BufferLength: 10,
		},
	}
}

// ConfigForVariant returns the defaults with Variant set to name
func ConfigForVariant(name string) Config {
	cfg := DefaultConfig()
	if name != "" {
		cfg.Variant = name
	}
	return cfg
}

// Validate checks every field; the returned error wraps ErrInvalidConfig
func (c Config) Validate() error {
	switch {
	case !positive(c.WindowDuration):
		return invalid("window_duration must be positive, got %v", c.WindowDuration)
	case c.WindowType != "" && c.WindowType != string(windowing.WindowHamming) && c.WindowType != string(windowing.WindowHann):
		return invalid("unsupported window_type %q", c.WindowType)
	case !finite(c.PeriodRange[0]) || !finite(c.PeriodRange[1]) || c.PeriodRange[0] < 0 || c.PeriodRange[1] < c.PeriodRange[0]:
		return invalid("period_range must satisfy 0 <= min <= max, got %v", c.PeriodRange)
	case !finite(c.CutoffFrequency) || c.CutoffFrequency < 0:
		return invalid("cutoff_frequency must be non-negative, got %v", c.CutoffFrequency)
	case !positive(c.Segment.Length):
		return invalid("segment.length must be positive, got %v", c.Segment.Length)
	case !positive(c.Segment.Step) || c.Segment.Step > c.Segment.Length:
		return invalid("segment.step must be in (0, segment.length], got %v", c.Segment.Step)
	case c.Adaptive.FilterOrder <= 0:
		return invalid("adaptive.filter_order must be positive, got %d", c.Adaptive.FilterOrder)
	case !finite(c.Similarity.Threshold):
		return invalid("similarity.threshold must be finite")
	case !finite(c.Similarity.Distance) || c.Similarity.Distance < 0:
		return invalid("similarity.distance must be non-negative, got %v", c.Similarity.Distance)
	case c.Similarity.Number <= 0:
		return invalid("similarity.number must be positive, got %d", c.Similarity.Number)
	case !positive(c.Online.BufferLength):
		return invalid("online.buffer_length must be positive, got %v", c.Online.BufferLength)
	}
	return nil
}

// Frames derives the frame-domain parameters for sampleRate
func (c Config) Frames(sampleRate int) (Frames, error) {
	if sampleRate <= 0 {
		return Frames{}, invalid("sample rate must be positive, got %d", sampleRate)
	}
	if err := c.Validate(); err != nil {
		return Frames{}, err
	}

	windowLength, err := spectral.WindowLength(sampleRate, c.WindowDuration)
	if err != nil {
		return Frames{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	hop := windowLength / 2
	sr := float64(sampleRate)

	f := Frames{
		SampleRate:   sampleRate,
		WindowLength: windowLength,
		Hop:          hop,

		MinPeriod: common.SecondsToFrames(c.PeriodRange[0], sampleRate, hop),
		MaxPeriod: common.SecondsToFrames(c.PeriodRange[1], sampleRate, hop),
		CutoffBin: masking.HighPassBin(c.CutoffFrequency, windowLength, sampleRate),

		SegmentSamples:     int(math.Round(c.Segment.Length * sr)),
		SegmentStepSamples: int(math.Round(c.Segment.Step * sr)),
		SegmentFrames:      common.SecondsToFrames(c.Segment.Length, sampleRate, hop),
		SegmentStepFrames:  common.SecondsToFrames(c.Segment.Step, sampleRate, hop),

		FilterOrder: c.Adaptive.FilterOrder,

		SimilarityThreshold: c.Similarity.Threshold,
		SimilarityDistance:  common.SecondsToFrames(c.Similarity.Distance, sampleRate, hop),
		SimilarityNumber:    c.Similarity.Number,

		BufferFrames: common.SecondsToFrames(c.Online.BufferLength, sampleRate, hop),
	}

	// Very short durations at low sample rates can round to zero frames
	f.SegmentFrames = max(f.SegmentFrames, 1)
	f.SegmentStepFrames = max(f.SegmentStepFrames, 1)
	f.SegmentSamples = max(f.SegmentSamples, 1)
	f.SegmentStepSamples = max(f.SegmentStepSamples, 1)
	f.BufferFrames = max(f.BufferFrames, 1)

	return f, nil
}

// Load reads a JSON config from path. Fields missing from the file keep
// their default values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidConfig, path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv overlays REPET_* environment variables on base. Unset or
// unparsable variables leave the base value unchanged.
func FromEnv(base Config) Config {
	cfg := base
	cfg.Variant = envStr("REPET_VARIANT", cfg.Variant)
	cfg.WindowDuration = envFloat("REPET_WINDOW_DURATION", cfg.WindowDuration)
	cfg.WindowType = envStr("REPET_WINDOW_TYPE", cfg.WindowType)
	cfg.PeriodRange[0] = envFloat("REPET_PERIOD_MIN", cfg.PeriodRange[0])
	cfg.PeriodRange[1] = envFloat("REPET_PERIOD_MAX", cfg.PeriodRange[1])
	cfg.CutoffFrequency = envFloat("REPET_CUTOFF_FREQUENCY", cfg.CutoffFrequency)
	cfg.Segment.Length = envFloat("REPET_SEGMENT_LENGTH", cfg.Segment.Length)
	cfg.Segment.Step = envFloat("REPET_SEGMENT_STEP", cfg.Segment.Step)
	cfg.Adaptive.FilterOrder = envInt("REPET_FILTER_ORDER", cfg.Adaptive.FilterOrder)
	cfg.Similarity.Threshold = envFloat("REPET_SIMILARITY_THRESHOLD", cfg.Similarity.Threshold)
	cfg.Similarity.Distance = envFloat("REPET_SIMILARITY_DISTANCE", cfg.Similarity.Distance)
	cfg.Similarity.Number = envInt("REPET_SIMILARITY_NUMBER", cfg.Similarity.Number)
	cfg.Online.BufferLength = envFloat("REPET_BUFFER_LENGTH", cfg.Online.BufferLength)
	return cfg
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...)
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
