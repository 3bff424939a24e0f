package transcode

import (
	"time"
)

// AudioData holds decoded audio as [channel][sample] float64 samples in
// [-1, 1)
type AudioData struct {
	Channels   [][]float64   `json:"-"`
	SampleRate int           `json:"sample_rate"`
	BitDepth   int           `json:"bit_depth"`
	Duration   time.Duration `json:"duration"`
	Metadata   *Metadata     `json:"metadata,omitempty"`
}

// Metadata describes where audio came from
type Metadata struct {
	Path   string `json:"path,omitempty"`
	Format string `json:"format"`
}

// NewAudioData wraps channel-major samples
func NewAudioData(channels [][]float64, sampleRate, bitDepth int) *AudioData {
	data := &AudioData{
		Channels:   channels,
		SampleRate: sampleRate,
		BitDepth:   bitDepth,
	}
	data.Duration = data.computeDuration()
	return data
}

// NumChannels returns the channel count
func (a *AudioData) NumChannels() int {
	return len(a.Channels)
}

// NumSamples returns the number of samples per channel
func (a *AudioData) NumSamples() int {
	if len(a.Channels) == 0 {
		return 0
	}
	return len(a.Channels[0])
}

// WithChannels returns a copy of a carrying different samples with the same
// sample rate, bit depth and metadata
func (a *AudioData) WithChannels(channels [][]float64) *AudioData {
	out := NewAudioData(channels, a.SampleRate, a.BitDepth)
	if a.Metadata != nil {
		meta := *a.Metadata
		meta.Path = ""
		out.Metadata = &meta
	}
	return out
}

func (a *AudioData) computeDuration() time.Duration {
	if a.SampleRate <= 0 {
		return 0
	}
	return time.Duration(a.NumSamples()) * time.Second / time.Duration(a.SampleRate)
}
