package transcode

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/zafarrafii/REPET-Matlab-sub000/logging"
)

// wavPCMFormat is the WAVE_FORMAT_PCM audio format tag
const wavPCMFormat = 1

// ReadWAV decodes a PCM WAV file
func ReadWAV(path string) (*AudioData, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open file: %w", err)
	}
	defer file.Close()

	data, err := DecodeWAV(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	data.Metadata.Path = path

	logging.WithFields(logging.Fields{
		"component": "wav_decoder",
	}).Debug("decoded wav", logging.Fields{
		"path":        path,
		"sample_rate": data.SampleRate,
		"channels":    data.NumChannels(),
		"bit_depth":   data.BitDepth,
		"duration":    data.Duration.String(),
	})

	return data, nil
}

// DecodeWAV decodes PCM WAV data into channel-major samples scaled to
// [-1, 1). 16, 24 and 32-bit integer PCM is supported.
func DecodeWAV(r io.ReadSeeker) (*AudioData, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("could not read PCM buffer: %w", err)
	}

	numChannels := buf.Format.NumChannels
	if numChannels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", numChannels)
	}

	bitDepth := int(decoder.BitDepth)
	scale, err := fullScale(bitDepth)
	if err != nil {
		return nil, err
	}

	numSamples := len(buf.Data) / numChannels
	channels := make([][]float64, numChannels)
	for c := range channels {
		channels[c] = make([]float64, numSamples)
	}
	for i := range numSamples {
		for c := range numChannels {
			channels[c][i] = float64(buf.Data[i*numChannels+c]) / scale
		}
	}

	data := NewAudioData(channels, buf.Format.SampleRate, bitDepth)
	data.Metadata = &Metadata{Format: "wav"}
	return data, nil
}

// WriteWAV encodes data as PCM WAV at its bit depth (16-bit when unset)
func WriteWAV(path string, data *AudioData) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output file creation error: %w", err)
	}

	if err := EncodeWAV(file, data); err != nil {
		file.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return file.Close()
}

// EncodeWAV writes data as interleaved integer PCM. Samples outside [-1, 1)
// are clipped.
func EncodeWAV(w io.WriteSeeker, data *AudioData) error {
	if data == nil || data.NumChannels() == 0 {
		return fmt.Errorf("no audio to encode")
	}
	if data.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", data.SampleRate)
	}

	bitDepth := data.BitDepth
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale, err := fullScale(bitDepth)
	if err != nil {
		return err
	}

	numChannels := data.NumChannels()
	numSamples := data.NumSamples()
	for c, channel := range data.Channels {
		if len(channel) != numSamples {
			return fmt.Errorf("channel %d has %d samples, want %d", c, len(channel), numSamples)
		}
	}

	interleaved := make([]int, numSamples*numChannels)
	for i := range numSamples {
		for c := range numChannels {
			interleaved[i*numChannels+c] = quantize(data.Channels[c][i], scale)
		}
	}

	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: numChannels,
			SampleRate:  data.SampleRate,
		},
		Data:           interleaved,
		SourceBitDepth: bitDepth,
	}

	encoder := wav.NewEncoder(w, data.SampleRate, bitDepth, numChannels, wavPCMFormat)
	if err := encoder.Write(buf); err != nil {
		return fmt.Errorf("data writing error: %w", err)
	}
	return encoder.Close()
}

// fullScale returns 2^(bitDepth-1), the magnitude of the most negative sample
func fullScale(bitDepth int) (float64, error) {
	switch bitDepth {
	case 16, 24, 32:
		return math.Ldexp(1, bitDepth-1), nil
	default:
		return 0, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
}

func quantize(sample, scale float64) int {
	v := math.Round(sample * scale)
	v = math.Max(v, -scale)
	v = math.Min(v, scale-1)
	return int(v)
}
