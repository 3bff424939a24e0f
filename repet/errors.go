package repet

import (
	"errors"
	"fmt"
)

// ErrInvalidParameter is wrapped by errors caused by invalid arguments
var ErrInvalidParameter = errors.New("invalid parameter")

func invalidParameter(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidParameter}, args...)...)
}

// validateAudio checks a [channel][sample] buffer and returns its length
func validateAudio(audio [][]float64, sampleRate int) (int, error) {
	if sampleRate <= 0 {
		return 0, invalidParameter("sample rate must be positive, got %d", sampleRate)
	}
	if len(audio) == 0 {
		return 0, invalidParameter("audio has no channels")
	}

	length := len(audio[0])
	for c, channel := range audio {
		if len(channel) != length {
			return 0, invalidParameter("channel %d has %d samples, want %d", c, len(channel), length)
		}
	}
	return length, nil
}
