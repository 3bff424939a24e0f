package repet

import (
	"errors"
	"testing"

	"github.com/zafarrafii/REPET-Matlab-sub000/internal/testutil"
	"github.com/zafarrafii/REPET-Matlab-sub000/logging"
	"github.com/zafarrafii/REPET-Matlab-sub000/repet/config"
)

// onlineConfig keeps the buffer just longer than one test period
func onlineConfig() config.Config {
	cfg := config.ConfigForVariant("simonline")
	cfg.Online.BufferLength = 2.5
	return cfg
}

func newTestOnline(t *testing.T, channels int) *Online {
	t.Helper()
	online, err := NewOnline(onlineConfig(), testSampleRate, channels, WithLogger(&logging.NoOpLogger{}))
	if err != nil {
		t.Fatalf("NewOnline() error = %v", err)
	}
	return online
}

func streamAll(t *testing.T, online *Online, signal []float64, blockSize int) []float64 {
	t.Helper()
	var out []float64
	for start := 0; start < len(signal); start += blockSize {
		end := min(start+blockSize, len(signal))
		samples, err := online.Write([][]float64{signal[start:end]})
		if err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		out = append(out, samples[0]...)
	}
	tail, err := online.Flush()
	if err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	return append(out, tail[0]...)
}

func TestOnlineIsCausal(t *testing.T) {
	mixture, _ := repeatingMixture()
	changed := append([]float64(nil), mixture...)
	cut := 4 * testSampleRate
	for i := cut; i < len(changed); i++ {
		changed[i] = -changed[i] + 0.1
	}

	a := streamAll(t, newTestOnline(t, 1), mixture, 1000)
	b := streamAll(t, newTestOnline(t, 1), changed, 1000)

	// Output sample n only depends on input samples before n + window length.
	window := newTestOnline(t, 1).Frames().WindowLength
	limit := cut - window + 1
	testutil.RequireSliceNearlyEqual(t, a[:limit], b[:limit], 0)
}

func TestOnlineBlockSizeDoesNotMatter(t *testing.T) {
	mixture, _ := repeatingMixture()

	whole := streamAll(t, newTestOnline(t, 1), mixture, len(mixture))
	chunked := streamAll(t, newTestOnline(t, 1), mixture, 777)
	testutil.RequireSliceNearlyEqual(t, chunked, whole, 0)

	if len(whole) < len(mixture) {
		t.Fatalf("output covers %d samples, want >= %d", len(whole), len(mixture))
	}
}

func TestOnlineFillsBufferWithSilence(t *testing.T) {
	mixture, _ := repeatingMixture()
	online := newTestOnline(t, 1)
	frames := online.Frames()

	out := streamAll(t, online, mixture, 4096)
	silent := (frames.BufferFrames - 1) * frames.Hop
	for i := range silent {
		if out[i] != 0 {
			t.Fatalf("sample %d = %v during buffer fill, want 0", i, out[i])
		}
	}
	if testutil.Energy(out, silent, len(mixture)) == 0 {
		t.Fatal("no background after the buffer filled")
	}
}

func TestOnlineSeparatesRepeatingBackground(t *testing.T) {
	mixture, burst := repeatingMixture()
	sep := newTestSeparator(t, onlineConfig())

	background, err := sep.Separate([][]float64{mixture}, testSampleRate, SimOnline)
	if err != nil {
		t.Fatalf("Separate() error = %v", err)
	}
	if len(background[0]) != len(mixture) {
		t.Fatalf("len = %d, want %d", len(background[0]), len(mixture))
	}

	// Once the buffer is full every frame has an identical frame in it.
	frames, err := onlineConfig().Frames(testSampleRate)
	if err != nil {
		t.Fatalf("Frames() error = %v", err)
	}
	start := frames.BufferFrames*frames.Hop + testSampleRate/10
	fg, _ := Foreground([][]float64{mixture}, background)
	outside := testutil.Energy(fg[0], start, burstStart-testSampleRate/10) +
		testutil.Energy(fg[0], burstEnd+testSampleRate/10, len(mixture)-testSampleRate/10)
	total := testutil.Energy(mixture, start, len(mixture))
	if outside > 0.05*total {
		t.Fatalf("foreground energy outside burst = %v of %v", outside, total)
	}

	// Few similar frames are buffered, so the median only partly excludes
	// the burst.
	inside := testutil.Energy(fg[0], burstStart, burstEnd)
	if want := 0.1 * testutil.Energy(burst, 0, len(burst)); inside < want {
		t.Fatalf("foreground energy inside burst = %v, want >= %v", inside, want)
	}
}

func TestOnlineMultichannelAndErrors(t *testing.T) {
	online := newTestOnline(t, 2)

	if _, err := online.Write([][]float64{{0}}); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("channel count mismatch error = %v", err)
	}
	if _, err := online.Write([][]float64{{0, 0}, {0}}); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("ragged block error = %v", err)
	}

	left := testutil.DeterministicNoise(3, 0.5, 3000)
	right := testutil.DeterministicNoise(4, 0.5, 3000)
	out, err := online.Write([][]float64{left, right})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	tail, err := online.Flush()
	if err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	for c := range 2 {
		all := append(out[c], tail[c]...)
		if len(all) < 3000 {
			t.Fatalf("channel %d covers %d samples", c, len(all))
		}
		testutil.RequireFinite(t, all)
	}

	if _, err := online.Write([][]float64{{0}, {0}}); err == nil {
		t.Fatal("expected error writing after Flush")
	}

	if _, err := NewOnline(onlineConfig(), testSampleRate, 0); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("zero channels error = %v", err)
	}
	if _, err := NewOnline(onlineConfig(), 0, 1); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("zero sample rate error = %v", err)
	}
}

func TestOnlineShortInput(t *testing.T) {
	online := newTestOnline(t, 1)
	out := streamAll(t, online, []float64{0.1, -0.2, 0.3}, 2)
	if len(out) < 3 {
		t.Fatalf("output covers %d samples, want >= 3", len(out))
	}

	empty := newTestOnline(t, 1)
	tail, err := empty.Flush()
	if err != nil || len(tail[0]) != 0 {
		t.Fatalf("Flush() on empty stream = %v, %v", tail, err)
	}
}
