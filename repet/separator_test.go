package repet

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/zafarrafii/REPET-Matlab-sub000/internal/testutil"
	"github.com/zafarrafii/REPET-Matlab-sub000/logging"
	"github.com/zafarrafii/REPET-Matlab-sub000/repet/config"
	"github.com/zafarrafii/REPET-Matlab-sub000/transcode"
)

const (
	testSampleRate = 8000
	// 64 hops of 256 samples, so the period is a whole number of frames
	testPeriod  = 16384
	testRepeats = 5
	burstStart  = 3 * testSampleRate
	burstEnd    = burstStart + testSampleRate/2
)

// repeatingMixture returns testRepeats copies of a noise-plus-tone segment
// with a noise burst added at 3 s, and the burst alone.
func repeatingMixture() (mixture, burst []float64) {
	noise := testutil.DeterministicNoise(1, 0.2, testPeriod)
	tone := testutil.DeterministicSine(1000, testSampleRate, 0.2, testPeriod)

	mixture = make([]float64, 0, testPeriod*testRepeats)
	for range testRepeats {
		for i := range testPeriod {
			mixture = append(mixture, noise[i]+tone[i])
		}
	}

	burst = testutil.DeterministicNoise(2, 0.5, burstEnd-burstStart)
	for i, v := range burst {
		mixture[burstStart+i] += v
	}
	return mixture, burst
}

func newTestSeparator(t *testing.T, cfg config.Config, opts ...Option) *Separator {
	t.Helper()
	opts = append([]Option{WithLogger(&logging.NoOpLogger{})}, opts...)
	sep, err := NewSeparator(cfg, opts...)
	if err != nil {
		t.Fatalf("NewSeparator() error = %v", err)
	}
	return sep
}

// requireForegroundIsolated checks that the foreground holds most of the
// burst and at most a leakage share of the mixture elsewhere.
func requireForegroundIsolated(t *testing.T, mixture, burst, background []float64, leakage float64) {
	t.Helper()
	testutil.RequireFinite(t, background)

	foreground, err := Foreground([][]float64{mixture}, [][]float64{background})
	if err != nil {
		t.Fatalf("Foreground() error = %v", err)
	}
	fg := foreground[0]

	margin := testSampleRate / 10
	outside := testutil.Energy(fg, margin, burstStart-margin) +
		testutil.Energy(fg, burstEnd+margin, len(fg)-margin)
	mixOutside := testutil.Energy(mixture, margin, burstStart-margin) +
		testutil.Energy(mixture, burstEnd+margin, len(mixture)-margin)
	if outside > leakage*mixOutside {
		t.Fatalf("foreground energy outside burst = %v, want <= %v * %v", outside, leakage, mixOutside)
	}

	inside := testutil.Energy(fg, burstStart, burstEnd)
	if want := 0.3 * testutil.Energy(burst, 0, len(burst)); inside < want {
		t.Fatalf("foreground energy inside burst = %v, want >= %v", inside, want)
	}
}

func TestSeparatePeriodicVariants(t *testing.T) {
	mixture, burst := repeatingMixture()

	extended := config.DefaultConfig()
	extended.Segment = config.SegmentConfig{Length: 6.5, Step: 3.25}

	cases := []struct {
		name    string
		variant Variant
		cfg     config.Config
	}{
		{"original", Original, config.DefaultConfig()},
		{"adaptive", Adaptive, config.DefaultConfig()},
		{"extended two segments", Extended, extended},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sep := newTestSeparator(t, tc.cfg)
			background, err := sep.Separate([][]float64{mixture}, testSampleRate, tc.variant)
			if err != nil {
				t.Fatalf("Separate() error = %v", err)
			}
			if len(background) != 1 || len(background[0]) != len(mixture) {
				t.Fatalf("background shape = %d x %d", len(background), len(background[0]))
			}
			requireForegroundIsolated(t, mixture, burst, background[0], 0.05)
		})
	}
}

func TestSeparateSimConcentratesForeground(t *testing.T) {
	mixture, _ := repeatingMixture()
	sep := newTestSeparator(t, config.DefaultConfig())

	background, err := sep.Separate([][]float64{mixture}, testSampleRate, Sim)
	if err != nil {
		t.Fatalf("Separate() error = %v", err)
	}
	testutil.RequireFinite(t, background[0])

	fg, _ := Foreground([][]float64{mixture}, background)
	inside := testutil.Energy(fg[0], burstStart, burstEnd) / float64(burstEnd-burstStart)
	outside := testutil.Energy(fg[0], 0, burstStart) / float64(burstStart)
	if inside < 2*outside {
		t.Fatalf("foreground power inside burst = %v, outside = %v", inside, outside)
	}
}

func TestExtendedMatchesOriginalOnShortInput(t *testing.T) {
	mixture, _ := repeatingMixture()
	sep := newTestSeparator(t, config.DefaultConfig())

	original, err := sep.Separate([][]float64{mixture}, testSampleRate, Original)
	if err != nil {
		t.Fatalf("Separate(Original) error = %v", err)
	}
	extended, err := sep.Separate([][]float64{mixture}, testSampleRate, Extended)
	if err != nil {
		t.Fatalf("Separate(Extended) error = %v", err)
	}
	testutil.RequireSliceNearlyEqual(t, extended[0], original[0], 1e-12)
}

func TestSeparateMultichannel(t *testing.T) {
	mixture, _ := repeatingMixture()
	scaled := make([]float64, len(mixture))
	for i, v := range mixture {
		scaled[i] = 0.5 * v
	}

	sep := newTestSeparator(t, config.DefaultConfig())
	background, err := sep.Separate([][]float64{mixture, scaled}, testSampleRate, Original)
	if err != nil {
		t.Fatalf("Separate() error = %v", err)
	}

	// Masks are scale invariant, so the second channel is half the first.
	half := make([]float64, len(background[0]))
	for i, v := range background[0] {
		half[i] = 0.5 * v
	}
	testutil.RequireSliceNearlyEqual(t, background[1], half, 1e-9)
}

func TestSeparateSilenceAndEmpty(t *testing.T) {
	sep := newTestSeparator(t, config.DefaultConfig())
	silence := [][]float64{make([]float64, 2*testSampleRate), make([]float64, 2*testSampleRate)}

	for _, v := range Variants() {
		background, err := sep.Separate(silence, testSampleRate, v)
		if err != nil {
			t.Fatalf("Separate(%s) error = %v", v, err)
		}
		for c := range background {
			testutil.RequireSliceNearlyEqual(t, background[c], silence[c], 0)
		}

		empty, err := sep.Separate([][]float64{{}, {}}, testSampleRate, v)
		if err != nil {
			t.Fatalf("Separate(%s, empty) error = %v", v, err)
		}
		if len(empty) != 2 || len(empty[0]) != 0 || len(empty[1]) != 0 {
			t.Fatalf("Separate(%s, empty) = %v", v, empty)
		}
	}
}

func TestSeparateWithoutPeriodIsIdentity(t *testing.T) {
	var out, errOut bytes.Buffer
	logger := logging.NewWriterLogger(&out, &errOut)

	sep, err := NewSeparator(config.DefaultConfig(), WithLogger(logger))
	if err != nil {
		t.Fatalf("NewSeparator() error = %v", err)
	}

	// One second is too short for a 1 s minimum period to repeat 3 times.
	mixture := testutil.DeterministicNoise(5, 0.3, testSampleRate)
	background, err := sep.Separate([][]float64{mixture}, testSampleRate, Original)
	if err != nil {
		t.Fatalf("Separate() error = %v", err)
	}

	testutil.RequireSliceNearlyEqual(t, background[0], mixture, 1e-9)
	if !strings.Contains(errOut.String(), "[WARN]") {
		t.Fatalf("expected a warning, got %q", errOut.String())
	}
}

func TestSeparateRejectsInvalidInput(t *testing.T) {
	sep := newTestSeparator(t, config.DefaultConfig())

	cases := map[string]struct {
		audio      [][]float64
		sampleRate int
		variant    Variant
	}{
		"zero sample rate":  {[][]float64{{0, 0}}, 0, Original},
		"no channels":       {nil, testSampleRate, Original},
		"ragged channels":   {[][]float64{{0, 0}, {0}}, testSampleRate, Original},
		"unknown variant":   {[][]float64{{0, 0}}, testSampleRate, Variant(42)},
		"negative variant":  {[][]float64{{0, 0}}, testSampleRate, Variant(-1)},
		"tiny sample rate":  {[][]float64{{0, 0}}, -5, Sim},
		"ragged simonline":  {[][]float64{{0, 0}, {}}, testSampleRate, SimOnline},
		"ragged extended":   {[][]float64{{0}, {0, 0}}, testSampleRate, Extended},
		"no channels (sim)": {[][]float64{}, testSampleRate, Sim},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := sep.Separate(tc.audio, tc.sampleRate, tc.variant)
			if !errors.Is(err, ErrInvalidParameter) {
				t.Fatalf("Separate() error = %v, want ErrInvalidParameter", err)
			}
		})
	}
}

func TestNewSeparatorRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Adaptive.FilterOrder = 0

	_, err := NewSeparator(cfg)
	if !errors.Is(err, ErrInvalidParameter) || !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("NewSeparator() error = %v, want ErrInvalidParameter and ErrInvalidConfig", err)
	}
}

func TestSeparateAudio(t *testing.T) {
	mixture, _ := repeatingMixture()
	data := transcode.NewAudioData([][]float64{mixture}, testSampleRate, 24)

	sep := newTestSeparator(t, config.DefaultConfig())
	background, foreground, err := sep.SeparateAudio(data, Original)
	if err != nil {
		t.Fatalf("SeparateAudio() error = %v", err)
	}

	if background.SampleRate != testSampleRate || foreground.BitDepth != 24 {
		t.Fatalf("format not preserved: %+v / %+v", background, foreground)
	}
	for i := range mixture {
		if sum := background.Channels[0][i] + foreground.Channels[0][i]; sum-mixture[i] > 1e-12 || mixture[i]-sum > 1e-12 {
			t.Fatalf("sample %d: background + foreground = %v, want %v", i, sum, mixture[i])
		}
	}

	if _, _, err := sep.SeparateAudio(nil, Original); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("SeparateAudio(nil) error = %v", err)
	}
}

func TestForegroundRejectsMismatch(t *testing.T) {
	if _, err := Foreground([][]float64{{1}}, [][]float64{{1}, {2}}); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("channel mismatch error = %v", err)
	}
	if _, err := Foreground([][]float64{{1, 2}}, [][]float64{{1}}); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("length mismatch error = %v", err)
	}

	fg, err := Foreground([][]float64{{3, 1}}, [][]float64{{1, 1}})
	if err != nil {
		t.Fatalf("Foreground() error = %v", err)
	}
	testutil.RequireSliceNearlyEqual(t, fg[0], []float64{2, 0}, 0)
}

func TestProgressReported(t *testing.T) {
	mixture, _ := repeatingMixture()
	cfg := config.DefaultConfig()
	cfg.Segment = config.SegmentConfig{Length: 6.5, Step: 3.25}

	var calls [][2]int
	sep := newTestSeparator(t, cfg, WithProgress(func(done, total int) {
		calls = append(calls, [2]int{done, total})
	}))

	if _, err := sep.Separate([][]float64{mixture}, testSampleRate, Extended); err != nil {
		t.Fatalf("Separate() error = %v", err)
	}
	if len(calls) != 2 || calls[1] != [2]int{2, 2} {
		t.Fatalf("progress calls = %v, want [[1 2] [2 2]]", calls)
	}
}
