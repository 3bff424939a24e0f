package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() error = %v", err)
	}
	if got := ConfigForVariant("simonline").Variant; got != "simonline" {
		t.Fatalf("ConfigForVariant variant = %q", got)
	}
	if got := ConfigForVariant("").Variant; got != "original" {
		t.Fatalf("ConfigForVariant(\"\") variant = %q, want original", got)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"window duration":   func(c *Config) { c.WindowDuration = 0 },
		"window type":       func(c *Config) { c.WindowType = "kaiser" },
		"period inverted":   func(c *Config) { c.PeriodRange = [2]float64{5, 1} },
		"period negative":   func(c *Config) { c.PeriodRange = [2]float64{-1, 1} },
		"cutoff":            func(c *Config) { c.CutoffFrequency = -1 },
		"segment length":    func(c *Config) { c.Segment.Length = 0 },
		"segment step":      func(c *Config) { c.Segment.Step = 20 },
		"filter order":      func(c *Config) { c.Adaptive.FilterOrder = 0 },
		"similarity dist":   func(c *Config) { c.Similarity.Distance = -1 },
		"similarity number": func(c *Config) { c.Similarity.Number = 0 },
		"buffer":            func(c *Config) { c.Online.BufferLength = 0 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestFrames(t *testing.T) {
	cases := []struct {
		sampleRate                  int
		window, hop, minP, maxP     int
		cutoff, distance, buffer    int
		segmentFrames, segmentStepF int
	}{
		{8000, 512, 256, 31, 313, 7, 31, 313, 313, 156},
		{44100, 2048, 1024, 43, 431, 5, 43, 431, 431, 215},
	}

	for _, tc := range cases {
		f, err := DefaultConfig().Frames(tc.sampleRate)
		if err != nil {
			t.Fatalf("Frames(%d) error = %v", tc.sampleRate, err)
		}
		if f.WindowLength != tc.window || f.Hop != tc.hop {
			t.Fatalf("Frames(%d) window/hop = %d/%d, want %d/%d", tc.sampleRate, f.WindowLength, f.Hop, tc.window, tc.hop)
		}
		if f.MinPeriod != tc.minP || f.MaxPeriod != tc.maxP {
			t.Fatalf("Frames(%d) period = [%d, %d], want [%d, %d]", tc.sampleRate, f.MinPeriod, f.MaxPeriod, tc.minP, tc.maxP)
		}
		if f.CutoffBin != tc.cutoff {
			t.Fatalf("Frames(%d) cutoff bin = %d, want %d", tc.sampleRate, f.CutoffBin, tc.cutoff)
		}
		if f.SimilarityDistance != tc.distance || f.BufferFrames != tc.buffer {
			t.Fatalf("Frames(%d) distance/buffer = %d/%d, want %d/%d", tc.sampleRate, f.SimilarityDistance, f.BufferFrames, tc.distance, tc.buffer)
		}
		if f.SegmentFrames != tc.segmentFrames || f.SegmentStepFrames != tc.segmentStepF {
			t.Fatalf("Frames(%d) segment frames = %d/%d, want %d/%d", tc.sampleRate, f.SegmentFrames, f.SegmentStepFrames, tc.segmentFrames, tc.segmentStepF)
		}
		if f.SegmentSamples != 10*tc.sampleRate || f.SegmentStepSamples != 5*tc.sampleRate {
			t.Fatalf("Frames(%d) segment samples = %d/%d", tc.sampleRate, f.SegmentSamples, f.SegmentStepSamples)
		}
	}

	if _, err := DefaultConfig().Frames(0); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Frames(0) error = %v, want ErrInvalidConfig", err)
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repet.json")
	data := `{"variant": "adaptive", "period_range": [2, 8], "similarity": {"number": 20}}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := DefaultConfig()
	want.Variant = "adaptive"
	want.PeriodRange = [2]float64{2, 8}
	want.Similarity.Number = 20
	if cfg != want {
		t.Fatalf("Load() = %+v, want %+v", cfg, want)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"window_duration": -1}`), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := Load(bad); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Load(bad) error = %v, want ErrInvalidConfig", err)
	}

	garbled := filepath.Join(dir, "garbled.json")
	if err := os.WriteFile(garbled, []byte(`{`), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := Load(garbled); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Load(garbled) error = %v, want ErrInvalidConfig", err)
	}

	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("REPET_VARIANT", "sim")
	t.Setenv("REPET_PERIOD_MAX", "6.5")
	t.Setenv("REPET_FILTER_ORDER", "7")
	t.Setenv("REPET_SIMILARITY_NUMBER", "not-a-number")

	cfg := FromEnv(DefaultConfig())
	if cfg.Variant != "sim" || cfg.PeriodRange[1] != 6.5 || cfg.Adaptive.FilterOrder != 7 {
		t.Fatalf("FromEnv() = %+v", cfg)
	}
	if cfg.Similarity.Number != 100 {
		t.Fatalf("unparsable value overrode default: %d", cfg.Similarity.Number)
	}
}
