// Command repet separates the repeating background of a WAV file from its
// non-repeating foreground and writes both as WAV files.
//
// Usage:
//
//	repet -in mix.wav [-variant original] [-bg bg.wav] [-fg fg.wav] [-config cfg.json] [-v]
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/zafarrafii/REPET-Matlab-sub000/logging"
	"github.com/zafarrafii/REPET-Matlab-sub000/repet"
	"github.com/zafarrafii/REPET-Matlab-sub000/repet/config"
	"github.com/zafarrafii/REPET-Matlab-sub000/transcode"
)

type options struct {
	input      string
	variant    string
	background string
	foreground string
	configPath string
	verbose    bool
	progress   bool
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := logging.NewDefaultLogger()
	if opts.verbose {
		logger.SetLevel(logging.DebugLevel)
	}
	logging.SetGlobalLogger(logger)

	if err := run(opts); err != nil {
		logging.Error(err, "repet failed")
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var opts options

	fs := flag.NewFlagSet("repet", flag.ContinueOnError)
	fs.StringVar(&opts.input, "in", "", "Input mixture (WAV)")
	fs.StringVar(&opts.variant, "variant", "", "Algorithm: original, extended, adaptive, sim, simonline (default from config)")
	fs.StringVar(&opts.background, "bg", "", "Background output (default <in>_background.wav)")
	fs.StringVar(&opts.foreground, "fg", "", "Foreground output (default <in>_foreground.wav)")
	fs.StringVar(&opts.configPath, "config", "", "JSON config file; REPET_* environment variables override it")
	fs.BoolVar(&opts.verbose, "v", false, "Verbose logging")
	fs.BoolVar(&opts.progress, "progress", true, "Show a progress bar")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	if opts.input == "" {
		return opts, errors.New("input file not specified (-in)")
	}

	base := strings.TrimSuffix(opts.input, filepath.Ext(opts.input))
	if opts.background == "" {
		opts.background = base + "_background.wav"
	}
	if opts.foreground == "" {
		opts.foreground = base + "_foreground.wav"
	}

	return opts, nil
}

func loadConfig(path string) (config.Config, error) {
	cfg := config.DefaultConfig()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	cfg = config.FromEnv(cfg)
	return cfg, cfg.Validate()
}

func run(opts options) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	name := opts.variant
	if name == "" {
		name = cfg.Variant
	}
	variant, err := repet.ParseVariant(name)
	if err != nil {
		return err
	}

	audio, err := transcode.ReadWAV(opts.input)
	if err != nil {
		return err
	}

	logger := logging.WithFields(logging.Fields{"component": "repet_cli"})
	logger.Info("separating", logging.Fields{
		"input":       opts.input,
		"variant":     variant.String(),
		"channels":    audio.NumChannels(),
		"sample_rate": audio.SampleRate,
		"duration":    audio.Duration.String(),
	})

	sepOpts := []repet.Option{}
	var progress *mpb.Progress
	var bar *mpb.Bar
	if opts.progress {
		progress = mpb.New(mpb.WithWidth(64))
		bar = progress.AddBar(0,
			mpb.PrependDecorators(
				decor.Name(variant.String()+": "),
				decor.CountersNoUnit("%d / %d"),
			),
			mpb.AppendDecorators(
				decor.Percentage(),
				decor.EwmaETA(decor.ET_STYLE_GO, 60),
			),
		)
		sepOpts = append(sepOpts, repet.WithProgress(func(done, total int) {
			if total > 0 {
				bar.SetTotal(int64(total), false)
			}
			bar.EwmaSetCurrent(int64(done), time.Second)
		}))
	}

	separator, err := repet.NewSeparator(cfg, sepOpts...)
	if err != nil {
		return err
	}

	started := time.Now()
	background, foreground, err := separator.SeparateAudio(audio, variant)
	if bar != nil {
		if err != nil {
			bar.Abort(false)
		} else {
			bar.SetTotal(-1, true)
		}
		progress.Wait()
	}
	if err != nil {
		return err
	}

	if err := transcode.WriteWAV(opts.background, background); err != nil {
		return err
	}
	if err := transcode.WriteWAV(opts.foreground, foreground); err != nil {
		return err
	}

	logger.Info("done", logging.Fields{
		"background": opts.background,
		"foreground": opts.foreground,
		"elapsed":    time.Since(started).Round(time.Millisecond).String(),
	})
	return nil
}
