// Command knock listens for taps on a melon and reports its ripeness from
// the dominant knock frequency.
//
// Usage:
//
//	knock [flags]
//
// Without -input it analyses a synthetic knock train at -synth Hz. With
// -input it reads raw signed 16-bit little-endian mono PCM from a file, or
// from standard input when the path is "-", at real-time pace.
//
// Examples:
//
//	knock -synth 150 -duration 5s
//	arecord -f S16_LE -c1 -r44100 -t raw | knock -input -
//	knock -input tap.raw -plot history.png -policy count -frames 300
//	knock -synth 175 -duration 10s -html history.html
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cwbudde/algo-knock/dsp/core"
	"github.com/cwbudde/algo-knock/dsp/peak"
	"github.com/cwbudde/algo-knock/dsp/spectrum"
	"github.com/cwbudde/algo-knock/dsp/window"
	"github.com/cwbudde/algo-knock/measure/history"
	"github.com/cwbudde/algo-knock/session"
	"github.com/cwbudde/algo-knock/source"
)

type options struct {
	input     string
	synthHz   float64
	synthDB   float64
	rate      float64
	fftSize   int
	window    string
	smoothing float64

	minFreq     float64
	maxFreq     float64
	threshold   float64
	interval    float64
	policy      string
	retention   float64
	frames      int
	miss        string
	tick        time.Duration
	tap         bool
	tapDuration float64

	duration time.Duration
	every    time.Duration
	plot     string
	html     string
	logLevel string
}

func main() {
	var o options
	def := session.DefaultConfig()
	flag.StringVar(&o.input, "input", "", `raw s16le mono PCM file, or "-" for stdin (default: synthetic knocks)`)
	flag.Float64Var(&o.synthHz, "synth", 150, "synthetic knock frequency in Hz")
	flag.Float64Var(&o.synthDB, "synth-level", -26, "synthetic knock peak level in dBFS")
	flag.Float64Var(&o.rate, "rate", 44100, "sample rate in Hz")
	flag.IntVar(&o.fftSize, "fft", 2048, "FFT size (power of two, 32..32768)")
	flag.StringVar(&o.window, "window", "blackman", "analysis window: rectangular, hann, hamming, blackman, blackmanharris, flattop")
	flag.Float64Var(&o.smoothing, "smoothing", 0.8, "spectral smoothing time constant (0..1)")
	flag.Float64Var(&o.minFreq, "min", def.MinFreq, "lower band edge in Hz")
	flag.Float64Var(&o.maxFreq, "max", def.MaxFreq, "upper band edge in Hz")
	flag.Float64Var(&o.threshold, "threshold", def.ThresholdDB, "amplitude gate in dB")
	flag.Float64Var(&o.interval, "interval", def.MinUpdateInterval, "minimum seconds between history samples")
	flag.StringVar(&o.policy, "policy", "time", "history bound: time or count")
	flag.Float64Var(&o.retention, "retention", def.RetentionWindow, "history window in seconds (policy time)")
	flag.IntVar(&o.frames, "frames", def.DisplayFrames, "history length in samples (policy count)")
	flag.StringVar(&o.miss, "miss", "skip", "ticks without a peak: skip or floor")
	flag.DurationVar(&o.tick, "tick", def.TickInterval, "analysis tick interval")
	flag.BoolVar(&o.tap, "tap", true, "report one verdict per knock")
	flag.Float64Var(&o.tapDuration, "tap-duration", def.Tap.Duration, "seconds recorded after a knock")
	flag.DurationVar(&o.duration, "duration", 0, "stop after this long (0: until end of input or interrupt)")
	flag.DurationVar(&o.every, "every", 500*time.Millisecond, "print a status row this often")
	flag.StringVar(&o.plot, "plot", "", "write a PNG chart of the history to this path")
	flag.StringVar(&o.html, "html", "", "write an interactive HTML chart of the history to this path")
	flag.StringVar(&o.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: knock [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Classifies melon ripeness from the dominant knock frequency.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  knock -synth 150 -duration 5s\n")
		fmt.Fprintf(os.Stderr, "  arecord -f S16_LE -c1 -r44100 -t raw | knock -input -\n")
		fmt.Fprintf(os.Stderr, "  knock -input tap.raw -plot history.png\n")
	}
	flag.Parse()

	if err := run(o); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(o options) error {
	if o.every <= 0 {
		return fmt.Errorf("status interval must be > 0: %v", o.every)
	}
	logger, err := newLogger(o.logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := buildConfig(o)
	if err != nil {
		return err
	}
	src, err := buildSource(o, os.Stdin)
	if err != nil {
		return err
	}
	logAnalysis(logger, o)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := session.New(src, session.WithLogger(logger), session.WithConfig(cfg))
	if err := sess.Start(ctx); err != nil {
		return err
	}

	var timeout <-chan time.Time
	if o.duration > 0 {
		timer := time.NewTimer(o.duration)
		defer timer.Stop()
		timeout = timer.C
	}
	every := time.NewTicker(o.every)
	defer every.Stop()

	rep := newReporter(os.Stdout)
	var final session.Readout
loop:
	for {
		select {
		case <-sess.Done():
			final = sess.Readout()
			break loop
		case <-timeout:
			final = sess.Readout()
			break loop
		case <-every.C:
			rep.row(sess.Readout())
		}
	}

	rep.row(final)
	if err := sess.Stop(); err != nil {
		logger.Warn("release input", zap.Error(err))
	}
	if err := rep.summary(final); err != nil {
		return err
	}

	if o.plot != "" {
		if err := writeChart(o.plot, final); err != nil {
			return fmt.Errorf("write chart: %w", err)
		}
		logger.Info("chart written", zap.String("path", o.plot))
	}
	if o.html != "" {
		if err := writeHTMLChart(o.html, final); err != nil {
			return fmt.Errorf("write html chart: %w", err)
		}
		logger.Info("chart written", zap.String("path", o.html))
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	cfg.Encoding = "console"
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

func buildConfig(o options) (session.Config, error) {
	cfg := session.DefaultConfig()

	policy, err := history.ParsePolicy(o.policy)
	if err != nil {
		return cfg, err
	}
	miss, err := peak.ParseMissPolicy(o.miss)
	if err != nil {
		return cfg, err
	}

	cfg.MinFreq = o.minFreq
	cfg.MaxFreq = o.maxFreq
	cfg.ThresholdDB = o.threshold
	cfg.MinUpdateInterval = o.interval
	cfg.HistoryPolicy = policy
	cfg.RetentionWindow = o.retention
	cfg.DisplayFrames = o.frames
	cfg.MissPolicy = miss
	cfg.TickInterval = o.tick
	cfg.Tap.Enabled = o.tap
	cfg.Tap.Duration = o.tapDuration
	return cfg, nil
}

func buildSource(o options, stdin io.Reader) (source.Source, error) {
	if !core.IsPowerOfTwo(o.fftSize) {
		return nil, fmt.Errorf("fft size must be a power of two: %d", o.fftSize)
	}
	if o.rate <= 0 {
		return nil, fmt.Errorf("sample rate must be > 0: %f", o.rate)
	}
	win, err := window.Parse(o.window)
	if err != nil {
		return nil, err
	}

	proc := core.ApplyProcessorOptions(core.WithSampleRate(o.rate), core.WithFFTSize(o.fftSize))
	an := []spectrum.AnalyserOption{
		spectrum.WithWindow(win),
		spectrum.WithSmoothing(o.smoothing),
	}

	switch o.input {
	case "":
		s := source.NewSynth(o.synthHz)
		s.Processor = proc
		s.Train.Amplitude = core.DBToLinear(o.synthDB)
		s.Analyser = an
		return s, nil
	case "-":
		if stdin == nil {
			return nil, errors.New("stdin is not available")
		}
		p := source.NewPCM(stdin)
		p.Processor = proc
		p.Analyser = an
		return p, nil
	default:
		return &source.File{Path: o.input, Processor: proc, Analyser: an}, nil
	}
}

// logAnalysis reports the frequency resolution implied by the analyser flags.
func logAnalysis(logger *zap.Logger, o options) {
	win, err := window.Parse(o.window)
	if err != nil {
		return
	}
	info := window.Info(win)
	bins := o.fftSize / 2
	binHz := spectrum.BinWidth(o.rate, bins)
	logger.Info("analysis",
		zap.String("window", info.Name),
		zap.Int("fft_size", o.fftSize),
		zap.Float64("bin_hz", binHz),
		zap.Float64("enbw_hz", binHz*info.ENBW),
		zap.Float64("coherent_gain_db", core.LinearToDB(info.CoherentGain)),
	)
}
