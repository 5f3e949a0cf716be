package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-knock/dsp/peak"
	"github.com/cwbudde/algo-knock/measure/history"
	"github.com/cwbudde/algo-knock/measure/ripeness"
	"github.com/cwbudde/algo-knock/measure/tap"
	"github.com/cwbudde/algo-knock/session"
	"github.com/cwbudde/algo-knock/source"
)

func defaultOptions() options {
	def := session.DefaultConfig()
	return options{
		synthHz:     150,
		synthDB:     -26,
		rate:        44100,
		fftSize:     2048,
		window:      "blackman",
		smoothing:   0.8,
		minFreq:     def.MinFreq,
		maxFreq:     def.MaxFreq,
		threshold:   def.ThresholdDB,
		interval:    def.MinUpdateInterval,
		policy:      "time",
		retention:   def.RetentionWindow,
		frames:      def.DisplayFrames,
		miss:        "skip",
		tick:        def.TickInterval,
		tap:         true,
		tapDuration: def.Tap.Duration,
		logLevel:    "info",
	}
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()
	o := defaultOptions()
	o.policy = "count"
	o.miss = "floor"
	o.frames = 42
	o.tap = false

	cfg, err := buildConfig(o)
	require.NoError(t, err)
	assert.Equal(t, history.FrameCount, cfg.HistoryPolicy)
	assert.Equal(t, peak.MissFloor, cfg.MissPolicy)
	assert.Equal(t, 42, cfg.DisplayFrames)
	assert.False(t, cfg.Tap.Enabled)
}

func TestBuildConfigRejectsUnknownNames(t *testing.T) {
	t.Parallel()

	o := defaultOptions()
	o.policy = "forever"
	_, err := buildConfig(o)
	assert.Error(t, err)

	o = defaultOptions()
	o.miss = "ignore"
	_, err = buildConfig(o)
	assert.Error(t, err)
}

func TestBuildSource(t *testing.T) {
	t.Parallel()

	t.Run("synthetic by default", func(t *testing.T) {
		src, err := buildSource(defaultOptions(), nil)
		require.NoError(t, err)
		require.IsType(t, &source.Synth{}, src)
		assert.InDelta(t, 0.05, src.(*source.Synth).Train.Amplitude, 1e-3)
	})

	t.Run("stdin", func(t *testing.T) {
		o := defaultOptions()
		o.input = "-"
		src, err := buildSource(o, strings.NewReader(""))
		require.NoError(t, err)
		assert.IsType(t, &source.PCM{}, src)
	})

	t.Run("file", func(t *testing.T) {
		o := defaultOptions()
		o.input = "tap.raw"
		src, err := buildSource(o, nil)
		require.NoError(t, err)
		require.IsType(t, &source.File{}, src)
		f := src.(*source.File)
		assert.Equal(t, "tap.raw", f.Path)
		assert.Len(t, f.Analyser, 2)
	})
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestStdinClosedWithInput(t *testing.T) {
	t.Parallel()
	o := defaultOptions()
	o.input = "-"
	stdin := &closeTracker{Reader: strings.NewReader("")}

	src, err := buildSource(o, stdin)
	require.NoError(t, err)
	in, err := src.Open(context.Background())
	require.NoError(t, err)
	require.NoError(t, in.Close())
	assert.True(t, stdin.closed, "closing the input must close stdin so a blocked read returns")
}

func TestBuildSourceRejectsBadInput(t *testing.T) {
	t.Parallel()
	cases := map[string]func(*options){
		"fft":    func(o *options) { o.fftSize = 1000 },
		"rate":   func(o *options) { o.rate = 0 },
		"window": func(o *options) { o.window = "triangle" },
		"stdin":  func(o *options) { o.input = "-" },
	}
	for name, mod := range cases {
		t.Run(name, func(t *testing.T) {
			o := defaultOptions()
			mod(&o)
			_, err := buildSource(o, nil)
			assert.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	t.Parallel()
	_, err := newLogger("loud")
	assert.Error(t, err)

	logger, err := newLogger("debug")
	require.NoError(t, err)
	_ = logger.Sync()
}

func sampleReadout() session.Readout {
	hist := []peak.Sample{
		{Frequency: 150, Amplitude: -20, Timestamp: 0.1},
		{Frequency: 152, Amplitude: -22, Timestamp: 0.5},
		{Frequency: 148, Amplitude: -21, Timestamp: 1.0},
	}
	return session.Readout{
		State:      session.StateAcquiring,
		Status:     session.StatusWaiting,
		SampleRate: 44100,
		BinCount:   1024,
		History:    hist,
		Summary: history.Summary{
			Count:      3,
			MeanHz:     150,
			StdDevHz:   2,
			MinHz:      148,
			MaxHz:      152,
			MeanAmpDB:  -21,
			Category:   ripeness.Ripe,
			HasSamples: true,
		},
		Peak:     hist[2],
		HasPeak:  true,
		Category: ripeness.Classify(hist[2].Frequency),
		Verdict: &tap.Verdict{
			Found:    true,
			Peak:     hist[0],
			Category: ripeness.Ripe,
			End:      1.1,
			Frames:   60,
			Levels:   []float64{-100, -40, -20, -60},
		},
	}
}

func TestReporterPrintsVerdictOnce(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	r := newReporter(&buf)
	ro := sampleReadout()

	r.row(ro)
	r.row(ro)

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "verdict at"), out)
	assert.Equal(t, 1, strings.Count(out, "Peak [Hz]"), out)
	assert.Contains(t, out, "148.0")
	assert.Contains(t, out, ripeness.Ripe.Label())
}

func TestReporterSummary(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, newReporter(&buf).summary(sampleReadout()))
	assert.Contains(t, buf.String(), "150.0")

	buf.Reset()
	require.NoError(t, newReporter(&buf).summary(session.Readout{}))
	assert.Contains(t, buf.String(), "\n0 ")
}

func TestWriteChart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.png")

	require.NoError(t, writeChart(path, sampleReadout()))
	for _, p := range []string{path, filepath.Join(dir, "history_verdict.png")} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.NotZero(t, info.Size(), p)
	}
}

func TestWriteChartEmptyHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.png")

	require.NoError(t, writeChart(path, session.Readout{}))
	assert.FileExists(t, path)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(path), "empty_verdict.png"))
}

func TestWriteHTMLChart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.html")

	require.NoError(t, writeHTMLChart(path, sampleReadout()))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Knock peak history")
	assert.Contains(t, string(data), ripeness.Ripe.String())
}

func TestVerdictPath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "out/h_verdict.png", verdictPath("out/h.png"))
	assert.Equal(t, "plain_verdict", verdictPath("plain"))
}
