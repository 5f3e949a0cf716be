package spectrum

import (
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"

	"github.com/cwbudde/algo-knock/dsp/core"
	"github.com/cwbudde/algo-knock/dsp/window"
)

const (
	minAnalyserFFTSize = 32
	maxAnalyserFFTSize = 32768

	defaultSmoothing = 0.8
	defaultMinDB     = -100.0
	defaultMaxDB     = -30.0
)

type analyserConfig struct {
	fftSize   int
	smoothing float64
	minDB     float64
	maxDB     float64
	window    window.Type
}

// AnalyserOption configures an Analyser.
type AnalyserOption func(*analyserConfig)

// WithFFTSize sets the transform size. It must be a power of two in
// [32, 32768]; other values are ignored.
func WithFFTSize(n int) AnalyserOption {
	return func(c *analyserConfig) {
		if core.IsPowerOfTwo(n) && n >= minAnalyserFFTSize && n <= maxAnalyserFFTSize {
			c.fftSize = n
		}
	}
}

// WithSmoothing sets the time constant used to average successive frames,
// clamped to [0, 1]. Zero disables averaging.
func WithSmoothing(tau float64) AnalyserOption {
	return func(c *analyserConfig) {
		c.smoothing = core.Clamp(tau, 0, 1)
	}
}

// WithDecibelRange sets the dB range mapped onto 0..255 by ByteFrequencyData.
// Ranges with min >= max are ignored.
func WithDecibelRange(minDB, maxDB float64) AnalyserOption {
	return func(c *analyserConfig) {
		if minDB < maxDB {
			c.minDB = minDB
			c.maxDB = maxDB
		}
	}
}

// WithWindow selects the analysis window.
func WithWindow(t window.Type) AnalyserOption {
	return func(c *analyserConfig) {
		c.window = t
	}
}

// Analyser keeps the most recent fftSize samples of a mono stream and turns
// them into smoothed one-sided magnitude frames on demand.
//
// An Analyser is not safe for concurrent use.
type Analyser struct {
	sampleRate float64
	cfg        analyserConfig

	coeffs []float64
	block  []float64
	plan   *algofft.Plan[complex128]
	in     []complex128
	out    []complex128
	cur    []float64
	mag    []float64

	ring     []float64
	write    int
	filled   int
	dirty    bool
	smoothed bool
	levelDB  []float64
}

// NewAnalyser creates an analyser for a stream at sampleRate.
func NewAnalyser(sampleRate float64, opts ...AnalyserOption) (*Analyser, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("analyser sample rate must be > 0: %f", sampleRate)
	}

	cfg := analyserConfig{
		fftSize:   core.DefaultProcessorConfig().FFTSize,
		smoothing: defaultSmoothing,
		minDB:     defaultMinDB,
		maxDB:     defaultMaxDB,
		window:    window.TypeBlackman,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	plan, err := algofft.NewPlan64(cfg.fftSize)
	if err != nil {
		return nil, fmt.Errorf("analyser init fft plan: %w", err)
	}

	bins := cfg.fftSize / 2
	a := &Analyser{
		sampleRate: sampleRate,
		cfg:        cfg,
		coeffs:     window.Generate(cfg.window, cfg.fftSize, window.WithPeriodic()),
		block:      make([]float64, cfg.fftSize),
		plan:       plan,
		in:         make([]complex128, cfg.fftSize),
		out:        make([]complex128, cfg.fftSize),
		cur:        make([]float64, bins),
		mag:        make([]float64, bins),
		ring:       make([]float64, cfg.fftSize),
		levelDB:    make([]float64, bins),
	}
	core.Fill(a.levelDB, core.MinDB)

	return a, nil
}

// SampleRate returns the stream sample rate.
func (a *Analyser) SampleRate() float64 { return a.sampleRate }

// FFTSize returns the transform size.
func (a *Analyser) FFTSize() int { return a.cfg.fftSize }

// BinCount returns the number of one-sided bins, FFTSize/2.
func (a *Analyser) BinCount() int { return a.cfg.fftSize / 2 }

// Write appends samples to the analysis ring. Only the most recent FFTSize
// samples are kept.
func (a *Analyser) Write(samples []float64) {
	if len(samples) == 0 {
		return
	}

	n := a.cfg.fftSize
	for _, s := range samples {
		a.ring[a.write] = s
		a.write++
		if a.write >= n {
			a.write = 0
		}
	}

	a.filled += len(samples)
	if a.filled > n {
		a.filled = n
	}
	a.dirty = true
}

// Primed reports whether a full FFTSize block of samples has been written.
func (a *Analyser) Primed() bool { return a.filled >= a.cfg.fftSize }

// Reset clears buffered samples and the smoothing state.
func (a *Analyser) Reset() {
	core.Fill(a.ring, 0)
	core.Fill(a.levelDB, core.MinDB)
	for i := range a.mag {
		a.mag[i] = 0
	}
	a.write = 0
	a.filled = 0
	a.dirty = false
	a.smoothed = false
}

// FloatFrequencyData writes the current spectrum in dB into dst. At most
// BinCount values are written.
func (a *Analyser) FloatFrequencyData(dst []float64) error {
	if err := a.update(); err != nil {
		return err
	}
	copy(dst, a.levelDB)
	return nil
}

// ByteFrequencyData writes the current spectrum into dst, mapping the
// configured decibel range linearly onto 0..255.
func (a *Analyser) ByteFrequencyData(dst []byte) error {
	if err := a.update(); err != nil {
		return err
	}
	n := len(dst)
	if n > len(a.levelDB) {
		n = len(a.levelDB)
	}
	for i := 0; i < n; i++ {
		dst[i] = core.ScaleToByte(a.levelDB[i], a.cfg.minDB, a.cfg.maxDB)
	}
	return nil
}

// ByteFrame returns a freshly allocated byte frame of the current spectrum.
func (a *Analyser) ByteFrame() (ByteFrame, error) {
	f := make(ByteFrame, a.BinCount())
	if err := a.ByteFrequencyData(f); err != nil {
		return nil, err
	}
	return f, nil
}

// DBFrame returns a freshly allocated dB frame of the current spectrum.
func (a *Analyser) DBFrame() (DBFrame, error) {
	f := make(DBFrame, a.BinCount())
	if err := a.FloatFrequencyData(f); err != nil {
		return nil, err
	}
	return f, nil
}

func (a *Analyser) update() error {
	if !a.dirty {
		return nil
	}
	a.dirty = false

	n := a.cfg.fftSize
	copy(a.block, a.ring[a.write:])
	copy(a.block[n-a.write:], a.ring[:a.write])
	if err := window.ApplyCoefficientsInPlace(a.block, a.coeffs); err != nil {
		return fmt.Errorf("analyser window: %w", err)
	}
	for i, v := range a.block {
		a.in[i] = complex(v, 0)
	}

	if err := a.plan.Forward(a.out, a.in); err != nil {
		return fmt.Errorf("analyser forward fft: %w", err)
	}

	bins := len(a.levelDB)
	MagnitudeInto(a.cur, a.out[:bins])

	tau := a.cfg.smoothing
	if !a.smoothed {
		tau = 0
	}
	norm := 1 / float64(n)
	for k := 0; k < bins; k++ {
		m := a.cur[k] * norm
		a.mag[k] = tau*a.mag[k] + (1-tau)*m
		a.levelDB[k] = core.FloorDB(core.LinearToDB(a.mag[k]))
	}
	a.smoothed = true

	return nil
}
