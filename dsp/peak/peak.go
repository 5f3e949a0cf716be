package peak

import (
	"github.com/cwbudde/algo-knock/dsp/core"
	"github.com/cwbudde/algo-knock/dsp/spectrum"
)

// Default analysis band and gate, as tuned for tapping melons.
const (
	DefaultMinFreq     = 20.0
	DefaultMaxFreq     = 400.0
	DefaultThresholdDB = -80.0
)

// Sample is one detected peak.
type Sample struct {
	Frequency float64 // Hz
	Amplitude float64 // dB
	Timestamp float64 // seconds
	Bin       int     // -1 for a floor sample
}

// IsFloor reports whether s was synthesised by MissFloor rather than
// detected.
func (s Sample) IsFloor() bool {
	return s.Bin < 0
}

// Config holds the analysis band and the gate.
type Config struct {
	MinFreq     float64
	MaxFreq     float64
	ThresholdDB float64
}

// DefaultConfig returns the 20-400 Hz band with a -80 dB gate.
func DefaultConfig() Config {
	return Config{
		MinFreq:     DefaultMinFreq,
		MaxFreq:     DefaultMaxFreq,
		ThresholdDB: DefaultThresholdDB,
	}
}

// Option mutates a Config.
type Option func(*Config)

// WithBand sets the analysis band. Negative or inverted bands are ignored.
func WithBand(minFreq, maxFreq float64) Option {
	return func(c *Config) {
		if minFreq >= 0 && maxFreq >= minFreq {
			c.MinFreq = minFreq
			c.MaxFreq = maxFreq
		}
	}
}

// WithThresholdDB sets the gate. Non-finite values are ignored.
func WithThresholdDB(db float64) Option {
	return func(c *Config) {
		if core.IsFinite(db) {
			c.ThresholdDB = db
		}
	}
}

// Extractor locates the dominant in-band bin of a frame.
type Extractor struct {
	cfg Config
}

// New creates an Extractor from the default config and opts.
func New(opts ...Option) *Extractor {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Extractor{cfg: cfg}
}

// Config returns the current configuration.
func (e *Extractor) Config() Config {
	return e.cfg
}

// Configure replaces the configuration.
func (e *Extractor) Configure(cfg Config) {
	e.cfg = cfg
}

// Extract returns the loudest bin of frame inside the band whose level is
// above the gate, stamped with timestamp. The bin count is frame.Len().
func (e *Extractor) Extract(frame spectrum.Frame, sampleRate, timestamp float64) (Sample, bool) {
	if frame == nil {
		return Sample{}, false
	}

	n := frame.Len()
	lo, hi, ok := spectrum.BandBins(n, sampleRate, e.cfg.MinFreq, e.cfg.MaxFreq)
	if !ok {
		return Sample{}, false
	}

	best := e.cfg.ThresholdDB
	bin := -1
	for i := lo; i <= hi; i++ {
		if v := frame.Level(i); v > best {
			best = v
			bin = i
		}
	}
	if bin < 0 {
		return Sample{}, false
	}

	return Sample{
		Frequency: spectrum.BinFrequency(bin, sampleRate, n),
		Amplitude: best,
		Timestamp: timestamp,
		Bin:       bin,
	}, true
}

// Strongest returns the sample with the highest amplitude. The earliest
// sample wins ties. Floor samples never win.
func Strongest(samples []Sample) (Sample, bool) {
	var (
		best  Sample
		found bool
	)
	for _, s := range samples {
		if s.IsFloor() {
			continue
		}
		if !found || s.Amplitude > best.Amplitude {
			best = s
			found = true
		}
	}
	return best, found
}
