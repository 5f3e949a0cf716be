package webdemo

import (
	"fmt"
	"strings"

	"github.com/cwbudde/algo-knock/dsp/spectrum"
	"github.com/cwbudde/algo-knock/dsp/window"
)

// SpectrumParams configures the Go-side analyser used by PushSamples. The
// transform size is fixed at twice the engine bin count.
type SpectrumParams struct {
	Smoothing float64
	Window    string
	MinDB     float64
	MaxDB     float64
}

// SetSpectrum rebuilds the analyser used by PushSamples.
func (e *Engine) SetSpectrum(p SpectrumParams) error {
	cfg := sanitizeSpectrumParams(p)

	winType, err := window.Parse(cfg.Window)
	if err != nil {
		return fmt.Errorf("unsupported spectrum window: %s", cfg.Window)
	}

	an, err := spectrum.NewAnalyser(e.sampleRate,
		spectrum.WithFFTSize(2*e.binCount),
		spectrum.WithSmoothing(cfg.Smoothing),
		spectrum.WithDecibelRange(cfg.MinDB, cfg.MaxDB),
		spectrum.WithWindow(winType),
	)
	if err != nil {
		return err
	}
	if an.BinCount() != e.binCount {
		return fmt.Errorf("analyser bin count must be a power of two in [16, 16384]: %d", e.binCount)
	}

	e.spectrum = cfg
	e.analyser = an
	e.frame = make([]byte, e.binCount)
	e.hop = int(e.sampleRate / 60)
	if e.hop < 1 {
		e.hop = 1
	}
	e.pending = 0
	return nil
}

// PushSamples analyses raw mono samples and delivers one frame per display
// refresh worth of audio.
func (e *Engine) PushSamples(samples []float64) error {
	for len(samples) > 0 {
		n := e.hop - e.pending
		if n > len(samples) {
			n = len(samples)
		}
		e.analyser.Write(samples[:n])
		samples = samples[n:]
		e.pending += n
		if e.pending < e.hop {
			return nil
		}

		e.pending = 0
		if err := e.analyser.ByteFrequencyData(e.frame); err != nil {
			return err
		}
		if err := e.push.Send(e.frame); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) resetSpectrum() {
	e.analyser.Reset()
	e.pending = 0
}

func sanitizeSpectrumParams(p SpectrumParams) SpectrumParams {
	cfg := p
	cfg.Smoothing = clamp(cfg.Smoothing, 0, 0.95)

	cfg.Window = strings.ToLower(strings.TrimSpace(cfg.Window))
	if cfg.Window == "" {
		cfg.Window = defaultWin
	}
	if !(cfg.MinDB < cfg.MaxDB) {
		cfg.MinDB, cfg.MaxDB = -100, -30
	}
	return cfg
}
