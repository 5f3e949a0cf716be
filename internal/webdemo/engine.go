package webdemo

import (
	"context"
	"fmt"
	"math"

	"github.com/cwbudde/algo-knock/dsp/core"
	"github.com/cwbudde/algo-knock/dsp/spectrum"
	"github.com/cwbudde/algo-knock/session"
	"github.com/cwbudde/algo-knock/source"
)

// Engine connects a browser audio graph to a knock Session. Frames arrive
// either as byte spectra from an AnalyserNode (PushFrame) or as raw
// samples analysed in Go (PushSamples).
type Engine struct {
	sampleRate float64
	binCount   int

	push *source.Push
	sess *session.Session

	spectrum SpectrumParams
	analyser *spectrum.Analyser
	frame    []byte
	hop      int
	pending  int
}

// NewEngine creates an idle engine for frames of binCount bins at
// sampleRate. Session options are passed through.
func NewEngine(sampleRate float64, binCount int, opts ...session.Option) (*Engine, error) {
	push, err := source.NewPush(sampleRate, binCount)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		sampleRate: sampleRate,
		binCount:   binCount,
		push:       push,
		sess:       session.New(push, opts...),
		spectrum: SpectrumParams{
			Smoothing: 0.8,
			Window:    defaultWin,
			MinDB:     -100,
			MaxDB:     -30,
		},
	}
	if err := e.SetSpectrum(e.spectrum); err != nil {
		return nil, err
	}
	return e, nil
}

// Start begins detection. It stops a running detection first.
func (e *Engine) Start() error {
	e.resetSpectrum()
	return e.sess.Start(context.Background())
}

// Stop ends detection and clears the history.
func (e *Engine) Stop() error {
	return e.sess.Stop()
}

// Toggle mirrors the start/stop button.
func (e *Engine) Toggle() error {
	if !e.Running() {
		e.resetSpectrum()
	}
	return e.sess.Toggle(context.Background())
}

// Running reports whether detection is active.
func (e *Engine) Running() bool {
	return e.sess.State() == session.StateAcquiring
}

// Deny makes the next Start fail as if microphone access was refused.
func (e *Engine) Deny(reason string) {
	if reason == "" {
		e.push.Deny(nil)
		return
	}
	e.push.Deny(fmt.Errorf("%s: %w", reason, source.ErrPermissionDenied))
}

// PushFrame delivers one byte spectrum from the browser analyser.
func (e *Engine) PushFrame(frame []byte) error {
	return e.push.Send(frame)
}

// Readout returns the current session snapshot.
func (e *Engine) Readout() session.Readout {
	return e.sess.Readout()
}

// StateName returns "idle" or "acquiring".
func (e *Engine) StateName() string {
	if e.Running() {
		return stateRunning
	}
	return stateIdle
}

// VerdictCurveDB samples the spectrum of the last tap verdict at freqs by
// linear interpolation between bins. Without a verdict every value is the
// -130 dB floor.
func (e *Engine) VerdictCurveDB(freqs []float64) []float64 {
	out := make([]float64, len(freqs))
	r := e.sess.Readout()
	if r.Verdict == nil || len(r.Verdict.Levels) < 2 {
		for i := range out {
			out[i] = core.MinDB
		}
		return out
	}

	levels := r.Verdict.Levels
	last := len(levels) - 1
	binHz := spectrum.BinWidth(e.sampleRate, len(levels))
	for i, f := range freqs {
		bin := clamp(f, 0, e.sampleRate/2) / binHz
		if bin >= float64(last) {
			out[i] = levels[last]
			continue
		}
		base := int(bin)
		frac := bin - float64(base)
		out[i] = levels[base] + frac*(levels[base+1]-levels[base])
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
