package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/cwbudde/algo-knock/dsp/core"
	"github.com/cwbudde/algo-knock/dsp/spectrum"
)

var (
	// ErrPermissionDenied reports that the platform refused access to the
	// audio input.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrDeviceUnavailable reports that no usable audio input exists.
	ErrDeviceUnavailable = errors.New("device unavailable")

	errClosed = errors.New("input closed")
)

// Input is an open audio input. SampleRate and BinCount are fixed for the
// lifetime of the input.
type Input interface {
	SampleRate() float64
	BinCount() int
	// Frame returns the spectrum for the current tick. A nil frame with a
	// nil error means no new data is available yet.
	Frame() (spectrum.Frame, error)
	Close() error
}

// Source opens inputs.
type Source interface {
	Open(ctx context.Context) (Input, error)
}

// Func adapts a function to Source.
type Func func(ctx context.Context) (Input, error)

// Open calls f.
func (f Func) Open(ctx context.Context) (Input, error) {
	return f(ctx)
}

// analysed turns blocks of time-domain samples into byte frames.
type analysed struct {
	an  *spectrum.Analyser
	hop []float64
}

func newAnalysed(cfg core.ProcessorConfig, hop int, opts []spectrum.AnalyserOption) (*analysed, error) {
	if hop <= 0 {
		return nil, fmt.Errorf("hop must be > 0: %d", hop)
	}
	opts = append([]spectrum.AnalyserOption{spectrum.WithFFTSize(cfg.FFTSize)}, opts...)
	an, err := spectrum.NewAnalyser(cfg.SampleRate, opts...)
	if err != nil {
		return nil, err
	}
	if an.FFTSize() != cfg.FFTSize {
		return nil, fmt.Errorf("fft size must be a power of two in [32, 32768]: %d", cfg.FFTSize)
	}
	return &analysed{an: an, hop: make([]float64, hop)}, nil
}

func (a *analysed) SampleRate() float64 { return a.an.SampleRate() }
func (a *analysed) BinCount() int       { return a.an.BinCount() }

func (a *analysed) frame(samples []float64) (spectrum.Frame, error) {
	a.an.Write(samples)
	f, err := a.an.ByteFrame()
	if err != nil {
		return nil, err
	}
	return f, nil
}

// defaultHop is one display frame of audio at the given sample rate.
func defaultHop(sampleRate float64) int {
	hop := int(sampleRate / 60)
	if hop < 1 {
		hop = 1
	}
	return hop
}
