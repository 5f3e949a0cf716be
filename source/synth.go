package source

import (
	"context"
	"sync/atomic"

	"github.com/cwbudde/algo-knock/dsp/core"
	"github.com/cwbudde/algo-knock/dsp/signal"
	"github.com/cwbudde/algo-knock/dsp/spectrum"
)

// Synth is a Source of synthetic knocks rendered through an Analyser.
type Synth struct {
	Processor core.ProcessorConfig
	Train     signal.TrainConfig
	// Hop is the number of samples rendered per frame. Zero means one
	// sixtieth of a second.
	Hop  int
	Seed int64
	// Analyser holds extra analyser options, such as the window.
	Analyser []spectrum.AnalyserOption
}

// NewSynth returns a Synth knocking at freqHz with default timing.
func NewSynth(freqHz float64, opts ...core.ProcessorOption) *Synth {
	train := signal.DefaultTrainConfig()
	train.FreqHz = freqHz
	return &Synth{
		Processor: core.ApplyProcessorOptions(opts...),
		Train:     train,
		Seed:      1,
	}
}

// Open starts a fresh knock train.
func (s *Synth) Open(ctx context.Context) (Input, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g := signal.NewGenerator(
		[]core.ProcessorOption{core.WithSampleRate(s.Processor.SampleRate)},
		signal.WithSeed(s.Seed),
	)
	train, err := g.NewTrain(s.Train)
	if err != nil {
		return nil, err
	}

	hop := s.Hop
	if hop == 0 {
		hop = defaultHop(s.Processor.SampleRate)
	}
	a, err := newAnalysed(s.Processor, hop, s.Analyser)
	if err != nil {
		return nil, err
	}

	return &synthInput{analysed: a, train: train}, nil
}

type synthInput struct {
	*analysed
	train  *signal.Train
	closed atomic.Bool
}

func (in *synthInput) Frame() (spectrum.Frame, error) {
	if in.closed.Load() {
		return nil, errClosed
	}
	in.train.Read(in.hop)
	return in.frame(in.hop)
}

func (in *synthInput) Close() error {
	in.closed.Store(true)
	return nil
}
