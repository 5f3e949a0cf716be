package signal

import (
	"fmt"
	"math"
	"math/rand"
)

// TrainConfig describes a repeating knock.
type TrainConfig struct {
	FreqHz    float64
	Amplitude float64
	Decay     float64 // seconds
	Period    float64 // seconds between knocks
	Noise     float64 // white-noise amplitude
}

// DefaultTrainConfig knocks at 150 Hz every two seconds over faint noise,
// quiet enough to stay below the analyser's default -30 dB ceiling.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		FreqHz:    150,
		Amplitude: 0.05,
		Decay:     0.08,
		Period:    2,
		Noise:     0.001,
	}
}

// Train is an endless stream of knocks. The first knock starts at sample 0.
type Train struct {
	cfg        TrainConfig
	sampleRate float64
	period     int64
	pos        int64
	rng        *rand.Rand
}

// NewTrain creates a knock stream at the generator's sample rate.
func (g *Generator) NewTrain(cfg TrainConfig) (*Train, error) {
	if cfg.FreqHz <= 0 || cfg.FreqHz >= g.cfg.Nyquist() {
		return nil, fmt.Errorf("train frequency must be in (0, %g): %f", g.cfg.Nyquist(), cfg.FreqHz)
	}
	if cfg.Decay <= 0 {
		return nil, fmt.Errorf("train decay must be > 0: %f", cfg.Decay)
	}
	if cfg.Period <= 0 {
		return nil, fmt.Errorf("train period must be > 0: %f", cfg.Period)
	}
	if cfg.Noise < 0 {
		return nil, fmt.Errorf("train noise must be >= 0: %f", cfg.Noise)
	}

	period := int64(math.Round(cfg.Period * g.cfg.SampleRate))
	if period < 1 {
		period = 1
	}
	return &Train{
		cfg:        cfg,
		sampleRate: g.cfg.SampleRate,
		period:     period,
		rng:        rand.New(rand.NewSource(g.seed)),
	}, nil
}

// Read fills dst with the next samples of the stream.
func (t *Train) Read(dst []float64) {
	step := 2 * math.Pi * t.cfg.FreqHz / t.sampleRate
	for i := range dst {
		k := t.pos % t.period
		v := t.cfg.Amplitude * math.Exp(-float64(k)/t.sampleRate/t.cfg.Decay) * math.Sin(step*float64(k))
		if t.cfg.Noise > 0 {
			v += (t.rng.Float64()*2 - 1) * t.cfg.Noise
		}
		dst[i] = v
		t.pos++
	}
}

// Elapsed returns the stream position in seconds.
func (t *Train) Elapsed() float64 {
	return float64(t.pos) / t.sampleRate
}
