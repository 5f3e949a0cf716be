package history

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/cwbudde/algo-knock/measure/ripeness"
)

// Summary describes the detected peaks currently retained.
type Summary struct {
	Count      int
	MeanHz     float64
	StdDevHz   float64
	MinHz      float64
	MaxHz      float64
	MeanAmpDB  float64
	Category   ripeness.Category
	HasSamples bool
}

// Summary aggregates the retained samples, skipping floor samples.
func (b *Buffer) Summary() Summary {
	freqs := make([]float64, 0, len(b.samples))
	amps := make([]float64, 0, len(b.samples))
	for _, s := range b.samples {
		if s.IsFloor() {
			continue
		}
		freqs = append(freqs, s.Frequency)
		amps = append(amps, s.Amplitude)
	}
	if len(freqs) == 0 {
		return Summary{}
	}

	sum := Summary{
		Count:      len(freqs),
		MinHz:      floats.Min(freqs),
		MaxHz:      floats.Max(freqs),
		MeanAmpDB:  stat.Mean(amps, nil),
		HasSamples: true,
	}
	if len(freqs) == 1 {
		sum.MeanHz = freqs[0]
	} else {
		sum.MeanHz, sum.StdDevHz = stat.MeanStdDev(freqs, nil)
	}
	sum.Category = ripeness.Classify(sum.MeanHz)

	return sum
}
