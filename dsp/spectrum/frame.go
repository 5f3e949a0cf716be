package spectrum

import (
	"github.com/cwbudde/algo-knock/dsp/core"
)

// Frame is one tick's one-sided magnitude spectrum, indexed 0..Len()-1.
type Frame interface {
	Len() int
	// Level returns the level of bin i in dB. It is always finite.
	Level(i int) float64
}

// ByteFrame holds unsigned magnitudes where 255 is full scale.
type ByteFrame []byte

// Len returns the bin count.
func (f ByteFrame) Len() int { return len(f) }

// Level returns 20*log10(f[i]/255), floored at core.MinDB.
func (f ByteFrame) Level(i int) float64 { return core.ByteToDB(f[i]) }

// DBFrame holds magnitudes already expressed in dB.
type DBFrame []float64

// Len returns the bin count.
func (f DBFrame) Len() int { return len(f) }

// Level returns f[i]; non-finite values read as core.MinDB.
func (f DBFrame) Level(i int) float64 {
	v := f[i]
	if !core.IsFinite(v) {
		return core.MinDB
	}
	return core.FloorDB(v)
}

// Levels copies every bin level of f into a new slice.
func Levels(f Frame) []float64 {
	if f == nil || f.Len() == 0 {
		return nil
	}
	out := make([]float64, f.Len())
	for i := range out {
		out[i] = f.Level(i)
	}
	return out
}

// Loudest returns the highest bin level of f and its index. The first bin
// wins ties. An empty frame returns (core.MinDB, -1).
func Loudest(f Frame) (float64, int) {
	if f == nil || f.Len() == 0 {
		return core.MinDB, -1
	}

	best := f.Level(0)
	bin := 0
	for i := 1; i < f.Len(); i++ {
		if v := f.Level(i); v > best {
			best = v
			bin = i
		}
	}
	return best, bin
}
