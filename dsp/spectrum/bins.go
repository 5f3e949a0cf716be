package spectrum

import (
	"math"

	"github.com/cwbudde/algo-knock/dsp/core"
)

// BinFrequency returns the centre frequency in Hz of bin i for a one-sided
// spectrum of binCount bins:
//
//	f_i = i * sampleRate / (2 * binCount)
func BinFrequency(i int, sampleRate float64, binCount int) float64 {
	if binCount <= 0 {
		return 0
	}
	return float64(i) * sampleRate / float64(2*binCount)
}

// BinWidth returns the spacing between adjacent bins in Hz.
func BinWidth(sampleRate float64, binCount int) float64 {
	return BinFrequency(1, sampleRate, binCount)
}

// BandBins returns the inclusive bin range [lo, hi] whose frequencies lie in
// [minFreq, maxFreq]. ok is false when no bin falls inside the band.
func BandBins(binCount int, sampleRate, minFreq, maxFreq float64) (lo, hi int, ok bool) {
	if binCount <= 0 || sampleRate <= 0 || !(maxFreq >= minFreq) {
		return 0, -1, false
	}

	width := BinWidth(sampleRate, binCount)
	last := binCount - 1

	lo = int(core.Clamp(math.Ceil(minFreq/width), 0, float64(binCount)))
	for lo > 0 && BinFrequency(lo-1, sampleRate, binCount) >= minFreq {
		lo--
	}
	for lo <= last && BinFrequency(lo, sampleRate, binCount) < minFreq {
		lo++
	}

	hi = int(core.Clamp(math.Floor(maxFreq/width), -1, float64(last)))
	for hi < last && BinFrequency(hi+1, sampleRate, binCount) <= maxFreq {
		hi++
	}
	for hi >= 0 && BinFrequency(hi, sampleRate, binCount) > maxFreq {
		hi--
	}

	if lo > hi {
		return 0, -1, false
	}
	return lo, hi, true
}
