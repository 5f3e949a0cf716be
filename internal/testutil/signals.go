package testutil

import "math"

// DeterministicSine generates a deterministic sine wave.
func DeterministicSine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// ByteSpectrum returns n byte magnitudes set to floor, with the listed bins
// overridden. Out-of-range bins are ignored.
func ByteSpectrum(n int, floor byte, bins map[int]byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = floor
	}
	for i, v := range bins {
		if i >= 0 && i < n {
			out[i] = v
		}
	}
	return out
}

// Timestamps returns start, start+step, ... with n entries.
func Timestamps(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}
