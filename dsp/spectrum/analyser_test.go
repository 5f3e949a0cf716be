package spectrum

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-knock/dsp/core"
	"github.com/cwbudde/algo-knock/internal/testutil"
)

func TestNewAnalyserValidation(t *testing.T) {
	if _, err := NewAnalyser(0); err == nil {
		t.Fatal("expected error for zero sample rate")
	}

	a, err := NewAnalyser(44100, WithFFTSize(1000), WithFFTSize(16))
	if err != nil {
		t.Fatalf("NewAnalyser error: %v", err)
	}
	if a.FFTSize() != 2048 || a.BinCount() != 1024 {
		t.Fatalf("invalid sizes must be ignored: fft=%d bins=%d", a.FFTSize(), a.BinCount())
	}
}

func TestAnalyserSinePeaksAtBin(t *testing.T) {
	const sampleRate = 44100.0

	a, err := NewAnalyser(sampleRate, WithFFTSize(2048), WithSmoothing(0))
	if err != nil {
		t.Fatalf("NewAnalyser error: %v", err)
	}

	freq := BinFrequency(10, sampleRate, a.BinCount())
	a.Write(testutil.DeterministicSine(freq, sampleRate, 1, a.FFTSize()))
	if !a.Primed() {
		t.Fatal("analyser must be primed after a full block")
	}

	f, err := a.DBFrame()
	if err != nil {
		t.Fatalf("DBFrame error: %v", err)
	}
	testutil.RequireFinite(t, f)

	level, bin := Loudest(f)
	if bin != 10 {
		t.Fatalf("peak bin = %d, want 10", bin)
	}

	// Blackman coherent gain 0.42, one-sided amplitude 0.5.
	want := 20 * math.Log10(0.21)
	if math.Abs(level-want) > 0.01 {
		t.Fatalf("peak level = %.3f dB, want %.3f dB", level, want)
	}

	b, err := a.ByteFrame()
	if err != nil {
		t.Fatalf("ByteFrame error: %v", err)
	}
	if b[10] != 255 {
		t.Fatalf("byte peak = %d, want 255", b[10])
	}
}

func TestAnalyserSilence(t *testing.T) {
	a, err := NewAnalyser(48000, WithFFTSize(256))
	if err != nil {
		t.Fatalf("NewAnalyser error: %v", err)
	}

	b, err := a.ByteFrame()
	if err != nil {
		t.Fatalf("ByteFrame error: %v", err)
	}
	for i, v := range b {
		if v != 0 {
			t.Fatalf("bin %d = %d, want 0 before any input", i, v)
		}
	}

	a.Write(make([]float64, 256))
	f, err := a.DBFrame()
	if err != nil {
		t.Fatalf("DBFrame error: %v", err)
	}
	for i, v := range f {
		if v != core.MinDB {
			t.Fatalf("bin %d = %v, want floor %v", i, v, core.MinDB)
		}
	}
}

func TestAnalyserSmoothing(t *testing.T) {
	const sampleRate = 8000.0

	a, err := NewAnalyser(sampleRate, WithFFTSize(256), WithSmoothing(0.5))
	if err != nil {
		t.Fatalf("NewAnalyser error: %v", err)
	}

	freq := BinFrequency(16, sampleRate, a.BinCount())
	a.Write(testutil.DeterministicSine(freq, sampleRate, 1, 256))
	first, err := a.DBFrame()
	if err != nil {
		t.Fatalf("DBFrame error: %v", err)
	}

	a.Write(make([]float64, 256))
	second, err := a.DBFrame()
	if err != nil {
		t.Fatalf("DBFrame error: %v", err)
	}

	drop := first[16] - second[16]
	if math.Abs(drop-20*math.Log10(2)) > 1e-6 {
		t.Fatalf("smoothed drop = %.6f dB, want %.6f dB", drop, 20*math.Log10(2))
	}
}

func TestAnalyserUnchangedInputNotResmoothed(t *testing.T) {
	a, err := NewAnalyser(8000, WithFFTSize(64), WithSmoothing(0.9))
	if err != nil {
		t.Fatalf("NewAnalyser error: %v", err)
	}
	a.Write(testutil.DeterministicSine(1000, 8000, 1, 64))

	first, _ := a.DBFrame()
	second, _ := a.DBFrame()
	testutil.RequireSliceNearlyEqual(t, second, first, 0)
}

func TestAnalyserReset(t *testing.T) {
	a, err := NewAnalyser(8000, WithFFTSize(64))
	if err != nil {
		t.Fatalf("NewAnalyser error: %v", err)
	}
	a.Write(testutil.DeterministicSine(1000, 8000, 1, 64))
	if _, err := a.DBFrame(); err != nil {
		t.Fatalf("DBFrame error: %v", err)
	}

	a.Reset()
	if a.Primed() {
		t.Fatal("Reset must clear the primed state")
	}
	f, _ := a.DBFrame()
	for i, v := range f {
		if v != core.MinDB {
			t.Fatalf("bin %d = %v after reset, want floor", i, v)
		}
	}
}
