package core

// ProcessorConfig defines common analysis settings.
type ProcessorConfig struct {
	SampleRate float64
	FFTSize    int
}

// ProcessorOption mutates a ProcessorConfig.
type ProcessorOption func(*ProcessorConfig)

// DefaultProcessorConfig returns the settings the tap analyser was tuned for.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		SampleRate: 44100,
		FFTSize:    2048,
	}
}

// WithSampleRate sets the processing sample rate.
func WithSampleRate(sampleRate float64) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if sampleRate > 0 {
			cfg.SampleRate = sampleRate
		}
	}
}

// WithFFTSize sets the transform size. Values that are not a power of two
// are ignored.
func WithFFTSize(size int) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if IsPowerOfTwo(size) {
			cfg.FFTSize = size
		}
	}
}

// ApplyProcessorOptions applies zero or more options to the default config.
func ApplyProcessorOptions(opts ...ProcessorOption) ProcessorConfig {
	cfg := DefaultProcessorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// BinCount returns the one-sided bin count, FFTSize/2.
func (c ProcessorConfig) BinCount() int {
	return c.FFTSize / 2
}

// Nyquist returns half the sample rate.
func (c ProcessorConfig) Nyquist() float64 {
	return c.SampleRate / 2
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
