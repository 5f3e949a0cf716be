package history

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-knock/dsp/peak"
)

// Defaults for a five second chart refreshed at display rate.
const (
	DefaultRetentionWindow   = 5.0
	DefaultMinUpdateInterval = 0.05
	DefaultFrameRate         = 60.0
)

// Policy selects how the buffer is bounded.
type Policy int

const (
	// TimeWindow evicts samples older than the retention window.
	TimeWindow Policy = iota
	// FrameCount evicts the oldest samples beyond MaxSamples.
	FrameCount
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case TimeWindow:
		return "time"
	case FrameCount:
		return "count"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy resolves a policy name.
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "time", "":
		return TimeWindow, nil
	case "count", "frames":
		return FrameCount, nil
	default:
		return TimeWindow, fmt.Errorf("unknown history policy: %q", name)
	}
}

// Config bounds a Buffer.
type Config struct {
	Policy            Policy
	RetentionWindow   float64 // seconds, TimeWindow
	MaxSamples        int     // FrameCount
	MinUpdateInterval float64 // seconds
}

// DefaultConfig returns a five second time window with a 50 ms debounce.
func DefaultConfig() Config {
	return Config{
		Policy:            TimeWindow,
		RetentionWindow:   DefaultRetentionWindow,
		MaxSamples:        Frames(DefaultRetentionWindow, DefaultFrameRate),
		MinUpdateInterval: DefaultMinUpdateInterval,
	}
}

// Frames returns the sample bound for a chart showing displaySeconds at
// frameRate, at least 1.
func Frames(displaySeconds, frameRate float64) int {
	n := math.Round(displaySeconds * frameRate)
	if !(n >= 1) {
		return 1
	}
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

// Buffer is a bounded rolling history of peak samples.
type Buffer struct {
	cfg     Config
	samples []peak.Sample
}

// New creates an empty buffer.
func New(cfg Config) *Buffer {
	return &Buffer{cfg: cfg}
}

// Config returns the current bound.
func (b *Buffer) Config() Config {
	return b.cfg
}

// Configure replaces the bound and applies it to the retained samples
// immediately.
func (b *Buffer) Configure(cfg Config) {
	b.cfg = cfg
	if n := len(b.samples); n > 0 {
		b.evict(b.samples[n-1].Timestamp)
	}
}

// Add offers s to the buffer. It is accepted when the buffer is empty, or
// when s is not older than the newest sample and more than
// MinUpdateInterval after it. Add reports whether s was kept.
func (b *Buffer) Add(s peak.Sample) bool {
	if n := len(b.samples); n > 0 {
		last := b.samples[n-1].Timestamp
		if s.Timestamp < last {
			return false
		}
		if !(s.Timestamp-last > b.cfg.MinUpdateInterval) {
			return false
		}
	}

	b.samples = append(b.samples, s)
	b.evict(s.Timestamp)
	return true
}

// Prune applies the time window at now without inserting. It is a no-op
// under FrameCount.
func (b *Buffer) Prune(now float64) {
	if b.cfg.Policy == TimeWindow {
		b.evict(now)
	}
}

// Len returns the number of retained samples.
func (b *Buffer) Len() int {
	return len(b.samples)
}

// Latest returns the newest sample.
func (b *Buffer) Latest() (peak.Sample, bool) {
	if len(b.samples) == 0 {
		return peak.Sample{}, false
	}
	return b.samples[len(b.samples)-1], true
}

// Snapshot returns a copy of the retained samples, oldest first.
func (b *Buffer) Snapshot() []peak.Sample {
	out := make([]peak.Sample, len(b.samples))
	copy(out, b.samples)
	return out
}

// Clear drops all samples.
func (b *Buffer) Clear() {
	b.samples = b.samples[:0]
}

func (b *Buffer) evict(now float64) {
	drop := 0
	switch b.cfg.Policy {
	case FrameCount:
		limit := b.cfg.MaxSamples
		if limit < 1 {
			limit = 1
		}
		if len(b.samples) > limit {
			drop = len(b.samples) - limit
		}
	default:
		cutoff := now - b.cfg.RetentionWindow
		for drop < len(b.samples) && b.samples[drop].Timestamp < cutoff {
			drop++
		}
	}
	if drop == 0 {
		return
	}

	n := copy(b.samples, b.samples[drop:])
	for i := n; i < len(b.samples); i++ {
		b.samples[i] = peak.Sample{}
	}
	b.samples = b.samples[:n]
}
