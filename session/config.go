package session

import (
	"time"

	"github.com/cwbudde/algo-knock/dsp/core"
	"github.com/cwbudde/algo-knock/dsp/peak"
	"github.com/cwbudde/algo-knock/measure/history"
	"github.com/cwbudde/algo-knock/measure/tap"
)

// DefaultTickInterval is one display refresh at 60 Hz.
const DefaultTickInterval = time.Second / 60

const (
	minTickInterval  = time.Millisecond
	maxDisplayFrames = 1 << 16
)

// TapConfig controls the knock recorder.
type TapConfig struct {
	Enabled   bool
	TriggerDB float64
	Duration  float64 // seconds
}

// Config is the runtime-adjustable configuration of a Session. Every
// field may be changed with SetConfig while acquiring.
type Config struct {
	MinFreq     float64 // Hz
	MaxFreq     float64 // Hz
	ThresholdDB float64

	MinUpdateInterval float64 // seconds
	HistoryPolicy     history.Policy
	RetentionWindow   float64 // seconds, TimeWindow policy
	DisplayFrames     int     // FrameCount policy
	MissPolicy        peak.MissPolicy

	TickInterval time.Duration
	Tap          TapConfig
}

// DefaultConfig returns the 20-400 Hz band, a -80 dB gate, a five second
// time-windowed history and the tap recorder enabled.
func DefaultConfig() Config {
	pc := peak.DefaultConfig()
	hc := history.DefaultConfig()
	tc := tap.DefaultConfig()
	return Config{
		MinFreq:           pc.MinFreq,
		MaxFreq:           pc.MaxFreq,
		ThresholdDB:       pc.ThresholdDB,
		MinUpdateInterval: hc.MinUpdateInterval,
		HistoryPolicy:     hc.Policy,
		RetentionWindow:   hc.RetentionWindow,
		DisplayFrames:     hc.MaxSamples,
		MissPolicy:        peak.MissSkip,
		TickInterval:      DefaultTickInterval,
		Tap: TapConfig{
			Enabled:   true,
			TriggerDB: tc.TriggerDB,
			Duration:  tc.Duration,
		},
	}
}

// Sanitize clamps every out-of-range field to its nearest valid value and
// returns the names of the fields it changed.
func (c Config) Sanitize() (Config, []string) {
	def := DefaultConfig()
	var adjusted []string
	fix := func(name string, bad bool, apply func()) {
		if bad {
			apply()
			adjusted = append(adjusted, name)
		}
	}

	fix("MinFreq", !(c.MinFreq >= 0), func() { c.MinFreq = 0 })
	fix("MaxFreq", !(c.MaxFreq >= c.MinFreq), func() { c.MaxFreq = c.MinFreq })
	fix("ThresholdDB", !core.IsFinite(c.ThresholdDB), func() { c.ThresholdDB = def.ThresholdDB })
	fix("MinUpdateInterval", !(c.MinUpdateInterval >= 0) || !core.IsFinite(c.MinUpdateInterval),
		func() { c.MinUpdateInterval = 0 })
	fix("HistoryPolicy", c.HistoryPolicy != history.TimeWindow && c.HistoryPolicy != history.FrameCount,
		func() { c.HistoryPolicy = history.TimeWindow })
	fix("RetentionWindow", !(c.RetentionWindow >= 0) || !core.IsFinite(c.RetentionWindow),
		func() { c.RetentionWindow = 0 })
	fix("DisplayFrames", c.DisplayFrames < 1 || c.DisplayFrames > maxDisplayFrames,
		func() { c.DisplayFrames = core.ClampInt(c.DisplayFrames, 1, maxDisplayFrames) })
	fix("MissPolicy", c.MissPolicy != peak.MissSkip && c.MissPolicy != peak.MissFloor,
		func() { c.MissPolicy = peak.MissSkip })
	fix("TickInterval", c.TickInterval < minTickInterval, func() { c.TickInterval = minTickInterval })
	fix("Tap.TriggerDB", !core.IsFinite(c.Tap.TriggerDB), func() { c.Tap.TriggerDB = def.Tap.TriggerDB })
	fix("Tap.Duration", !(c.Tap.Duration >= 0) || !core.IsFinite(c.Tap.Duration), func() { c.Tap.Duration = 0 })

	return c, adjusted
}

func (c Config) peakConfig() peak.Config {
	return peak.Config{MinFreq: c.MinFreq, MaxFreq: c.MaxFreq, ThresholdDB: c.ThresholdDB}
}

func (c Config) historyConfig() history.Config {
	return history.Config{
		Policy:            c.HistoryPolicy,
		RetentionWindow:   c.RetentionWindow,
		MaxSamples:        c.DisplayFrames,
		MinUpdateInterval: c.MinUpdateInterval,
	}
}

func (c Config) tapConfig() tap.Config {
	return tap.Config{TriggerDB: c.Tap.TriggerDB, Duration: c.Tap.Duration}
}
