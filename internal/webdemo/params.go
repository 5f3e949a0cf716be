package webdemo

import (
	"fmt"
	"strings"
	"time"

	"github.com/cwbudde/algo-knock/dsp/peak"
	"github.com/cwbudde/algo-knock/measure/history"
)

// ConfigParams is the settings panel of the demo page.
type ConfigParams struct {
	MinFreq           float64
	MaxFreq           float64
	ThresholdDB       float64
	MinUpdateInterval float64
	Policy            string // "time" or "count"
	RetentionWindow   float64
	DisplayFrames     int
	Miss              string // "skip" or "floor"
	TickMS            float64
	TapEnabled        bool
	TapDuration       float64
}

// Params returns the active session settings in panel form.
func (e *Engine) Params() ConfigParams {
	cfg := e.sess.Config()
	p := ConfigParams{
		MinFreq:           cfg.MinFreq,
		MaxFreq:           cfg.MaxFreq,
		ThresholdDB:       cfg.ThresholdDB,
		MinUpdateInterval: cfg.MinUpdateInterval,
		Policy:            policyTime,
		RetentionWindow:   cfg.RetentionWindow,
		DisplayFrames:     cfg.DisplayFrames,
		Miss:              missSkip,
		TickMS:            float64(cfg.TickInterval) / float64(time.Millisecond),
		TapEnabled:        cfg.Tap.Enabled,
		TapDuration:       cfg.Tap.Duration,
	}
	if cfg.HistoryPolicy == history.FrameCount {
		p.Policy = policyCount
	}
	if cfg.MissPolicy == peak.MissFloor {
		p.Miss = missFloor
	}
	return p
}

// SetConfig applies panel settings to the session, live if detection is
// running. Out-of-range numbers are clamped by the session; unknown policy
// names are rejected.
func (e *Engine) SetConfig(p ConfigParams) error {
	cfg := e.sess.Config()

	switch strings.ToLower(strings.TrimSpace(p.Policy)) {
	case policyTime, "":
		cfg.HistoryPolicy = history.TimeWindow
	case policyCount:
		cfg.HistoryPolicy = history.FrameCount
	default:
		return fmt.Errorf("unsupported history policy: %s", p.Policy)
	}

	switch strings.ToLower(strings.TrimSpace(p.Miss)) {
	case missSkip, "":
		cfg.MissPolicy = peak.MissSkip
	case missFloor:
		cfg.MissPolicy = peak.MissFloor
	default:
		return fmt.Errorf("unsupported miss policy: %s", p.Miss)
	}

	cfg.MinFreq = p.MinFreq
	cfg.MaxFreq = p.MaxFreq
	cfg.ThresholdDB = p.ThresholdDB
	cfg.MinUpdateInterval = p.MinUpdateInterval
	cfg.RetentionWindow = p.RetentionWindow
	cfg.DisplayFrames = p.DisplayFrames
	cfg.TickInterval = time.Duration(p.TickMS * float64(time.Millisecond))
	cfg.Tap.Enabled = p.TapEnabled
	cfg.Tap.Duration = p.TapDuration

	e.sess.SetConfig(cfg)
	return nil
}
