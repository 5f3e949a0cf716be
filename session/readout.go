package session

import (
	"github.com/cwbudde/algo-knock/dsp/peak"
	"github.com/cwbudde/algo-knock/measure/history"
	"github.com/cwbudde/algo-knock/measure/ripeness"
	"github.com/cwbudde/algo-knock/measure/tap"
)

// Readout is a point-in-time copy of everything a renderer needs. It
// shares no memory with the session.
type Readout struct {
	State      State
	Status     string
	SessionID  string
	SampleRate float64
	BinCount   int
	// Ticks counts processed frames of the current acquisition.
	Ticks int

	History []peak.Sample
	Summary history.Summary

	// Peak is the peak of the latest frame. It is valid only if HasPeak.
	Peak     peak.Sample
	HasPeak  bool
	Category ripeness.Category

	Tap     tap.State
	Verdict *tap.Verdict
}

// Label returns the category label of the latest peak, or "" when the
// latest frame had none.
func (r Readout) Label() string {
	if !r.HasPeak {
		return ""
	}
	return r.Category.Label()
}
