package tap

import (
	"fmt"

	"github.com/cwbudde/algo-knock/dsp/core"
	"github.com/cwbudde/algo-knock/dsp/peak"
	"github.com/cwbudde/algo-knock/dsp/spectrum"
	"github.com/cwbudde/algo-knock/measure/ripeness"
)

// DefaultDuration is the recording length in seconds.
const DefaultDuration = 1.0

// DefaultTriggerByte is the byte magnitude a frame must exceed to start a
// recording.
const DefaultTriggerByte = 100

// State is the recorder state.
type State int

const (
	Waiting State = iota
	Recording
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Recording:
		return "recording"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config controls triggering and recording length.
type Config struct {
	TriggerDB float64
	Duration  float64 // seconds
}

// DefaultConfig triggers above byte 100 (about -8.1 dB) and records for one
// second.
func DefaultConfig() Config {
	return Config{
		TriggerDB: core.ByteToDB(DefaultTriggerByte),
		Duration:  DefaultDuration,
	}
}

// Verdict is the outcome of one recording.
type Verdict struct {
	Found    bool
	Peak     peak.Sample
	Category ripeness.Category
	Start    float64
	End      float64
	Frames   int
	// Levels holds the dB levels of the frame the peak came from.
	Levels []float64
}

// String formats the verdict for a status line.
func (v Verdict) String() string {
	if !v.Found {
		return "no valid signal detected"
	}
	return fmt.Sprintf("result: %s (peak %.1f Hz, %.1f dB)", v.Category.Label(), v.Peak.Frequency, v.Peak.Amplitude)
}

// Recorder detects knocks and reports one Verdict per recording.
type Recorder struct {
	cfg    Config
	state  State
	start  float64
	frames int
	found  bool
	best   peak.Sample
	levels []float64
}

// New creates a waiting recorder.
func New(cfg Config) *Recorder {
	return &Recorder{cfg: cfg}
}

// Configure replaces the trigger and duration. A recording in progress
// keeps running under the new duration.
func (r *Recorder) Configure(cfg Config) {
	r.cfg = cfg
}

// State returns the current state.
func (r *Recorder) State() State {
	return r.state
}

// Reset abandons any recording in progress.
func (r *Recorder) Reset() {
	r.state = Waiting
	r.start = 0
	r.frames = 0
	r.found = false
	r.best = peak.Sample{}
	r.levels = r.levels[:0]
}

// Observe feeds one frame taken at timestamp. Peaks are located with ex.
// It returns a verdict once a recording has lasted at least Duration.
func (r *Recorder) Observe(frame spectrum.Frame, ex *peak.Extractor, sampleRate, timestamp float64) (Verdict, bool) {
	if frame == nil || frame.Len() == 0 {
		return Verdict{}, false
	}

	if r.state == Waiting {
		loudest, _ := spectrum.Loudest(frame)
		if !(loudest > r.cfg.TriggerDB) {
			return Verdict{}, false
		}
		r.Reset()
		r.state = Recording
		r.start = timestamp
	}

	r.frames++
	if s, ok := ex.Extract(frame, sampleRate, timestamp); ok {
		if !r.found || s.Amplitude > r.best.Amplitude {
			r.best = s
			r.found = true
			r.levels = core.EnsureLen(r.levels, frame.Len())
			for i := range r.levels {
				r.levels[i] = frame.Level(i)
			}
		}
	}

	if timestamp-r.start < r.cfg.Duration {
		return Verdict{}, false
	}

	v := Verdict{
		Found:  r.found,
		Start:  r.start,
		End:    timestamp,
		Frames: r.frames,
	}
	if r.found {
		v.Peak = r.best
		v.Category = ripeness.Classify(r.best.Frequency)
		v.Levels = append([]float64(nil), r.levels...)
	}
	r.Reset()

	return v, true
}
