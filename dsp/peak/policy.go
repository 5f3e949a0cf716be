package peak

import (
	"fmt"

	"github.com/cwbudde/algo-knock/dsp/core"
)

// MissPolicy decides what a consumer records for a tick without a peak.
type MissPolicy int

const (
	// MissSkip records nothing.
	MissSkip MissPolicy = iota
	// MissFloor records a floor sample so the chart keeps moving.
	MissFloor
)

// String returns the policy name.
func (p MissPolicy) String() string {
	switch p {
	case MissSkip:
		return "skip"
	case MissFloor:
		return "floor"
	default:
		return fmt.Sprintf("MissPolicy(%d)", int(p))
	}
}

// ParseMissPolicy resolves a policy name.
func ParseMissPolicy(name string) (MissPolicy, error) {
	switch name {
	case "skip", "":
		return MissSkip, nil
	case "floor":
		return MissFloor, nil
	default:
		return MissSkip, fmt.Errorf("unknown miss policy: %q", name)
	}
}

// Fill returns the sample to record for a tick without a peak, if any.
// The floor sample sits at 0 Hz with amplitude floorDB (floored at
// core.MinDB) and Bin -1.
func (p MissPolicy) Fill(timestamp, floorDB float64) (Sample, bool) {
	if p != MissFloor {
		return Sample{}, false
	}
	return Sample{
		Amplitude: core.FloorDB(floorDB),
		Timestamp: timestamp,
		Bin:       -1,
	}, true
}
