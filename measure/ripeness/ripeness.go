package ripeness

import (
	"fmt"
	"math"
)

// Category boundaries in Hz.
const (
	RipeMinHz           = 133.0
	ModeratelyRipeMinHz = 160.0
	UnripeMinHz         = 189.0
)

// Category is a ripeness class.
type Category int

const (
	Overripe Category = iota
	Ripe
	ModeratelyRipe
	Unripe
)

// Categories lists all categories from lowest to highest frequency band.
var Categories = []Category{Overripe, Ripe, ModeratelyRipe, Unripe}

// Classify returns the category for a dominant frequency in Hz. NaN
// compares false against every boundary and lands in Unripe.
func Classify(freq float64) Category {
	switch {
	case freq < RipeMinHz:
		return Overripe
	case freq < ModeratelyRipeMinHz:
		return Ripe
	case freq < UnripeMinHz:
		return ModeratelyRipe
	default:
		return Unripe
	}
}

// Bounds returns the half-open band [lo, hi) of c. Open ends are
// reported as infinities.
func Bounds(c Category) (lo, hi float64) {
	switch c {
	case Overripe:
		return math.Inf(-1), RipeMinHz
	case Ripe:
		return RipeMinHz, ModeratelyRipeMinHz
	case ModeratelyRipe:
		return ModeratelyRipeMinHz, UnripeMinHz
	case Unripe:
		return UnripeMinHz, math.Inf(1)
	default:
		return math.NaN(), math.NaN()
	}
}

// String returns the English category name.
func (c Category) String() string {
	switch c {
	case Overripe:
		return "overripe"
	case Ripe:
		return "ripe"
	case ModeratelyRipe:
		return "moderately ripe"
	case Unripe:
		return "unripe"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// Label returns the display label shown next to the chart.
func (c Category) Label() string {
	switch c {
	case Overripe:
		return "过熟瓜"
	case Ripe:
		return "熟瓜"
	case ModeratelyRipe:
		return "适熟瓜"
	case Unripe:
		return "生瓜"
	default:
		return c.String()
	}
}
