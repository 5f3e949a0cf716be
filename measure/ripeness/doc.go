// Package ripeness maps the dominant knock frequency of a tapped melon onto
// one of four fixed ripeness categories.
//
// Bands are half-open on the lower bound:
//
//	f < 133 Hz          Overripe
//	133 <= f < 160 Hz   Ripe
//	160 <= f < 189 Hz   ModeratelyRipe
//	f >= 189 Hz         Unripe
//
// Classify is total: every float64, including NaN and the infinities,
// yields a category.
package ripeness
