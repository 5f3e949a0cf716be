package core

import "math"

const defaultEpsilon = 1e-12

// MinDB is the level floor used wherever a dB value would otherwise be -Inf.
const MinDB = -130.0

// Clamp limits value to the inclusive range [min, max].
func Clamp(value, min, max float64) float64 {
	if min > max {
		min, max = max, min
	}

	if value < min {
		return min
	}

	if value > max {
		return max
	}

	return value
}

// ClampInt limits value to the inclusive range [min, max].
func ClampInt(value, min, max int) int {
	if min > max {
		min, max = max, min
	}

	if value < min {
		return min
	}

	if value > max {
		return max
	}

	return value
}

// NearlyEqual reports whether a and b are equal within eps.
func NearlyEqual(a, b, eps float64) bool {
	if eps <= 0 {
		eps = defaultEpsilon
	}

	diff := math.Abs(a - b)
	if diff <= eps {
		return true
	}

	largest := math.Max(math.Abs(a), math.Abs(b))
	if largest == 0 {
		return diff <= eps
	}

	return diff/largest <= eps
}

// IsFinite reports whether x is neither NaN nor Inf.
func IsFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// DBToLinear converts dB to linear amplitude (20*log10 convention).
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// LinearToDB converts linear amplitude to dB (20*log10 convention).
// Returns -Inf for zero and NaN for negative values.
func LinearToDB(linear float64) float64 {
	if linear < 0 {
		return math.NaN()
	}

	if linear == 0 {
		return math.Inf(-1)
	}

	return 20 * math.Log10(linear)
}

// FloorDB returns db limited from below by MinDB. NaN and -Inf map to MinDB.
func FloorDB(db float64) float64 {
	if math.IsNaN(db) || db < MinDB {
		return MinDB
	}

	return db
}

// ByteToDB converts an unsigned 8-bit spectrum magnitude to dB relative to
// full scale: 20*log10(b/255). A zero byte reads as MinDB.
func ByteToDB(b byte) float64 {
	if b == 0 {
		return MinDB
	}

	return FloorDB(20 * math.Log10(float64(b)/255))
}

// ScaleToByte maps db linearly from [minDB, maxDB] onto 0..255, clamping at
// both ends.
func ScaleToByte(db, minDB, maxDB float64) byte {
	if maxDB <= minDB || math.IsNaN(db) {
		return 0
	}

	v := math.Floor(255 * (db - minDB) / (maxDB - minDB))

	return byte(Clamp(v, 0, 255))
}
