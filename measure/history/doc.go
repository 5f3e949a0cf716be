// Package history keeps a bounded, time-ordered record of recent peak
// samples for charting.
//
// A Buffer debounces inserts by a minimum update interval and evicts by
// one of two policies:
//
//   - TimeWindow keeps samples with timestamp >= now - RetentionWindow.
//   - FrameCount keeps at most MaxSamples of the newest samples.
//
// The bound is enforced on every accepted insert. A Buffer is not safe for
// concurrent use; callers serialise access.
package history
