// Package spectrum provides spectrum frames, bin-to-frequency mapping and an
// FFT analyser that turns a stream of samples into per-frame magnitudes.
//
// Frames are read-only views over one analysis tick. [ByteFrame] carries
// unsigned 0..255 magnitudes, [DBFrame] carries pre-scaled decibels; both
// report levels in dB through the [Frame] interface so downstream code does
// not care which representation the source produced.
package spectrum
