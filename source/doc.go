// Package source provides the spectrum inputs an acquisition reads from.
//
// A Source is opened once per acquisition and yields an Input, the
// exclusively held handle that produces one spectrum frame per tick.
// Synth renders synthetic knocks, PCM and File decode raw signed 16-bit
// little-endian mono audio, and Push accepts frames computed elsewhere,
// such as by a browser analyser node.
package source
