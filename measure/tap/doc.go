// Package tap turns a stream of spectrum frames into one verdict per
// knock.
//
// A Recorder waits until the loudest bin of a frame rises above a trigger
// level, then records for a fixed duration. When the duration has elapsed
// the strongest in-band peak seen during the recording is classified and
// returned together with the levels of the frame it came from.
package tap
