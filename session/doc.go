// Package session runs the acquisition state machine of the knock
// analyser.
//
// A Session is Idle until Start opens its Source. While Acquiring, a
// single loop goroutine wakes once per tick, reads one spectrum frame from
// the input, extracts the dominant in-band peak, classifies it and
// appends it to a rolling history. An optional tap recorder turns knocks
// into one verdict each.
//
// Stop cancels the loop, waits for it to exit and releases the input
// exactly once. After Stop returns no further tick does any work. Start
// while acquiring stops the running acquisition first, and every
// acquisition begins with an empty history.
//
// Errors from the input, including io.EOF at the end of a recording,
// end the acquisition and are reported through Readout().Status. The
// history of an acquisition that ended this way stays readable until the
// next Start.
package session
