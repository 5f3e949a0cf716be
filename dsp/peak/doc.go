// Package peak finds the dominant bin of a spectrum frame inside an analysis
// band.
//
// A bin only counts when its frequency lies in [MinFreq, MaxFreq] and its
// level is strictly above the gate. Bins are scanned in ascending order with
// a strict comparison, so on equal levels the lowest bin wins. When nothing
// passes, Extract reports false instead of returning a -Inf amplitude.
package peak
