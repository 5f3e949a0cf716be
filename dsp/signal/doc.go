// Package signal generates deterministic test signals for the knock
// analyser: pure tones, single decaying knocks, noise, and an endless
// train of knocks for demos and tests.
package signal
