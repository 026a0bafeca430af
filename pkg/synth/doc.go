// ABOUTME: Multi-tone I/Q waveform synthesizer package
// ABOUTME: Generates static and transition blocks and materializes them as files

// Package synth generates interleaved float32 I/Q blocks from a set of tone
// frequencies and writes them in the raw format the stream reader consumes.
//
// Two block kinds exist:
//   - Static: the steady-state signature of a frequency set
//   - Transition: a sweep from one frequency set toward another
//
// Files carry no header: [I0, Q0, I1, Q1, ...] as little-endian float32.
//
// Example:
//
//	f, err := synth.WriteStatic("stat_0.iq", []float64{1.5, 3}, synth.DefaultBlockSize)
//	defer f.Close()
package synth
