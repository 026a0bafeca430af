// ABOUTME: Static and transition multi-tone block generation
// ABOUTME: Equal-amplitude superposition normalized by tone count
package synth

import (
	"errors"
	"math"
)

const (
	// AngularScale maps a tone frequency (MHz) and sample index to radians
	AngularScale = math.Pi / 10

	// DefaultBlockSize is the I/Q pair count of a static block
	DefaultBlockSize = 20480

	// DefaultTransitionSteps is the pair count of a transition block (1ms at the design rate)
	DefaultTransitionSteps = 20000
)

// ErrLengthMismatch is returned when a transition is asked to move between sets of different size
var ErrLengthMismatch = errors.New("frequency sets differ in length")

// Static returns 2*blockSize interleaved I/Q samples for the given tones.
// An empty tone set yields all zeros.
func Static(freqs []float64, blockSize int) []float32 {
	if blockSize < 0 {
		blockSize = 0
	}
	samples := make([]float32, 2*blockSize)
	if len(freqs) == 0 {
		return samples
	}

	n := float64(len(freqs))
	for i := 0; i < blockSize; i++ {
		var re, im float64
		for _, f := range freqs {
			phase := f * AngularScale * float64(i)
			re += math.Cos(phase)
			im += math.Sin(phase)
		}
		samples[2*i] = float32(re / n)
		samples[2*i+1] = float32(im / n)
	}

	return samples
}

// Transition returns 2*steps interleaved I/Q samples sweeping from start toward end.
//
// Each running tone starts at start[j] and gains end[j]/steps after every
// sample. The destination acts as a total per-block delta, not an absolute
// target.
func Transition(start, end []float64, steps int) ([]float32, error) {
	if len(start) != len(end) {
		return nil, ErrLengthMismatch
	}
	if steps <= 0 {
		return []float32{}, nil
	}

	samples := make([]float32, 2*steps)
	if len(start) == 0 {
		return samples, nil
	}

	running := make([]float64, len(start))
	copy(running, start)
	inc := make([]float64, len(end))
	for j, f := range end {
		inc[j] = f / float64(steps)
	}

	n := float64(len(running))
	for i := 0; i < steps; i++ {
		var re, im float64
		for j, f := range running {
			phase := f * AngularScale * float64(i)
			re += math.Cos(phase)
			im += math.Sin(phase)
			running[j] += inc[j]
		}
		samples[2*i] = float32(re / n)
		samples[2*i+1] = float32(im / n)
	}

	return samples, nil
}
