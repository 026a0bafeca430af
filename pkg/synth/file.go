// ABOUTME: Raw I/Q file format and materialization
// ABOUTME: Writes sample blocks to disk and reopens them read-only for streaming
package synth

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// BytesPerPair is the size of one interleaved I/Q pair on disk
const BytesPerPair = 8

// fileMode is applied to every generated block file
const fileMode = 0o700

// Encode converts samples to little-endian float32 bytes
func Encode(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}

// Decode converts little-endian float32 bytes to samples.
// Trailing bytes that do not form a whole float are ignored.
func Decode(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

// WriteFile creates (or truncates) path, writes the samples, closes it and
// returns the same path reopened read-only. A partially written file is left
// on disk when an error is returned.
func WriteFile(path string, samples []float32) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fileMode)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	data := Encode(samples)
	n, err := f.Write(data)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	if n != len(data) {
		f.Close()
		return nil, fmt.Errorf("write %s: short write (%d of %d bytes)", path, n, len(data))
	}

	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close %s: %w", path, err)
	}

	r, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reopen %s: %w", path, err)
	}

	return r, nil
}

// WriteStatic synthesizes a static block and materializes it at path
func WriteStatic(path string, freqs []float64, blockSize int) (*os.File, error) {
	return WriteFile(path, Static(freqs, blockSize))
}

// WriteTransition synthesizes a transition block and materializes it at path.
// Mismatched sets return ErrLengthMismatch without touching the filesystem.
func WriteTransition(path string, start, end []float64, steps int) (*os.File, error) {
	samples, err := Transition(start, end, steps)
	if err != nil {
		return nil, err
	}
	return WriteFile(path, samples)
}
