// ABOUTME: Converts recorded audio files into raw I/Q blocks
// ABOUTME: Left/first channel becomes I, right/second channel becomes Q
package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Resonate-Protocol/iqsource/pkg/synth"
)

// rawExtensions are already in the interleaved float32 I/Q layout
var rawExtensions = map[string]bool{
	".iq":   true,
	".cf32": true,
	".bin":  true,
	".raw":  true,
}

// IsRaw reports whether path can be streamed without conversion
func IsRaw(path string) bool {
	return rawExtensions[strings.ToLower(filepath.Ext(path))]
}

// Supported reports whether Convert understands path
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3", ".flac":
		return true
	}
	return false
}

// Convert decodes src and materializes it at dst as raw I/Q, returning dst
// reopened read-only.
func Convert(src, dst string) (*os.File, error) {
	var samples []float32
	var err error

	switch ext := strings.ToLower(filepath.Ext(src)); ext {
	case ".mp3":
		samples, err = decodeMP3(src)
	case ".flac":
		samples, err = decodeFLAC(src)
	default:
		return nil, fmt.Errorf("unsupported audio format: %s (supported: .mp3, .flac)", ext)
	}
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("no audio decoded from %s", src)
	}

	return synth.WriteFile(dst, samples)
}
