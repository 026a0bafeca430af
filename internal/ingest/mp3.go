// ABOUTME: MP3 decoding for I/Q conversion
// ABOUTME: Decodes 16-bit stereo PCM and scales it to [-1, 1)
package ingest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"
)

func decodeMP3(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}
	defer f.Close()

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	// Decoder output is interleaved stereo int16, which maps onto I/Q pairs
	pcm, err := io.ReadAll(decoder)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read MP3 frames: %w", err)
	}

	return int16ToFloat(pcm), nil
}

func int16ToFloat(pcm []byte) []float32 {
	// Keep whole stereo frames only
	frames := len(pcm) / 4
	out := make([]float32, frames*2)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		out[i] = float32(v) / 32768
	}
	return out
}
