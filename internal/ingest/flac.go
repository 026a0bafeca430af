// ABOUTME: FLAC decoding for I/Q conversion
// ABOUTME: Mono streams produce a zero Q channel
package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mewkiz/flac"
)

func decodeFLAC(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}
	defer f.Close()

	stream, err := flac.New(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	channels := int(stream.Info.NChannels)
	bitDepth := int(stream.Info.BitsPerSample)
	if channels == 0 || bitDepth == 0 {
		return nil, fmt.Errorf("invalid FLAC stream info: %d channels, %d bits", channels, bitDepth)
	}
	scale := float32(int64(1) << (bitDepth - 1))

	var out []float32
	for {
		frame, err := stream.ParseNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to parse FLAC frame: %w", err)
		}

		for i := 0; i < int(frame.BlockSize); i++ {
			iv := float32(frame.Subframes[0].Samples[i]) / scale
			var qv float32
			if channels > 1 {
				qv = float32(frame.Subframes[1].Samples[i]) / scale
			}
			out = append(out, iv, qv)
		}
	}

	return out, nil
}
