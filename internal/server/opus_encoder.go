// ABOUTME: Opus encoding of I/Q items for lossy monitoring subscribers
// ABOUTME: I maps to the left channel and Q to the right at 48 kHz
package server

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"

	"gopkg.in/hraban/opus.v2"
)

const (
	// ItemSizeIQ is the only item size the opus path understands
	ItemSizeIQ = 8

	OpusSampleRate = 48000
	OpusChannels   = 2

	// OpusFrameSize is 20ms of pairs at 48 kHz
	OpusFrameSize = 960

	// maxPacket is the largest opus packet libopus can produce
	maxPacket = 4000
)

// OpusEncoder wraps the Opus encoder for float32 input
type OpusEncoder struct {
	encoder    *opus.Encoder
	sampleRate int
	channels   int
	frameSize  int // samples per channel per frame
}

// NewOpusEncoder creates a new Opus encoder.
// frameSize is in samples per channel (e.g., 960 for 20ms at 48kHz)
func NewOpusEncoder(sampleRate, channels, frameSize int) (*OpusEncoder, error) {
	encoder, err := opus.NewEncoder(sampleRate, channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}

	bitrate := 64000 * channels
	if err := encoder.SetBitrate(bitrate); err != nil {
		log.Printf("Warning: Failed to set Opus bitrate: %v", err)
	}

	return &OpusEncoder{
		encoder:    encoder,
		sampleRate: sampleRate,
		channels:   channels,
		frameSize:  frameSize,
	}, nil
}

// EncodeFloat32 encodes one interleaved frame to an Opus packet
func (e *OpusEncoder) EncodeFloat32(pcm []float32) ([]byte, error) {
	if len(pcm) != e.frameSize*e.channels {
		return nil, fmt.Errorf("opus frame needs %d samples, got %d", e.frameSize*e.channels, len(pcm))
	}

	output := make([]byte, maxPacket)
	n, err := e.encoder.EncodeFloat32(pcm, output)
	if err != nil {
		return nil, fmt.Errorf("opus encode failed: %w", err)
	}
	return output[:n], nil
}

// frameEncoder buffers I/Q items into whole opus frames
type frameEncoder struct {
	enc     *OpusEncoder
	pending []float32
}

func newFrameEncoder() (*frameEncoder, error) {
	enc, err := NewOpusEncoder(OpusSampleRate, OpusChannels, OpusFrameSize)
	if err != nil {
		return nil, err
	}
	return &frameEncoder{
		enc:     enc,
		pending: make([]float32, 0, OpusFrameSize*OpusChannels),
	}, nil
}

// Write consumes whole 8-byte items and returns every completed packet
func (f *frameEncoder) Write(items []byte) ([][]byte, error) {
	var packets [][]byte
	frame := OpusFrameSize * OpusChannels

	for off := 0; off+4 <= len(items); off += 4 {
		v := math.Float32frombits(binary.LittleEndian.Uint32(items[off:]))
		f.pending = append(f.pending, clamp(v))

		if len(f.pending) == frame {
			p, err := f.enc.EncodeFloat32(f.pending)
			if err != nil {
				return packets, err
			}
			packets = append(packets, p)
			f.pending = f.pending[:0]
		}
	}
	return packets, nil
}

func clamp(v float32) float32 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	case v != v:
		return 0
	}
	return v
}
