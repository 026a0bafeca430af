// ABOUTME: Tests for the Opus encoder and the I/Q frame buffer
// ABOUTME: Covers encoder creation, frame sizing and item accumulation
package server

import (
	"math"
	"testing"

	"github.com/Resonate-Protocol/iqsource/pkg/synth"
)

func TestNewOpusEncoder(t *testing.T) {
	encoder, err := NewOpusEncoder(OpusSampleRate, OpusChannels, OpusFrameSize)
	if err != nil {
		t.Fatalf("failed to create encoder: %v", err)
	}

	if encoder.sampleRate != 48000 {
		t.Errorf("expected sampleRate 48000, got %d", encoder.sampleRate)
	}
	if encoder.channels != 2 {
		t.Errorf("expected channels 2, got %d", encoder.channels)
	}
}

func TestOpusEncoderInvalidParams(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate int
		channels   int
	}{
		{"44.1kHz", 44100, 2},
		{"five channels", 48000, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewOpusEncoder(tt.sampleRate, tt.channels, 960); err == nil {
				t.Errorf("expected error for %d Hz / %d channels", tt.sampleRate, tt.channels)
			}
		})
	}
}

func TestOpusEncodeFloat32(t *testing.T) {
	encoder, err := NewOpusEncoder(OpusSampleRate, OpusChannels, OpusFrameSize)
	if err != nil {
		t.Fatal(err)
	}

	pcm := make([]float32, OpusFrameSize*OpusChannels)
	for i := 0; i < OpusFrameSize; i++ {
		pcm[2*i] = float32(math.Cos(float64(i) * 0.05))
		pcm[2*i+1] = float32(math.Sin(float64(i) * 0.05))
	}

	packet, err := encoder.EncodeFloat32(pcm)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(packet) == 0 || len(packet) > maxPacket {
		t.Errorf("unexpected packet size %d", len(packet))
	}
}

func TestOpusEncodeFloat32WrongLength(t *testing.T) {
	encoder, err := NewOpusEncoder(OpusSampleRate, OpusChannels, OpusFrameSize)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := encoder.EncodeFloat32(make([]float32, 100)); err == nil {
		t.Error("expected error for partial frame")
	}
}

func TestFrameEncoderBuffersPartialFrames(t *testing.T) {
	f, err := newFrameEncoder()
	if err != nil {
		t.Fatal(err)
	}

	// 1.5 frames of pairs
	block := synth.Encode(synth.Static([]float64{1}, OpusFrameSize*3/2))

	packets, err := f.Write(block[:len(block)/3])
	if err != nil {
		t.Fatal(err)
	}
	if len(packets) != 0 {
		t.Errorf("expected no packet from half a frame, got %d", len(packets))
	}

	packets, err = f.Write(block[len(block)/3:])
	if err != nil {
		t.Fatal(err)
	}
	if len(packets) != 1 {
		t.Errorf("expected 1 packet, got %d", len(packets))
	}
	if len(f.pending) != OpusFrameSize {
		t.Errorf("expected half a frame pending, got %d samples", len(f.pending))
	}
}

func TestClamp(t *testing.T) {
	nan := float32(math.NaN())
	tests := []struct {
		in, want float32
	}{
		{0.5, 0.5},
		{2, 1},
		{-3, -1},
		{nan, 0},
	}
	for _, tt := range tests {
		if got := clamp(tt.in); got != tt.want {
			t.Errorf("clamp(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
