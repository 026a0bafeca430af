// ABOUTME: Tests for audio to I/Q conversion helpers
// ABOUTME: Covers extension routing and PCM scaling
package ingest

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestIsRaw(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"capture.iq", true},
		{"CAPTURE.CF32", true},
		{"dir/block.bin", true},
		{"block.raw", true},
		{"song.mp3", false},
		{"noext", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := IsRaw(tt.path); got != tt.want {
				t.Errorf("IsRaw(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestSupported(t *testing.T) {
	if !Supported("a.mp3") || !Supported("b.FLAC") {
		t.Error("mp3 and flac should be supported")
	}
	if Supported("c.wav") {
		t.Error("wav should not be supported")
	}
}

func TestInt16ToFloat(t *testing.T) {
	pcm := make([]byte, 10)
	binary.LittleEndian.PutUint16(pcm[0:], uint16(16384))
	binary.LittleEndian.PutUint16(pcm[2:], 0x8000) // -32768
	binary.LittleEndian.PutUint16(pcm[4:], 0)
	binary.LittleEndian.PutUint16(pcm[6:], uint16(32767))
	// Two dangling bytes do not form a frame

	out := int16ToFloat(pcm)
	if len(out) != 4 {
		t.Fatalf("expected 4 samples, got %d", len(out))
	}
	if out[0] != 0.5 || out[1] != -1 || out[2] != 0 {
		t.Errorf("unexpected scaling: %v", out)
	}
	if out[3] >= 1 {
		t.Errorf("positive full scale must stay below 1, got %f", out[3])
	}
}

func TestConvertUnsupported(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tone.wav")
	if err := os.WriteFile(src, []byte("RIFF"), 0o600); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if _, err := Convert(src, filepath.Join(dir, "out.iq")); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestConvertCorruptMP3(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "broken.mp3")
	if err := os.WriteFile(src, []byte("not an mp3"), 0o600); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	dst := filepath.Join(dir, "out.iq")
	if _, err := Convert(src, dst); err == nil {
		t.Error("expected error for corrupt MP3")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Error("no output should be written when decoding fails")
	}
}
