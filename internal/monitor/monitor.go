// ABOUTME: Audible monitor that plays the I/Q stream through the sound card
// ABOUTME: I goes to the left channel and Q to the right as float32 samples
package monitor

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"math"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Channels is fixed: one channel for I, one for Q
const Channels = 2

// Monitor owns the process-wide oto context
type Monitor struct {
	otoCtx     *oto.Context
	sampleRate int

	// volume is a percentage, 0-100
	volume atomic.Int32
}

// New opens the audio device at sampleRate. Oto allows one context per
// process, so create a single Monitor.
func New(sampleRate int) (*Monitor, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: Channels,
		Format:       oto.FormatFloat32LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	m := &Monitor{otoCtx: ctx, sampleRate: sampleRate}
	m.volume.Store(100)

	log.Printf("Audio monitor initialized: %dHz, %d channels", sampleRate, Channels)
	return m, nil
}

// Play streams r (interleaved little-endian float32 I/Q) until r fails,
// the player stops or ctx is cancelled
func (m *Monitor) Play(ctx context.Context, r io.Reader) error {
	player := m.otoCtx.NewPlayer(&gainReader{r: r, volume: &m.volume})
	defer player.Close()
	player.Play()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			player.Pause()
			return nil
		case <-ticker.C:
			if !player.IsPlaying() {
				if err := player.Err(); err != nil {
					return fmt.Errorf("playback: %w", err)
				}
				return nil
			}
		}
	}
}

// SetVolume sets the volume (0-100)
func (m *Monitor) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	m.volume.Store(int32(volume))
	log.Printf("Volume set to %d", volume)
}

// Close suspends the audio device
func (m *Monitor) Close() error {
	if err := m.otoCtx.Suspend(); err != nil {
		return fmt.Errorf("suspend audio: %w", err)
	}
	return nil
}

// gainReader scales float32 samples by the monitor volume. It only hands
// out whole 4-byte samples.
type gainReader struct {
	r      io.Reader
	volume *atomic.Int32
}

func (g *gainReader) Read(p []byte) (int, error) {
	p = p[:len(p)&^3]
	if len(p) == 0 {
		return 0, nil
	}

	n, err := io.ReadAtLeast(g.r, p, 4)
	if err != nil {
		return 0, err
	}
	if rem := n % 4; rem != 0 {
		if _, err := io.ReadFull(g.r, p[n:n+4-rem]); err != nil {
			n -= rem
			if n == 0 {
				return 0, err
			}
		} else {
			n += 4 - rem
		}
	}

	gain := float32(g.volume.Load()) / 100
	if gain != 1 {
		for off := 0; off < n; off += 4 {
			v := math.Float32frombits(binary.LittleEndian.Uint32(p[off:]))
			binary.LittleEndian.PutUint32(p[off:], math.Float32bits(v*gain))
		}
	}
	return n, nil
}
