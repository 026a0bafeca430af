// ABOUTME: Streaming block combining the session controller and the item reader
// ABOUTME: Owns the producer goroutine and tears everything down in a safe order
package iqsource

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/Resonate-Protocol/iqsource/internal/ingest"
	"github.com/Resonate-Protocol/iqsource/internal/session"
	"github.com/Resonate-Protocol/iqsource/internal/stream"
	"github.com/Resonate-Protocol/iqsource/pkg/synth"
)

// DefaultItemSize is one interleaved float32 I/Q pair
const DefaultItemSize = synth.BytesPerPair

// SessionConfig configures the command-driven synthesizer of a Block
type SessionConfig = session.Config

// Stats is a snapshot of reader progress
type Stats = stream.Stats

// Config configures a Block. The zero value rewinds the current source
// when nothing is queued.
type Config struct {
	// ItemSize is the byte size of one delivered item (default: 8)
	ItemSize int

	// NoRepeat makes the reader wait for the next synthesized or loaded
	// source instead of rewinding the current one when the chain runs dry
	NoRepeat bool

	// SourcePath starts the reader on an existing raw file instead of a
	// synthesized block
	SourcePath string

	// SourceFD starts the reader on an already open descriptor when UseFD is set
	SourceFD int
	UseFD    bool

	// Session configures the command-driven synthesizer
	Session SessionConfig
}

// Block is a streaming source with a live command-driven synthesizer
type Block struct {
	reader  *stream.Reader
	control *session.Controller

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startOnce sync.Once
	closeOnce sync.Once
	closeErr  error

	runMu  sync.Mutex
	runErr error
}

// New builds the controller, obtains the initial source and creates the reader.
// With neither SourcePath nor UseFD the initial source is the static block of
// the session's starting frequency set.
func New(cfg Config) (*Block, error) {
	if cfg.ItemSize == 0 {
		cfg.ItemSize = DefaultItemSize
	}
	if cfg.SourcePath != "" && cfg.UseFD {
		return nil, errors.New("source path and source descriptor are mutually exclusive")
	}

	control := session.New(cfg.Session, nil)

	initial, err := openInitial(cfg, control)
	if err != nil {
		return nil, err
	}

	reader, err := stream.NewReader(stream.Config{
		ItemSize: cfg.ItemSize,
		Repeat:   !cfg.NoRepeat,
	}, initial)
	if err != nil {
		initial.Close()
		return nil, err
	}
	control.SetSink(reader)

	ctx, cancel := context.WithCancel(context.Background())
	return &Block{
		reader:  reader,
		control: control,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

func openInitial(cfg Config, control *session.Controller) (stream.Source, error) {
	switch {
	case cfg.UseFD:
		src, err := openDescriptor(cfg.SourceFD)
		if err != nil {
			return nil, err
		}
		if err := control.Setup(); err != nil {
			src.Close()
			return nil, err
		}
		return src, nil

	case cfg.SourcePath != "":
		if !ingest.IsRaw(cfg.SourcePath) {
			log.Printf("Initial source %s has no raw I/Q extension, streaming bytes as-is", cfg.SourcePath)
		}
		src, err := stream.OpenFile(cfg.SourcePath)
		if err != nil {
			return nil, err
		}
		if err := control.Setup(); err != nil {
			src.Close()
			return nil, err
		}
		return src, nil

	default:
		return control.Init()
	}
}

// Start launches the session goroutine. Calling it more than once has no effect.
func (b *Block) Start() {
	b.startOnce.Do(func() {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			err := b.control.Run(b.ctx)
			if err != nil {
				log.Printf("Session error: %v", err)
			}
			b.runMu.Lock()
			b.runErr = err
			b.runMu.Unlock()
		}()
	})
}

// Work fills dst with whole items and returns how many were written.
// It blocks until at least one item is available.
func (b *Block) Work(dst []byte) (int, error) {
	return b.reader.Work(dst)
}

// ItemSize returns the configured item size in bytes
func (b *Block) ItemSize() int {
	return b.reader.ItemSize()
}

// Stats returns reader progress counters
func (b *Block) Stats() Stats {
	return b.reader.Stats()
}

// Wait blocks until the session goroutine exits, returning its error
func (b *Block) Wait() error {
	b.wg.Wait()
	b.runMu.Lock()
	defer b.runMu.Unlock()
	return b.runErr
}

// Close shuts the block down: the reader is closed so a blocked Work
// returns, the session is cancelled, and Close waits for the session
// goroutine before returning.
func (b *Block) Close() error {
	b.closeOnce.Do(func() {
		if err := b.reader.Close(); err != nil {
			b.closeErr = fmt.Errorf("close reader: %w", err)
		}
		b.cancel()
		b.wg.Wait()
		log.Printf("Block closed after %d items", b.reader.Stats().Items)
	})
	return b.closeErr
}
