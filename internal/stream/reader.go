// ABOUTME: Item-oriented streaming reader over a chain of byte sources
// ABOUTME: Carries partial items across reads and rotates or rewinds on end of stream
package stream

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Work and Enqueue once the reader has been closed
var ErrClosed = errors.New("stream reader closed")

// Config holds reader configuration
type Config struct {
	// ItemSize is the byte size of one delivered item (required)
	ItemSize int

	// Repeat rewinds the current source when it runs dry and nothing is
	// queued. When false the reader waits for the next enqueued source.
	Repeat bool
}

// Stats is a point-in-time view of reader progress
type Stats struct {
	Items     uint64
	Rotations uint64
	Rewinds   uint64
	Pending   int
	Current   string
}

// Reader delivers whole items from the current source and its successors.
//
// Work is meant for a single consumer goroutine. Enqueue may be called
// from any goroutine.
type Reader struct {
	itemSize int
	repeat   bool

	// current is written by the consumer under mu and read by Close under mu
	current Source
	mu      sync.Mutex
	closed  atomic.Bool
	done    chan struct{}
	once    sync.Once

	res   residue
	chain *chain

	// rewound is set after a rewind and cleared once an item is delivered
	rewound bool

	items       atomic.Uint64
	rotations   atomic.Uint64
	rewinds     atomic.Uint64
	currentName atomic.Pointer[string]
}

// NewReader creates a reader starting on initial
func NewReader(cfg Config, initial Source) (*Reader, error) {
	if cfg.ItemSize <= 0 {
		return nil, fmt.Errorf("item size must be positive, got %d", cfg.ItemSize)
	}
	if initial == nil {
		return nil, fmt.Errorf("initial source is required")
	}

	r := &Reader{
		itemSize: cfg.ItemSize,
		repeat:   cfg.Repeat,
		current:  initial,
		done:     make(chan struct{}),
		res:      newResidue(cfg.ItemSize),
		chain:    newChain(),
	}
	name := initial.Name()
	r.currentName.Store(&name)

	return r, nil
}

// ItemSize returns the configured item size in bytes
func (r *Reader) ItemSize() int { return r.itemSize }

// Enqueue appends s to the pending chain. Ownership of s passes to the
// reader; it is closed immediately if the reader is already closed.
func (r *Reader) Enqueue(s Source) error {
	if !r.chain.push(s) {
		s.Close()
		return ErrClosed
	}
	return nil
}

// ReadItems fills dst with whole items read from the current source.
//
// It blocks until at least one whole item is available, the source reports
// end of stream (io.EOF, with any carried bytes kept), or the read fails.
// dst must hold at least one item.
func (r *Reader) ReadItems(dst []byte) (int, error) {
	capacity := len(dst) / r.itemSize
	if capacity <= 0 {
		return 0, fmt.Errorf("buffer of %d bytes holds no %d-byte item", len(dst), r.itemSize)
	}
	want := capacity * r.itemSize

	for {
		already := r.res.drainTo(dst)

		n, err := r.current.Read(dst[already:want])
		if n < 0 {
			n = 0
		}

		if n == 0 {
			r.res.capture(dst, already, r.itemSize)
			if err == nil {
				continue
			}
			return 0, err
		}

		items := r.res.capture(dst, already+n, r.itemSize)
		if items > 0 {
			return items, nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
		// Short read: fewer bytes than one item so far, keep reading
	}
}

// Work is the host pull entry point. It returns the number of whole items
// written to dst, resolving end of stream by switching to the next queued
// source or rewinding the current one. An error is returned only for a
// fatal I/O failure or after Close.
func (r *Reader) Work(dst []byte) (int, error) {
	for {
		if r.closed.Load() {
			return 0, ErrClosed
		}

		n, err := r.ReadItems(dst)
		switch {
		case err == nil:
			r.rewound = false
			r.items.Add(uint64(n))
			return n, nil

		case isInterrupted(err):
			continue

		case errors.Is(err, io.EOF):
			if err := r.advance(); err != nil {
				return 0, err
			}

		default:
			if r.closed.Load() {
				return 0, ErrClosed
			}
			log.Printf("stream reader [read] %s: %v", r.current.Name(), err)
			return 0, fmt.Errorf("read %s: %w", r.current.Name(), err)
		}
	}
}

// advance applies the end-of-stream policy to the current source
func (r *Reader) advance() error {
	if next, ok := r.chain.pop(); ok {
		return r.swap(next)
	}

	// A rewind that produced nothing would spin forever, so wait instead
	if !r.repeat || r.rewound {
		return r.waitForSource()
	}

	r.res.flush()
	if _, err := r.current.Seek(0, io.SeekStart); err != nil {
		if r.closed.Load() {
			return ErrClosed
		}
		log.Printf("stream reader [seek] %s: %v", r.current.Name(), err)
		return fmt.Errorf("rewind %s: %w", r.current.Name(), err)
	}
	r.rewound = true
	r.rewinds.Add(1)

	return nil
}

// swap closes the current source and makes next current
func (r *Reader) swap(next Source) error {
	r.mu.Lock()
	if r.closed.Load() {
		r.mu.Unlock()
		next.Close()
		return ErrClosed
	}
	old := r.current
	r.current = next
	r.mu.Unlock()

	log.Printf("stream reader: closing %s, switching to %s", old.Name(), next.Name())
	if err := old.Close(); err != nil {
		log.Printf("stream reader: close %s: %v", old.Name(), err)
	}

	r.rewound = false
	r.rotations.Add(1)
	name := next.Name()
	r.currentName.Store(&name)

	return nil
}

// waitForSource blocks until something is enqueued or the reader closes
func (r *Reader) waitForSource() error {
	select {
	case <-r.chain.ready:
		return nil
	case <-r.done:
		return ErrClosed
	}
}

// Stats returns current counters
func (r *Reader) Stats() Stats {
	s := Stats{
		Items:     r.items.Load(),
		Rotations: r.rotations.Load(),
		Rewinds:   r.rewinds.Load(),
		Pending:   r.chain.len(),
	}
	if name := r.currentName.Load(); name != nil {
		s.Current = *name
	}
	return s
}

// Close closes the current source, unblocking an in-flight read, and every
// queued source. Safe to call more than once.
func (r *Reader) Close() error {
	var err error
	r.once.Do(func() {
		r.mu.Lock()
		r.closed.Store(true)
		current := r.current
		r.mu.Unlock()

		close(r.done)
		err = current.Close()

		for _, s := range r.chain.drain() {
			s.Close()
		}
	})
	return err
}
