// ABOUTME: Tests for the streaming reader
// ABOUTME: Covers residue carry, short reads, rotation, rewind and shutdown
package stream

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"os"
	"sync"
	"testing"
	"time"
)

func TestNewReader(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		src       Source
		expectErr bool
	}{
		{name: "valid", cfg: Config{ItemSize: 8}, src: newFake("a", nil)},
		{name: "zero item size", cfg: Config{ItemSize: 0}, src: newFake("a", nil), expectErr: true},
		{name: "negative item size", cfg: Config{ItemSize: -4}, src: newFake("a", nil), expectErr: true},
		{name: "missing source", cfg: Config{ItemSize: 8}, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewReader(tt.cfg, tt.src)
			if tt.expectErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.ItemSize() != tt.cfg.ItemSize {
				t.Errorf("expected item size %d, got %d", tt.cfg.ItemSize, r.ItemSize())
			}
		})
	}
}

func TestReadItemsResidueCorrectness(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	data := sequence(0, 997)

	for itemSize := 1; itemSize <= 9; itemSize++ {
		for trial := 0; trial < 20; trial++ {
			src := newFake("seq", data)
			src.chunk = 1 + rng.Intn(13)

			r, err := NewReader(Config{ItemSize: itemSize}, src)
			if err != nil {
				t.Fatalf("NewReader failed: %v", err)
			}

			var got []byte
			for {
				capacity := 1 + rng.Intn(7)
				buf := make([]byte, capacity*itemSize)
				n, err := r.ReadItems(buf)
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					t.Fatalf("item size %d: unexpected error: %v", itemSize, err)
				}
				if n == 0 || n > capacity {
					t.Fatalf("item size %d: invalid item count %d for capacity %d", itemSize, n, capacity)
				}
				got = append(got, buf[:n*itemSize]...)
			}

			whole := len(data) / itemSize * itemSize
			if !bytes.Equal(got, data[:whole]) {
				t.Fatalf("item size %d chunk %d: delivered bytes differ from source", itemSize, src.chunk)
			}
			if r.res.len() != len(data)-whole {
				t.Fatalf("item size %d: expected residue %d, got %d", itemSize, len(data)-whole, r.res.len())
			}
		}
	}
}

func TestReadItemsBlocksUntilWholeItem(t *testing.T) {
	src := newFake("slow", sequence(10, 16))
	src.chunk = 1

	r, _ := NewReader(Config{ItemSize: 8}, src)

	buf := make([]byte, 8)
	n, err := r.ReadItems(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 item, got %d", n)
	}
	if !bytes.Equal(buf, sequence(10, 8)) {
		t.Errorf("unexpected item: % x", buf)
	}
}

func TestReadItemsZeroCapacity(t *testing.T) {
	r, _ := NewReader(Config{ItemSize: 8}, newFake("a", sequence(0, 8)))

	if _, err := r.ReadItems(make([]byte, 7)); err == nil {
		t.Error("expected error for buffer smaller than one item")
	}
}

func TestReadItemsErrorKeepsPrefix(t *testing.T) {
	boom := errors.New("device error")
	src := newFake("flaky", sequence(0, 8))
	src.chunk = 3
	src.errs = []error{nil, boom}

	r, _ := NewReader(Config{ItemSize: 4}, src)
	buf := make([]byte, 8)

	if _, err := r.ReadItems(buf); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if r.res.len() != 3 {
		t.Fatalf("expected 3 carried bytes, got %d", r.res.len())
	}

	n, err := r.ReadItems(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 item, got %d", n)
	}
	if !bytes.Equal(buf[:4], sequence(0, 4)) {
		t.Errorf("carried prefix lost: % x", buf[:4])
	}
}

func TestWorkRotatesToPendingSource(t *testing.T) {
	a := newFake("a", sequence(0, 8))
	b := newFake("b", sequence(100, 8))

	r, _ := NewReader(Config{ItemSize: 4, Repeat: true}, a)
	if err := r.Enqueue(b); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	got := readItems(t, r, 4, 4)

	want := append(sequence(0, 8), sequence(100, 8)...)
	if !bytes.Equal(got, want) {
		t.Errorf("expected % x, got % x", want, got)
	}
	if !a.isClosed() {
		t.Error("exhausted source should be closed after rotation")
	}

	stats := r.Stats()
	if stats.Rotations != 1 {
		t.Errorf("expected 1 rotation, got %d", stats.Rotations)
	}
	if stats.Current != "b" {
		t.Errorf("expected current source b, got %q", stats.Current)
	}
	if stats.Items != 4 {
		t.Errorf("expected 4 items, got %d", stats.Items)
	}
}

func TestWorkRotationCarriesResidue(t *testing.T) {
	a := newFake("a", sequence(0, 6))
	b := newFake("b", sequence(6, 2))

	r, _ := NewReader(Config{ItemSize: 4, Repeat: true}, a)
	r.Enqueue(b)

	got := readItems(t, r, 4, 2)
	if !bytes.Equal(got, sequence(0, 8)) {
		t.Errorf("expected contiguous bytes across sources, got % x", got)
	}
}

func TestWorkRewindReplaysSource(t *testing.T) {
	data := sequence(0, 12)
	r, _ := NewReader(Config{ItemSize: 4, Repeat: true}, newFake("a", data))

	got := readItems(t, r, 4, 6)

	want := append(append([]byte{}, data...), data...)
	if !bytes.Equal(got, want) {
		t.Errorf("second pass differs from first: % x", got)
	}
	if r.Stats().Rewinds != 1 {
		t.Errorf("expected 1 rewind, got %d", r.Stats().Rewinds)
	}
}

func TestWorkRewindFlushesResidue(t *testing.T) {
	// 10 bytes with 4-byte items leaves 2 dangling bytes that must be dropped
	r, _ := NewReader(Config{ItemSize: 4, Repeat: true}, newFake("a", sequence(0, 10)))

	got := readItems(t, r, 4, 4)

	want := append(sequence(0, 8), sequence(0, 8)...)
	if !bytes.Equal(got, want) {
		t.Errorf("expected % x, got % x", want, got)
	}
}

func TestWorkSeekFailureIsFatal(t *testing.T) {
	src := newFake("pipe", sequence(0, 4))
	src.noSeek = true

	r, _ := NewReader(Config{ItemSize: 4, Repeat: true}, src)
	buf := make([]byte, 4)

	if _, err := r.Work(buf); err != nil {
		t.Fatalf("first Work failed: %v", err)
	}
	if _, err := r.Work(buf); !errors.Is(err, errSeek) {
		t.Fatalf("expected seek error, got %v", err)
	}
}

func TestWorkSeekFailureAfterCloseIsClosed(t *testing.T) {
	src := newFake("a", sequence(0, 4))
	src.noSeek = true

	r, _ := NewReader(Config{ItemSize: 4, Repeat: true}, src)
	src.onSeek = func() { r.Close() }
	buf := make([]byte, 4)

	if _, err := r.Work(buf); err != nil {
		t.Fatalf("first Work failed: %v", err)
	}
	if _, err := r.Work(buf); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed when Close lands during a rewind, got %v", err)
	}
}

func TestWorkReadFailureIsFatal(t *testing.T) {
	boom := errors.New("io failure")
	src := newFake("bad", nil)
	src.errs = []error{boom}

	r, _ := NewReader(Config{ItemSize: 4, Repeat: true}, src)

	if _, err := r.Work(make([]byte, 4)); !errors.Is(err, boom) {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestWorkWithoutRepeatWaitsForSource(t *testing.T) {
	r, _ := NewReader(Config{ItemSize: 4, Repeat: false}, newFake("a", sequence(0, 4)))
	buf := make([]byte, 4)

	if _, err := r.Work(buf); err != nil {
		t.Fatalf("first Work failed: %v", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		r.Enqueue(newFake("b", sequence(50, 4)))
	}()

	n, err := r.Work(buf)
	if err != nil {
		t.Fatalf("Work failed: %v", err)
	}
	if n != 1 || !bytes.Equal(buf, sequence(50, 4)) {
		t.Errorf("expected item from b, got %d items % x", n, buf)
	}
	if r.Stats().Rewinds != 0 {
		t.Error("reader without repeat must not rewind")
	}
}

func TestWorkEmptySourceDoesNotSpin(t *testing.T) {
	r, _ := NewReader(Config{ItemSize: 4, Repeat: true}, newFake("empty", nil))

	done := make(chan error, 1)
	go func() {
		_, err := r.Work(make([]byte, 4))
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for r.Stats().Rewinds == 0 {
		if time.Now().After(deadline) {
			t.Fatal("empty source was never rewound")
		}
		time.Sleep(5 * time.Millisecond)
	}
	r.Enqueue(newFake("b", sequence(0, 4)))

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Work did not pick up the enqueued source")
	}

	if rewinds := r.Stats().Rewinds; rewinds != 1 {
		t.Errorf("expected a single rewind of the empty source, got %d", rewinds)
	}
}

func TestCloseUnblocksWork(t *testing.T) {
	pr, pw, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe failed: %v", err)
	}
	defer pw.Close()

	r, _ := NewReader(Config{ItemSize: 8, Repeat: true}, NewFileSource(pr))

	done := make(chan error, 1)
	go func() {
		_, err := r.Work(make([]byte, 64))
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	r.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Work still blocked after Close")
	}
}

func TestCloseReleasesPendingSources(t *testing.T) {
	a := newFake("a", sequence(0, 4))
	b := newFake("b", sequence(0, 4))
	c := newFake("c", sequence(0, 4))

	r, _ := NewReader(Config{ItemSize: 4}, a)
	r.Enqueue(b)

	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	if !a.isClosed() || !b.isClosed() {
		t.Error("current and pending sources should be closed")
	}

	if err := r.Enqueue(c); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from Enqueue, got %v", err)
	}
	if !c.isClosed() {
		t.Error("source enqueued after Close should be closed")
	}

	if _, err := r.Work(make([]byte, 4)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from Work, got %v", err)
	}
}

func TestConcurrentProducerConsumer(t *testing.T) {
	const sources = 200
	const itemSize = 8

	r, _ := NewReader(Config{ItemSize: itemSize, Repeat: false}, newFake("initial", sequence(0, itemSize)))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= sources; i++ {
			src := newFake("gen", bytes.Repeat([]byte{byte(i)}, itemSize))
			src.chunk = 1 + i%5
			if err := r.Enqueue(src); err != nil {
				t.Errorf("Enqueue failed: %v", err)
				return
			}
		}
	}()

	buf := make([]byte, 3*itemSize)
	var got []byte
	for len(got) < (sources+1)*itemSize {
		n, err := r.Work(buf)
		if err != nil {
			t.Fatalf("Work failed: %v", err)
		}
		got = append(got, buf[:n*itemSize]...)
	}
	wg.Wait()

	if !bytes.Equal(got[:itemSize], sequence(0, itemSize)) {
		t.Fatalf("initial source not delivered first")
	}
	for i := 1; i <= sources; i++ {
		item := got[i*itemSize : (i+1)*itemSize]
		if !bytes.Equal(item, bytes.Repeat([]byte{byte(i)}, itemSize)) {
			t.Fatalf("source %d delivered out of order: % x", i, item)
		}
	}

	if stats := r.Stats(); stats.Rotations != sources {
		t.Errorf("expected %d rotations, got %d", sources, stats.Rotations)
	}
	r.Close()
}

// readItems calls Work until count items of itemSize have been collected
func readItems(t *testing.T, r *Reader, itemSize, count int) []byte {
	t.Helper()

	var out []byte
	buf := make([]byte, itemSize)
	for i := 0; i < count; i++ {
		n, err := r.Work(buf)
		if err != nil {
			t.Fatalf("Work failed after %d items: %v", i, err)
		}
		if n != 1 {
			t.Fatalf("expected 1 item, got %d", n)
		}
		out = append(out, buf...)
	}
	return out
}
