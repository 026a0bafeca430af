// ABOUTME: In-memory Source fakes for reader tests
// ABOUTME: Simulate short reads, injected read errors and seek failures
package stream

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

var errSeek = errors.New("illegal seek")

type fakeSource struct {
	name   string
	data   *bytes.Reader
	chunk  int     // max bytes per Read, 0 = unlimited
	errs   []error // consumed one per Read before reading data
	noSeek bool
	onSeek func() // runs before every Seek

	mu     sync.Mutex
	closed bool
}

func newFake(name string, data []byte) *fakeSource {
	return &fakeSource{name: name, data: bytes.NewReader(data)}
}

func (f *fakeSource) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, errors.New("read on closed source")
	}
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return 0, err
		}
	}
	if f.chunk > 0 && len(p) > f.chunk {
		p = p[:f.chunk]
	}
	return f.data.Read(p)
}

func (f *fakeSource) Seek(offset int64, whence int) (int64, error) {
	if f.onSeek != nil {
		f.onSeek()
	}
	if f.noSeek {
		return 0, errSeek
	}
	return f.data.Seek(offset, whence)
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// sequence returns n bytes counting up from start
func sequence(start, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(start + i)
	}
	return out
}

var _ io.ReadSeekCloser = (*fakeSource)(nil)
