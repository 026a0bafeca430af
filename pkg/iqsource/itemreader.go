// ABOUTME: io.Reader adapter over the block's item pull interface
// ABOUTME: Lets byte-oriented hosts like io.Copy drain whole items
package iqsource

import "io"

// Puller is anything that fills a buffer with whole items
type Puller interface {
	Work(dst []byte) (int, error)
	ItemSize() int
}

// DefaultBatch is the item count pulled per Work call by an ItemReader
const DefaultBatch = 4096

// ItemReader exposes a Puller as an io.Reader. Pulled items are buffered
// and handed out in order, so a short p never splits the byte stream.
type ItemReader struct {
	src  Puller
	buf  []byte
	off  int
	size int
}

// NewItemReader wraps src, pulling up to batch items at a time (default DefaultBatch)
func NewItemReader(src Puller, batch int) *ItemReader {
	if batch <= 0 {
		batch = DefaultBatch
	}
	return &ItemReader{
		src: src,
		buf: make([]byte, batch*src.ItemSize()),
	}
}

func (r *ItemReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	if r.off == r.size {
		items, err := r.src.Work(r.buf)
		if err != nil {
			return 0, err
		}
		if items == 0 {
			return 0, io.EOF
		}
		r.off = 0
		r.size = items * r.src.ItemSize()
	}

	n := copy(p, r.buf[r.off:r.size])
	r.off += n
	return n, nil
}
