// ABOUTME: Partial-item carry buffer for the stream reader
// ABOUTME: Holds fewer than itemSize bytes between reads
package stream

// residue keeps the tail of a read that did not end on an item boundary
type residue struct {
	buf []byte
	n   int
}

func newResidue(itemSize int) residue {
	return residue{buf: make([]byte, itemSize)}
}

// drainTo copies the carried bytes to the front of dst and empties the buffer
func (r *residue) drainTo(dst []byte) int {
	n := copy(dst, r.buf[:r.n])
	r.n = 0
	return n
}

// capture splits the first total bytes of buf into whole items and keeps the
// remainder. Returns the whole item count.
func (r *residue) capture(buf []byte, total, itemSize int) int {
	items := total / itemSize
	r.n = total % itemSize
	if r.n > 0 {
		copy(r.buf, buf[total-r.n:total])
	}
	return items
}

func (r *residue) flush() { r.n = 0 }

func (r *residue) len() int { return r.n }
