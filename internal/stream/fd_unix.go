//go:build unix

// ABOUTME: Raw file descriptor source for inherited pipes, FIFOs and files
// ABOUTME: Puts the descriptor on the runtime poller so Close wakes a blocked read
package stream

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// FDSource reads from an inherited OS file descriptor.
//
// The descriptor is switched to non-blocking mode before it is wrapped, so
// reads park on the runtime poller instead of in read(2). Closing the source
// then unblocks a pending read with os.ErrClosed. Regular files cannot be
// polled and keep plain blocking reads, which always complete.
type FDSource struct {
	file *os.File
	name string
}

// NewFDSource takes ownership of fd. The non-blocking flag is set on the
// open file description, so it is visible to other holders of the same
// description.
func NewFDSource(fd int, name string) (*FDSource, error) {
	if name == "" {
		name = fmt.Sprintf("fd:%d", fd)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("set non-blocking on %s: %w", name, err)
	}

	file := os.NewFile(uintptr(fd), name)
	if file == nil {
		return nil, fmt.Errorf("invalid descriptor %d", fd)
	}
	return &FDSource{file: file, name: name}, nil
}

// Read issues a single read. End of stream is io.EOF; a read cut short by
// Close returns os.ErrClosed.
func (s *FDSource) Read(p []byte) (int, error) {
	return s.file.Read(p)
}

func (s *FDSource) Seek(offset int64, whence int) (int64, error) {
	return s.file.Seek(offset, whence)
}

// Close releases the descriptor. Later calls are no-ops.
func (s *FDSource) Close() error {
	if err := s.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}

func (s *FDSource) Name() string { return s.name }

// isInterrupted reports whether a read failed only because a signal arrived
func isInterrupted(err error) bool {
	return errors.Is(err, unix.EINTR)
}
