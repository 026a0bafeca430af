// ABOUTME: Byte source abstraction for the stream reader
// ABOUTME: Wraps files and descriptors with an origin name for diagnostics
package stream

import (
	"fmt"
	"io"
	"os"
)

// Source is an open, seekable byte stream handed to the reader
type Source interface {
	io.Reader
	io.Seeker
	io.Closer

	// Name describes where the bytes come from
	Name() string
}

// FileSource reads from an *os.File
type FileSource struct {
	file *os.File
}

// NewFileSource wraps an already open file. The source takes ownership of f.
func NewFileSource(f *os.File) *FileSource {
	return &FileSource{file: f}
}

// OpenFile opens path read-only as a source
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	return &FileSource{file: f}, nil
}

func (s *FileSource) Read(p []byte) (int, error) { return s.file.Read(p) }
func (s *FileSource) Seek(offset int64, whence int) (int64, error) {
	return s.file.Seek(offset, whence)
}
func (s *FileSource) Close() error { return s.file.Close() }
func (s *FileSource) Name() string { return s.file.Name() }
