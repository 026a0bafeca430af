//go:build !unix

// ABOUTME: Descriptor initial sources are unix only
// ABOUTME: Reports an error on other platforms
package iqsource

import (
	"errors"

	"github.com/Resonate-Protocol/iqsource/internal/stream"
)

func openDescriptor(fd int) (stream.Source, error) {
	return nil, errors.New("descriptor sources are only supported on unix")
}
