//go:build unix

// ABOUTME: Opens an externally supplied descriptor as the initial source
// ABOUTME: Wraps it in the unix descriptor source
package iqsource

import (
	"fmt"

	"github.com/Resonate-Protocol/iqsource/internal/stream"
)

func openDescriptor(fd int) (stream.Source, error) {
	if fd < 0 {
		return nil, fmt.Errorf("invalid descriptor %d", fd)
	}
	src, err := stream.NewFDSource(fd, "")
	if err != nil {
		return nil, err
	}
	return src, nil
}
