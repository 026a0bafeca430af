//go:build !unix

// ABOUTME: Descriptor sources are unavailable off unix
// ABOUTME: Interrupted reads never occur there
package stream

func isInterrupted(err error) bool { return false }
