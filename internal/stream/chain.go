// ABOUTME: Pending source queue shared by the producer and the reader
// ABOUTME: The mutex only guards structural push/pop, never I/O
package stream

import "sync"

// chain is the FIFO of sources waiting to become current
type chain struct {
	mu      sync.Mutex
	pending []Source
	closed  bool

	// ready receives a token whenever a source is enqueued
	ready chan struct{}
}

func newChain() *chain {
	return &chain{ready: make(chan struct{}, 1)}
}

// push appends s. Returns false when the chain is already closed.
func (c *chain) push(s Source) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.pending = append(c.pending, s)
	c.mu.Unlock()

	select {
	case c.ready <- struct{}{}:
	default:
	}
	return true
}

// pop removes the oldest pending source
func (c *chain) pop() (Source, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) == 0 {
		return nil, false
	}
	s := c.pending[0]
	c.pending[0] = nil
	c.pending = c.pending[1:]
	return s, true
}

func (c *chain) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// drain marks the chain closed and hands back everything still queued
func (c *chain) drain() []Source {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	out := c.pending
	c.pending = nil
	return out
}
