package core

import "sync"

// SeqCounter issues strictly increasing, gap-free sequence numbers for one
// run, starting at 0. Exactly one counter exists per run and is injected
// into every component that appends events for that run, so concurrent
// writers serialize sequence assignment through it.
type SeqCounter struct {
	mu   sync.Mutex
	next int64
}

// NewSeqCounter returns a counter whose first Next call yields 0.
func NewSeqCounter() *SeqCounter { return &SeqCounter{} }

// Next reserves and returns the next sequence number.
func (c *SeqCounter) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.next
	c.next++
	return v
}

// Issued returns how many sequence numbers have been handed out.
func (c *SeqCounter) Issued() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next
}
