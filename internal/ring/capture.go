package ring

import "sync/atomic"

// CaptureRing carries echo-cancelled audio from the real-time input callback
// to the draining application. The producer is the device callback, so a
// write must always succeed in full: when free space is short the oldest
// unread bytes are evicted first. A slow consumer silently loses old audio
// rather than ever stalling the callback.
type CaptureRing struct {
	ring    Ring
	dropped atomic.Uint64
}

// NewCapture creates a capture ring with the given capacity in bytes.
func NewCapture(capacity int) (*CaptureRing, error) {
	r, err := New(capacity)
	if err != nil {
		return nil, err
	}
	return &CaptureRing{ring: *r}, nil
}

// Write copies all of p into the ring, evicting the oldest unread bytes when
// needed, and returns len(p). Real-time safe: no locks, no allocation.
// Producer goroutine only.
func (c *CaptureRing) Write(p []byte) int {
	c.dropped.Add(c.ring.writeEvicting(p))
	return len(p)
}

// Read copies up to len(p) of the oldest available bytes into p and returns
// the count. Tolerates concurrent eviction by the writer.
func (c *CaptureRing) Read(p []byte) int {
	return c.ring.readConcurrent(p)
}

// Used returns the number of unread bytes.
func (c *CaptureRing) Used() int {
	return c.ring.Used()
}

// Cap returns the ring capacity in bytes.
func (c *CaptureRing) Cap() int {
	return c.ring.Cap()
}

// Dropped returns the total number of bytes evicted unread since creation.
func (c *CaptureRing) Dropped() uint64 {
	return c.dropped.Load()
}

// ResetDropped clears the dropped-bytes counter.
func (c *CaptureRing) ResetDropped() {
	c.dropped.Store(0)
}
