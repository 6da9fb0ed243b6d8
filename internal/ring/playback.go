package ring

import "sync/atomic"

const (
	// The decaying maximum pull size loses ~2% every decayInterval pulls so
	// one anomalous large pull cannot inflate the pacing headroom forever.
	decayInterval = 100
	decayDivisor  = 50
)

// PlaybackRing feeds the real-time output callback. The consumer is the
// device: a pull that finds too little data copies what exists, fills the
// rest with silence and counts an underflow. Each pull also records the
// requested size and maintains a decaying maximum of it, which the pacing
// engine reads to size its headroom. The producer side evicts oldest on
// overflow, mirroring the capture ring.
type PlaybackRing struct {
	ring    Ring
	dropped atomic.Uint64

	// Written only by the pulling callback, read by the pacing engine.
	underflows atomic.Uint64
	lastPull   atomic.Uint64
	maxPull    atomic.Uint64
	pullCount  atomic.Uint64
}

// NewPlayback creates a playback ring with the given capacity in bytes.
func NewPlayback(capacity int) (*PlaybackRing, error) {
	r, err := New(capacity)
	if err != nil {
		return nil, err
	}
	return &PlaybackRing{ring: *r}, nil
}

// Write copies all of p into the ring, evicting the oldest unread bytes when
// needed, and returns len(p). Producer goroutine only.
func (pb *PlaybackRing) Write(p []byte) int {
	pb.dropped.Add(pb.ring.writeEvicting(p))
	return len(p)
}

// Pull fills dst from the ring for the output callback. Bytes beyond what is
// available come out as silence and count one underflow. Returns the number
// of real audio bytes copied. Real-time safe: no locks, no allocation.
// Consumer goroutine only.
func (pb *PlaybackRing) Pull(dst []byte) int {
	want := uint64(len(dst))
	if want == 0 {
		return 0
	}
	pb.recordPull(want)

	got := uint64(pb.ring.readConcurrent(dst))
	if got < want {
		clear(dst[got:])
		pb.underflows.Add(1)
	}
	return int(got)
}

// RecordPull notes a device pull of n bytes that was serviced from somewhere
// other than the ring, keeping the pull-size statistics honest while a legacy
// one-shot buffer feeds the callback. Consumer goroutine only.
func (pb *PlaybackRing) RecordPull(n int) {
	if n > 0 {
		pb.recordPull(uint64(n))
	}
}

// recordPull updates the last and decaying maximum pull sizes.
func (pb *PlaybackRing) recordPull(want uint64) {
	pb.lastPull.Store(want)
	if want > pb.maxPull.Load() {
		pb.maxPull.Store(want)
	}
	if pb.pullCount.Add(1)%decayInterval == 0 {
		m := pb.maxPull.Load()
		m -= m / decayDivisor
		if m < want {
			m = want
		}
		pb.maxPull.Store(m)
	}
}

// Used returns the number of unread bytes.
func (pb *PlaybackRing) Used() int {
	return pb.ring.Used()
}

// Cap returns the ring capacity in bytes.
func (pb *PlaybackRing) Cap() int {
	return pb.ring.Cap()
}

// Free returns the number of bytes writable without eviction.
func (pb *PlaybackRing) Free() int {
	return pb.ring.Free()
}

// Flush discards all unread bytes; the next pull starts from silence.
func (pb *PlaybackRing) Flush() {
	pb.ring.flush()
}

// Underflows returns the number of pulls that found too little data.
func (pb *PlaybackRing) Underflows() uint64 {
	return pb.underflows.Load()
}

// ResetUnderflows clears the underflow counter.
func (pb *PlaybackRing) ResetUnderflows() {
	pb.underflows.Store(0)
}

// LastPull returns the size in bytes of the most recent device pull.
func (pb *PlaybackRing) LastPull() int {
	return int(pb.lastPull.Load())
}

// MaxPull returns the decaying maximum device pull size in bytes.
func (pb *PlaybackRing) MaxPull() int {
	return int(pb.maxPull.Load())
}

// Dropped returns the total number of bytes evicted unread since creation.
func (pb *PlaybackRing) Dropped() uint64 {
	return pb.dropped.Load()
}

// ResetDropped clears the dropped-bytes counter.
func (pb *PlaybackRing) ResetDropped() {
	pb.dropped.Store(0)
}
