package ring

import (
	"sync/atomic"

	"github.com/tphakala/audiobridge/internal/errors"
)

// Ring is a lock-free single-producer, single-consumer byte ring buffer.
//
// It uses two monotonically increasing atomic counters. Wrap-around is
// computed by taking a counter modulo the capacity at copy time; the counters
// themselves never wrap within the lifetime of a stream (a uint64 at audio
// byte rates outlives any process). Capacity is taken as given, not rounded
// to a power of two, so indexing divides instead of masking.
//
// The producer stores the write counter after copying data in; the consumer
// loads it before copying data out. Go's sync/atomic gives sequentially
// consistent ordering, so the consumer never observes bytes that are not yet
// fully written.
//
// Thread assignment:
//   - Write, Free: producer goroutine only
//   - Read: consumer goroutine only
//   - Used, Cap: any goroutine, value is a snapshot
type Ring struct {
	// Counters sit on separate cache lines to prevent false sharing
	// between the producer and consumer cores.
	writePos atomic.Uint64
	_        [56]byte
	readPos  atomic.Uint64
	_        [56]byte

	buf []byte
}

// New creates a ring buffer with exactly the given capacity in bytes.
func New(capacity int) (*Ring, error) {
	if capacity <= 0 {
		return nil, errors.Newf("invalid ring capacity: %d", capacity).
			Component("ring").
			Category(errors.CategoryValidation).
			Context("capacity", capacity).
			Build()
	}
	return &Ring{buf: make([]byte, capacity)}, nil
}

// Cap returns the fixed capacity in bytes.
func (rb *Ring) Cap() int {
	return len(rb.buf)
}

// Used returns the number of unread bytes. The read counter is loaded first
// so a concurrent reader can only make the snapshot smaller, never negative.
func (rb *Ring) Used() int {
	r := rb.readPos.Load()
	w := rb.writePos.Load()
	return int(w - r)
}

// Free returns the number of bytes available to write.
func (rb *Ring) Free() int {
	return len(rb.buf) - rb.Used()
}

// Write copies up to len(p) bytes into the buffer and returns the number of
// bytes written. Non-blocking, never allocates. Producer goroutine only.
func (rb *Ring) Write(p []byte) int {
	w := rb.writePos.Load()
	r := rb.readPos.Load()

	free := uint64(len(rb.buf)) - (w - r)
	if free == 0 {
		return 0
	}

	n := uint64(len(p))
	if n > free {
		n = free
	}
	if n == 0 {
		return 0
	}

	rb.copyIn(w, p[:n])
	rb.writePos.Store(w + n)
	return int(n)
}

// Read copies up to len(p) bytes from the buffer and returns the number of
// bytes read. Non-blocking, never allocates. Consumer goroutine only.
func (rb *Ring) Read(p []byte) int {
	r := rb.readPos.Load()
	w := rb.writePos.Load()

	available := w - r
	if available == 0 {
		return 0
	}

	n := uint64(len(p))
	if n > available {
		n = available
	}
	if n == 0 {
		return 0
	}

	rb.copyOut(r, p[:n])
	rb.readPos.Store(r + n)
	return int(n)
}

// copyIn copies p into the buffer starting at counter position at,
// splitting in two when the copy straddles the capacity boundary.
// len(p) must not exceed the capacity.
func (rb *Ring) copyIn(at uint64, p []byte) {
	capacity := uint64(len(rb.buf))
	pos := at % capacity
	first := capacity - pos
	n := uint64(len(p))
	if first >= n {
		copy(rb.buf[pos:pos+n], p)
	} else {
		copy(rb.buf[pos:], p[:first])
		copy(rb.buf[:n-first], p[first:])
	}
}

// copyOut copies from the buffer starting at counter position at into p,
// splitting in two when the copy straddles the capacity boundary.
// len(p) must not exceed the capacity.
func (rb *Ring) copyOut(at uint64, p []byte) {
	capacity := uint64(len(rb.buf))
	pos := at % capacity
	first := capacity - pos
	n := uint64(len(p))
	if first >= n {
		copy(p, rb.buf[pos:pos+n])
	} else {
		copy(p[:first], rb.buf[pos:])
		copy(p[first:], rb.buf[:n-first])
	}
}

// writeEvicting writes all of p, discarding the oldest unread bytes first when
// free space is short. The read counter is advanced with compare-and-swap so a
// concurrent reader never un-advances it. Returns the number of bytes evicted
// unread. Producer goroutine only.
func (rb *Ring) writeEvicting(p []byte) uint64 {
	n := uint64(len(p))
	if n == 0 {
		return 0
	}
	capacity := uint64(len(rb.buf))
	w := rb.writePos.Load()

	var dropped uint64
	if n >= capacity {
		// Only the tail of p survives. Drop everything unread, then let the
		// leading n-capacity bytes of p count as evicted without copying them.
		for {
			r := rb.readPos.Load()
			used := w - r
			if used == 0 {
				break
			}
			if rb.readPos.CompareAndSwap(r, w) {
				dropped += used
				break
			}
		}
		dropped += n - capacity
		rb.copyIn(w, p[n-capacity:])
		rb.writePos.Store(w + capacity)
		return dropped
	}

	for {
		r := rb.readPos.Load()
		free := capacity - (w - r)
		if n <= free {
			break
		}
		deficit := n - free
		if rb.readPos.CompareAndSwap(r, r+deficit) {
			dropped = deficit
			break
		}
	}
	rb.copyIn(w, p)
	rb.writePos.Store(w + n)
	return dropped
}

// readConcurrent copies up to len(p) bytes out while tolerating an evicting
// writer. If the writer advanced the read counter mid-copy the stale copy is
// discarded and retried against the fresh counter.
func (rb *Ring) readConcurrent(p []byte) int {
	for {
		r := rb.readPos.Load()
		w := rb.writePos.Load()

		available := w - r
		if available == 0 {
			return 0
		}

		n := uint64(len(p))
		if n > available {
			n = available
		}
		if n == 0 {
			return 0
		}

		rb.copyOut(r, p[:n])
		if rb.readPos.CompareAndSwap(r, r+n) {
			return int(n)
		}
	}
}

// flush advances the read counter to the write counter, discarding all unread
// bytes. Safe against a concurrent reader or evicting writer.
func (rb *Ring) flush() {
	for {
		w := rb.writePos.Load()
		r := rb.readPos.Load()
		if r == w {
			return
		}
		if rb.readPos.CompareAndSwap(r, w) {
			return
		}
	}
}
