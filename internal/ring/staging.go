package ring

import (
	"sync"
	"sync/atomic"

	"github.com/tphakala/audiobridge/internal/errors"
)

// StagingRing accepts coarse input frames from the feeding application and is
// drained by the pacing engine in device-sized slices. Unlike the capture and
// playback rings it grows instead of evicting: a write that finds too little
// free space reallocates the buffer first, so input frames are always
// accepted in full. Every operation holds the same mutex, which is what makes
// growth safe against the concurrent drain; neither side runs in a real-time
// callback, so the lock is acceptable here.
type StagingRing struct {
	mu       sync.Mutex
	buf      []byte
	writePos uint64
	readPos  uint64

	grows atomic.Uint64
}

// NewStaging creates a staging ring with the given initial capacity in bytes.
func NewStaging(capacity int) (*StagingRing, error) {
	if capacity <= 0 {
		return nil, errors.Newf("invalid staging capacity: %d", capacity).
			Component("ring").
			Category(errors.CategoryValidation).
			Context("capacity", capacity).
			Build()
	}
	return &StagingRing{buf: make([]byte, capacity)}, nil
}

// Write copies all of p into the ring, growing the buffer first when free
// space is short, and returns len(p). Growth never discards buffered bytes.
func (s *StagingRing) Write(p []byte) int {
	n := uint64(len(p))
	if n == 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	used := s.writePos - s.readPos
	if free := uint64(len(s.buf)) - used; n > free {
		s.grow(used + n)
	}
	s.copyIn(s.writePos, p)
	s.writePos += n
	return int(n)
}

// grow reallocates to at least need bytes, rounded up to 1.5x need or double
// the current capacity, whichever is larger. Unread bytes move to offset 0
// and the counters restart from there. Caller holds the mutex.
func (s *StagingRing) grow(need uint64) {
	newCap := (3*need + 1) / 2
	if d := 2 * uint64(len(s.buf)); d > newCap {
		newCap = d
	}

	used := s.writePos - s.readPos
	newBuf := make([]byte, newCap)
	s.copyOut(s.readPos, newBuf[:used])
	s.buf = newBuf
	s.readPos = 0
	s.writePos = used
	s.grows.Add(1)
}

// Read copies up to len(p) of the oldest buffered bytes into p and returns
// the count.
func (s *StagingRing) Read(p []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	available := s.writePos - s.readPos
	n := uint64(len(p))
	if n > available {
		n = available
	}
	if n == 0 {
		return 0
	}
	s.copyOut(s.readPos, p[:n])
	s.readPos += n
	return int(n)
}

// Flush discards all buffered bytes. Capacity is retained.
func (s *StagingRing) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readPos = s.writePos
}

// Used returns the number of buffered bytes.
func (s *StagingRing) Used() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.writePos - s.readPos)
}

// Cap returns the current capacity in bytes. It only ever increases.
func (s *StagingRing) Cap() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// Grows returns how many times the buffer has been reallocated.
func (s *StagingRing) Grows() uint64 {
	return s.grows.Load()
}

func (s *StagingRing) copyIn(at uint64, p []byte) {
	capacity := uint64(len(s.buf))
	pos := at % capacity
	first := capacity - pos
	n := uint64(len(p))
	if first >= n {
		copy(s.buf[pos:pos+n], p)
	} else {
		copy(s.buf[pos:], p[:first])
		copy(s.buf[:n-first], p[first:])
	}
}

func (s *StagingRing) copyOut(at uint64, p []byte) {
	capacity := uint64(len(s.buf))
	pos := at % capacity
	first := capacity - pos
	n := uint64(len(p))
	if first >= n {
		copy(p, s.buf[pos:pos+n])
	} else {
		copy(p[:first], s.buf[pos:])
		copy(p[first:], s.buf[:n-first])
	}
}
