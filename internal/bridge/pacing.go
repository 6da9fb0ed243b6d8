package bridge

import (
	"sync/atomic"
	"time"

	"github.com/tphakala/audiobridge/internal/conf"
)

// pacer is the background engine that re-slices staged input into the
// playback ring: preroll accumulation first, then steady-state headroom
// maintenance. All fields are owned by the pacing goroutine except the ones
// marked otherwise.
type pacer struct {
	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}

	// prerolled is cleared whenever the playback ring drains to empty, which
	// starts a new segment. Read by introspection.
	prerolled atomic.Bool

	// prerollsCompleted counts preroll -> steady transitions.
	prerollsCompleted atomic.Uint64

	// scratch carries bytes from the staging ring to the playback ring.
	// Sized to the playback ring capacity at open, so a move can never be
	// truncated by the scratch buffer.
	scratch []byte
}

// StartPacing spawns the pacing goroutine. A slice duration of zero or less
// falls back to the default slice; a negative preroll is treated as zero.
// Calling it while the engine is already running is a successful no-op.
func (s *Stream) StartPacing(slice, preroll time.Duration) error {
	if slice <= 0 {
		slice = conf.DefaultSliceMs * time.Millisecond
	}
	if preroll < 0 {
		preroll = 0
	}

	if !s.pacer.running.CompareAndSwap(false, true) {
		return nil // already running
	}

	s.pacer.stop = make(chan struct{})
	s.pacer.done = make(chan struct{})
	s.pacer.prerolled.Store(false)

	s.logger.Info("pacing started",
		"slice_ms", slice.Milliseconds(),
		"preroll_ms", preroll.Milliseconds())
	go s.paceLoop(slice, preroll)
	return nil
}

// StopPacing signals the pacing goroutine and waits for it to exit. Safe to
// call when the engine is not running.
func (s *Stream) StopPacing() {
	if !s.pacer.running.CompareAndSwap(true, false) {
		return
	}
	close(s.pacer.stop)
	<-s.pacer.done
	s.pacer.prerolled.Store(false)
	s.logger.Info("pacing stopped")
}

// paceLoop runs until stopped. Each wake it either works toward the preroll
// target or maintains steady-state headroom; a drained playback ring at the
// top of a wake starts a new segment and re-enters preroll.
func (s *Stream) paceLoop(slice, preroll time.Duration) {
	defer close(s.pacer.done)

	sliceBytes := s.durationBytes(slice)
	prerollBytes := s.durationBytes(preroll)

	for {
		select {
		case <-s.pacer.stop:
			return
		default:
		}

		if s.playback.Used() == 0 {
			if s.pacer.prerolled.CompareAndSwap(true, false) {
				s.logger.Debug("playback drained, re-entering preroll")
			}
		}

		if !s.pacer.prerolled.Load() {
			have := s.playback.Used()
			if have < prerollBytes {
				if s.moveToPlayback(prerollBytes-have) == 0 {
					// No input staged yet, wait one slice for more.
					if !s.sleep(slice) {
						return
					}
				}
				continue
			}
			s.pacer.prerolled.Store(true)
			s.pacer.prerollsCompleted.Add(1)
			continue
		}

		// Steady state: top up to the target occupancy, derived from the
		// configured headroom and the guarded maximum device pull, plus one
		// slice of cushion for our own scheduling jitter.
		level := s.playback.Used()
		desired := s.steadyTargetBytes(sliceBytes)
		if level < desired {
			if s.moveToPlayback(desired-level) == 0 {
				if !s.sleep(slice) {
					return
				}
			}
		}

		// Steady feed: up to one slice regardless of the top-up, so delivery
		// stays incremental rather than bursty.
		s.moveToPlayback(sliceBytes)

		if !s.sleep(slice) {
			return
		}
	}
}

// steadyTargetBytes returns the steady-state occupancy target.
func (s *Stream) steadyTargetBytes(sliceBytes int) int {
	target := int(s.headroomBytes.Load())
	if guard := int(float64(s.playback.MaxPull()) * s.guardMultiplier()); guard > target {
		target = guard
	}
	return target + sliceBytes
}

// moveToPlayback transfers up to n bytes from the staging ring to the
// playback ring, bounded by staging availability and playback free space,
// and returns the number of bytes moved. Pacing goroutine only.
func (s *Stream) moveToPlayback(n int) int {
	if n <= 0 {
		return 0
	}
	if free := s.playback.Free(); n > free {
		n = free
	}
	if n > len(s.pacer.scratch) {
		n = len(s.pacer.scratch)
	}
	if n == 0 {
		return 0
	}
	got := s.staging.Read(s.pacer.scratch[:n])
	if got == 0 {
		return 0
	}
	// Bounded by Free above, so this write never evicts.
	return s.playback.Write(s.pacer.scratch[:got])
}

// sleep waits for d or until the engine is stopped, reporting false on stop.
func (s *Stream) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-s.pacer.stop:
		return false
	case <-timer.C:
		return true
	}
}

// PacingActive reports whether the pacing goroutine is running.
func (s *Stream) PacingActive() bool {
	return s.pacer.running.Load()
}

// Prerolled reports whether the current segment has completed preroll.
func (s *Stream) Prerolled() bool {
	return s.pacer.prerolled.Load()
}
