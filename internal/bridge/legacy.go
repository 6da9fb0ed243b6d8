package bridge

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/tphakala/audiobridge/internal/errors"
)

// The blocking record/play convenience calls predate the pacing engine. They
// share the real-time callbacks with the streaming path but run on simple
// one-shot buffers and a timer instead of the rings.

// captureSink is a preallocated one-shot buffer the input callback appends
// into while a blocking record is armed. The callback is the only writer;
// length is published atomically so the control goroutine can poll it.
type captureSink struct {
	buf []byte
	n   atomic.Int64
}

// append copies as much of p as still fits. Called from the real-time input
// callback; never allocates.
func (cs *captureSink) append(p []byte) {
	n := cs.n.Load()
	room := int64(len(cs.buf)) - n
	if room <= 0 {
		return
	}
	if int64(len(p)) > room {
		p = p[:room]
	}
	copy(cs.buf[n:], p)
	cs.n.Store(n + int64(len(p)))
}

// oneShotPlayback is an in-memory buffer consumed by the output callback in
// play mode. The callback is the only writer of off.
type oneShotPlayback struct {
	buf []byte
	off atomic.Int64
}

// render copies the next chunk into dst, zero-filling past the end of the
// buffer. Called from the real-time output callback.
func (os *oneShotPlayback) render(dst []byte) {
	off := os.off.Load()
	remaining := int64(len(os.buf)) - off
	var n int64
	if remaining > 0 {
		n = int64(len(dst))
		if n > remaining {
			n = remaining
		}
		copy(dst, os.buf[off:off+n])
		os.off.Store(off + n)
	}
	clear(dst[n:])
}

// finished reports whether the whole buffer has been rendered.
func (os *oneShotPlayback) finished() bool {
	return os.off.Load() >= int64(len(os.buf))
}

// RecordBlocking captures exactly d worth of audio into a preallocated
// buffer and returns it. Streaming capture continues alongside; the sink
// taps the same callback. Returns early with the audio captured so far if
// ctx is cancelled.
func (s *Stream) RecordBlocking(ctx context.Context, d time.Duration) ([]byte, error) {
	if s.closed.Load() {
		return nil, errors.Newf("stream closed").
			Component("bridge").
			Category(errors.CategoryState).
			Build()
	}
	want := s.durationBytes(d)
	if want <= 0 {
		return nil, errors.Newf("invalid record duration %v", d).
			Component("bridge").
			Category(errors.CategoryValidation).
			Context("duration", d.String()).
			Build()
	}

	sink := &captureSink{buf: make([]byte, want)}
	if !s.captureSink.CompareAndSwap(nil, sink) {
		return nil, errors.Newf("blocking record already in progress").
			Component("bridge").
			Category(errors.CategoryState).
			Build()
	}
	defer s.captureSink.Store(nil)

	// Poll at the legacy 10 ms cadence until the sink fills or the caller
	// gives up.
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.NewTimer(d + 500*time.Millisecond)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return sink.buf[:sink.n.Load()], ctx.Err()
		case <-deadline.C:
			return sink.buf[:sink.n.Load()], nil
		case <-ticker.C:
			if n := sink.n.Load(); n >= int64(want) {
				return sink.buf[:n], nil
			}
		}
	}
}

// PlayBlocking plays pcm through the output callback using a one-shot buffer
// and returns when it has been rendered. The stream runs in play mode for
// the duration and returns to record mode afterwards, so the pacing rings
// are untouched.
func (s *Stream) PlayBlocking(ctx context.Context, pcm []byte) error {
	if s.closed.Load() {
		return errors.Newf("stream closed").
			Component("bridge").
			Category(errors.CategoryState).
			Build()
	}
	if len(pcm) == 0 {
		return nil
	}

	shot := &oneShotPlayback{buf: pcm}
	if !s.oneShotPlay.CompareAndSwap(nil, shot) {
		return errors.Newf("blocking playback already in progress").
			Component("bridge").
			Category(errors.CategoryState).
			Build()
	}
	prev := s.mode.Swap(int32(ModePlay))
	defer func() {
		s.mode.Store(prev)
		s.oneShotPlay.Store(nil)
	}()

	duration := time.Duration(len(pcm)/s.bytesPerMs()) * time.Millisecond

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.NewTimer(duration + 500*time.Millisecond)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return nil
		case <-ticker.C:
			if shot.finished() {
				return nil
			}
		}
	}
}
