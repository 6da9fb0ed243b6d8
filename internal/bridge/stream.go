package bridge

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/audiobridge/internal/conf"
	"github.com/tphakala/audiobridge/internal/errors"
	"github.com/tphakala/audiobridge/internal/logging"
	"github.com/tphakala/audiobridge/internal/ring"
)

// Mode describes which real-time callback behavior is active. It gates the
// callbacks only; the streaming rings stay live once the stream is open.
type Mode int32

const (
	ModeIdle Mode = iota
	ModeRecord
	ModePlay // legacy one-shot playback buffer feeds the output callback
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeRecord:
		return "record"
	case ModePlay:
		return "play"
	default:
		return fmt.Sprintf("mode(%d)", int32(m))
	}
}

// Stream is one streaming session between a duplex audio device and its
// asynchronous producers and consumers. It owns the three rings, the pacing
// goroutine and the mode. Independent sessions are independent Streams;
// there is no process-wide state.
//
// Lifecycle methods (Close, StartPacing, StopPacing) are meant to be called
// from a single control goroutine. The data-path methods are safe under the
// single-producer single-consumer roles documented on each.
type Stream struct {
	id         string
	sampleRate int
	channels   int

	mode atomic.Int32

	capture  *ring.CaptureRing
	playback *ring.PlaybackRing
	staging  *ring.StagingRing

	// Pacing tunables, settable at runtime. The guard multiplier is stored
	// as float64 bits.
	headroomBytes atomic.Uint64
	guardMultBits atomic.Uint64

	pacer pacer

	// Legacy one-shot buffers for the blocking record/play convenience path.
	oneShotPlay atomic.Pointer[oneShotPlayback]
	captureSink atomic.Pointer[captureSink]

	closeOnce sync.Once
	closed    atomic.Bool

	logger *slog.Logger
}

// Open allocates the rings and starts a session in record mode. Ring
// capacity comes from settings.Audio.RingCapacity and is raised to a minimum
// of one second of audio at the stream format.
func Open(settings *conf.Settings) (*Stream, error) {
	if settings == nil {
		return nil, errors.Newf("nil settings").
			Component("bridge").
			Category(errors.CategoryValidation).
			Build()
	}
	audio := settings.Audio
	if audio.SampleRate <= 0 || audio.Channels <= 0 {
		return nil, errors.Newf("invalid stream format %d Hz / %d ch", audio.SampleRate, audio.Channels).
			Component("bridge").
			Category(errors.CategoryValidation).
			Context("samplerate", audio.SampleRate).
			Context("channels", audio.Channels).
			Build()
	}

	capacity := audio.RingCapacity
	if minCap := audio.BytesPerSecond(); capacity < minCap {
		capacity = minCap
	}

	capture, err := ring.NewCapture(capacity)
	if err != nil {
		return nil, allocationError(err, "capture", capacity)
	}
	playback, err := ring.NewPlayback(capacity)
	if err != nil {
		return nil, allocationError(err, "playback", capacity)
	}
	staging, err := ring.NewStaging(capacity)
	if err != nil {
		return nil, allocationError(err, "staging", capacity)
	}

	s := &Stream{
		id:         uuid.New().String(),
		sampleRate: audio.SampleRate,
		channels:   audio.Channels,
		capture:    capture,
		playback:   playback,
		staging:    staging,
	}
	s.pacer.scratch = make([]byte, capacity)
	s.logger = logging.ForService("bridge")
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("stream_id", s.id)

	s.headroomBytes.Store(uint64(settings.Pacing.HeadroomMs * audio.BytesPerMs()))
	s.setGuardMultiplier(settings.Pacing.RenderGuardMultiplier)

	s.mode.Store(int32(ModeRecord))
	s.logger.Info("stream opened",
		"samplerate", audio.SampleRate,
		"channels", audio.Channels,
		"ring_capacity_bytes", capacity)
	return s, nil
}

func allocationError(err error, ringName string, capacity int) error {
	return errors.New(err).
		Component("bridge").
		Category(errors.CategoryAllocation).
		Context("ring", ringName).
		Context("capacity", capacity).
		Build()
}

// Close stops the pacing goroutine, releases the rings and returns the
// stream to idle. Safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.StopPacing()
		s.mode.Store(int32(ModeIdle))
		s.closed.Store(true)
		s.logger.Info("stream closed",
			"underflows", s.playback.Underflows(),
			"capture_dropped_bytes", s.capture.Dropped(),
			"playback_dropped_bytes", s.playback.Dropped())
	})
	return nil
}

// ID returns the unique stream identifier used in logs and metric labels.
func (s *Stream) ID() string { return s.id }

// SampleRate returns the stream sample rate in Hz.
func (s *Stream) SampleRate() int { return s.sampleRate }

// Channels returns the stream channel count.
func (s *Stream) Channels() int { return s.channels }

// Mode returns the current callback mode.
func (s *Stream) Mode() Mode { return Mode(s.mode.Load()) }

// bytesPerMs returns the PCM byte rate per millisecond.
func (s *Stream) bytesPerMs() int {
	return s.sampleRate * s.channels * conf.BytesPerSample / 1000
}

// durationBytes converts a duration to PCM bytes at the stream format.
func (s *Stream) durationBytes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d.Milliseconds()) * s.bytesPerMs()
}

// WriteInput pushes one coarse input frame into the staging ring. The frame
// is always accepted in full; the staging ring grows as needed. Returns the
// number of bytes accepted.
func (s *Stream) WriteInput(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, errors.Newf("stream closed").
			Component("bridge").
			Category(errors.CategoryState).
			Build()
	}
	return s.staging.Write(p), nil
}

// WritePlayback pushes bytes straight into the playback ring, bypassing
// staging and pacing, for callers who pace themselves. Oldest unplayed audio
// is evicted on overflow. Returns len(p).
func (s *Stream) WritePlayback(p []byte) int {
	return s.playback.Write(p)
}

// ReadCapture drains up to len(p) bytes of captured audio in FIFO order and
// returns the count. On capture overflow the newest audio was retained, so a
// slow reader sees a gap, never a stall.
func (s *Stream) ReadCapture(p []byte) int {
	return s.capture.Read(p)
}

// FlushPlayback discards all pending playback audio; the next device pull
// renders silence.
func (s *Stream) FlushPlayback() {
	s.playback.Flush()
}

// FlushInput discards all staged input audio.
func (s *Stream) FlushInput() {
	s.staging.Flush()
}

// UnderflowCount returns how many device pulls found less data than
// requested.
func (s *Stream) UnderflowCount() uint64 {
	return s.playback.Underflows()
}

// ResetUnderflowCount clears the underflow counter.
func (s *Stream) ResetUnderflowCount() {
	s.playback.ResetUnderflows()
}

// ResetDropCounts clears the dropped-bytes counters of both evicting rings.
func (s *Stream) ResetDropCounts() {
	s.capture.ResetDropped()
	s.playback.ResetDropped()
}

// SetTargetHeadroom sets the steady-state headroom target. Values below zero
// are treated as zero.
func (s *Stream) SetTargetHeadroom(d time.Duration) {
	s.headroomBytes.Store(uint64(s.durationBytes(d)))
}

// SetRenderGuardMultiplier sets the safety factor applied to the maximum
// observed device pull when sizing headroom, clamped to [1.0, 4.0].
func (s *Stream) SetRenderGuardMultiplier(f float64) {
	s.setGuardMultiplier(f)
}

func (s *Stream) setGuardMultiplier(f float64) {
	if f < conf.RenderGuardMin {
		f = conf.RenderGuardMin
	}
	if f > conf.RenderGuardMax {
		f = conf.RenderGuardMax
	}
	s.guardMultBits.Store(math.Float64bits(f))
}

func (s *Stream) guardMultiplier() float64 {
	return math.Float64frombits(s.guardMultBits.Load())
}

// CaptureInput receives one chunk of echo-cancelled audio from the real-time
// input callback. Outside record mode the chunk is ignored. Real-time safe:
// no locks, no allocation, the write always completes.
func (s *Stream) CaptureInput(p []byte) {
	if Mode(s.mode.Load()) != ModeRecord {
		return
	}
	s.capture.Write(p)
	if sink := s.captureSink.Load(); sink != nil {
		sink.append(p)
	}
}

// RenderOutput fills dst for the real-time output callback. In play mode the
// legacy one-shot buffer is consumed; otherwise the playback ring is pulled,
// zero-filling and counting an underflow when short. Real-time safe.
func (s *Stream) RenderOutput(dst []byte) {
	if Mode(s.mode.Load()) == ModePlay {
		if shot := s.oneShotPlay.Load(); shot != nil {
			s.playback.RecordPull(len(dst))
			shot.render(dst)
			return
		}
	}
	s.playback.Pull(dst)
}
