package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// devicePump simulates the real-time callbacks: every period it renders one
// output chunk and captures one input chunk until stopped.
func devicePump(s *Stream, chunk int, period time.Duration, stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	out := make([]byte, chunk)
	in := patterned(chunk, 42)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.RenderOutput(out)
			s.CaptureInput(in)
		}
	}
}

func TestRecordBlockingCapturesRequestedDuration(t *testing.T) {
	s := openTestStream(t, testSettings())

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go devicePump(s, 320, 5*time.Millisecond, stop, &wg)
	defer func() { close(stop); wg.Wait() }()

	// The pump delivers 320 bytes per 5ms, well above real-time rate, so the
	// 100ms sink fills before the deadline.
	pcm, err := s.RecordBlocking(context.Background(), 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 100*32, len(pcm))
	assert.Equal(t, patterned(320, 42)[:32], pcm[:32])
}

func TestRecordBlockingHonorsContextCancel(t *testing.T) {
	s := openTestStream(t, testSettings())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	// No device feeding: the call returns on cancel with whatever arrived.
	pcm, err := s.RecordBlocking(ctx, 10*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, pcm)
}

func TestRecordBlockingRejectsConcurrentUse(t *testing.T) {
	s := openTestStream(t, testSettings())

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = s.RecordBlocking(ctx, time.Second)
	}()

	require.Eventually(t, func() bool {
		return s.captureSink.Load() != nil
	}, time.Second, time.Millisecond)

	_, err := s.RecordBlocking(context.Background(), time.Second)
	assert.Error(t, err, "second blocking record is rejected")

	cancel()
	wg.Wait()
}

func TestRecordBlockingValidation(t *testing.T) {
	s := openTestStream(t, testSettings())
	_, err := s.RecordBlocking(context.Background(), 0)
	assert.Error(t, err)
}

func TestPlayBlockingRendersWholeBufferThenRestoresMode(t *testing.T) {
	s := openTestStream(t, testSettings())

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go devicePump(s, 320, 5*time.Millisecond, stop, &wg)
	defer func() { close(stop); wg.Wait() }()

	pcm := patterned(3200, 11) // 100ms
	require.NoError(t, s.PlayBlocking(context.Background(), pcm))
	assert.Equal(t, ModeRecord, s.Mode())
	assert.Nil(t, s.oneShotPlay.Load())
}

func TestRenderInPlayModeLeavesRingUntouched(t *testing.T) {
	s := openTestStream(t, testSettings())
	s.WritePlayback(patterned(640, 3))

	shot := patterned(320, 4)
	s.oneShotPlay.Store(&oneShotPlayback{buf: shot})
	s.mode.Store(int32(ModePlay))

	dst := make([]byte, 160)
	s.RenderOutput(dst)
	assert.Equal(t, shot[:160], dst, "play mode renders from the one-shot buffer")
	assert.Equal(t, 640, s.Levels().Playback, "ring content survives the legacy detour")
	assert.Equal(t, uint64(0), s.UnderflowCount(), "one-shot rendering never counts underflows")
	assert.Equal(t, 160, s.Stats().LastPullBytes, "pull sizes are still recorded in play mode")

	s.mode.Store(int32(ModeRecord))
	s.oneShotPlay.Store(nil)
	s.RenderOutput(dst)
	assert.Equal(t, patterned(640, 3)[:160], dst, "record mode renders from the ring again")
}

func TestPlayBlockingEmptyBufferIsNoop(t *testing.T) {
	s := openTestStream(t, testSettings())
	require.NoError(t, s.PlayBlocking(context.Background(), nil))
	assert.Equal(t, ModeRecord, s.Mode())
}

func TestOneShotRenderZeroFillsPastEnd(t *testing.T) {
	shot := &oneShotPlayback{buf: patterned(100, 5)}

	dst := patterned(160, 8)
	shot.render(dst)
	assert.Equal(t, patterned(100, 5), dst[:100])
	assert.Equal(t, make([]byte, 60), dst[100:])
	assert.True(t, shot.finished())

	// A finished buffer renders pure silence.
	dst2 := patterned(64, 1)
	shot.render(dst2)
	assert.Equal(t, make([]byte, 64), dst2)
}

func TestCaptureSinkStopsAtCapacity(t *testing.T) {
	sink := &captureSink{buf: make([]byte, 100)}
	sink.append(patterned(64, 0))
	sink.append(patterned(64, 1))
	assert.Equal(t, int64(100), sink.n.Load())
	sink.append(patterned(64, 2))
	assert.Equal(t, int64(100), sink.n.Load())
}
