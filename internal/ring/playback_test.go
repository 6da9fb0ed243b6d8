package ring

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Pull: zero-fill and underflow accounting
// =============================================================================

func TestPullRoundTrip(t *testing.T) {
	pb, err := NewPlayback(64)
	require.NoError(t, err)

	data := []byte("pcm pcm pcm pcm!")
	require.Equal(t, len(data), pb.Write(data))

	dst := make([]byte, len(data))
	n := pb.Pull(dst)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, dst)
	assert.Equal(t, uint64(0), pb.Underflows())
}

func TestPullOrderPreservedAcrossChunkings(t *testing.T) {
	pb, err := NewPlayback(256)
	require.NoError(t, err)

	src := make([]byte, 200)
	for i := range src {
		src[i] = byte(i)
	}
	for _, chunk := range [][]byte{src[:33], src[33:90], src[90:91], src[91:200]} {
		pb.Write(chunk)
	}

	var got []byte
	dst := make([]byte, 48)
	for len(got) < len(src) {
		n := pb.Pull(dst)
		got = append(got, dst[:n]...)
		if n < len(dst) {
			break
		}
	}
	assert.Equal(t, src, got[:len(src)])
}

func TestPullFromEmptyZeroFillsAndCountsOnce(t *testing.T) {
	pb, err := NewPlayback(32)
	require.NoError(t, err)

	dst := []byte{9, 9, 9, 9, 9, 9, 9, 9}
	n := pb.Pull(dst)
	assert.Equal(t, 0, n)
	assert.True(t, bytes.Equal(dst, make([]byte, 8)), "returned buffer must be all silence")
	assert.Equal(t, uint64(1), pb.Underflows())

	pb.Pull(dst)
	assert.Equal(t, uint64(2), pb.Underflows(), "exactly one underflow per short pull")
}

func TestPullShortCopiesWhatExistsThenSilence(t *testing.T) {
	pb, err := NewPlayback(32)
	require.NoError(t, err)

	pb.Write([]byte{1, 2, 3})
	dst := []byte{9, 9, 9, 9, 9, 9}
	n := pb.Pull(dst)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte{1, 2, 3, 0, 0, 0}, dst)
	assert.Equal(t, uint64(1), pb.Underflows())
}

func TestResetUnderflows(t *testing.T) {
	pb, err := NewPlayback(16)
	require.NoError(t, err)

	pb.Pull(make([]byte, 4))
	require.Equal(t, uint64(1), pb.Underflows())
	pb.ResetUnderflows()
	assert.Equal(t, uint64(0), pb.Underflows())
}

// =============================================================================
// Pull size tracking and decay
// =============================================================================

func TestPullSizeTracking(t *testing.T) {
	pb, err := NewPlayback(1024)
	require.NoError(t, err)

	pb.Pull(make([]byte, 160))
	assert.Equal(t, 160, pb.LastPull())
	assert.Equal(t, 160, pb.MaxPull())

	pb.Pull(make([]byte, 480))
	assert.Equal(t, 480, pb.LastPull())
	assert.Equal(t, 480, pb.MaxPull())

	pb.Pull(make([]byte, 160))
	assert.Equal(t, 160, pb.LastPull())
	assert.Equal(t, 480, pb.MaxPull(), "maximum holds after a smaller pull")
}

func TestMaxPullDecaysEveryHundredPulls(t *testing.T) {
	pb, err := NewPlayback(4096)
	require.NoError(t, err)

	pb.Pull(make([]byte, 1000)) // raises max to 1000
	dst := make([]byte, 100)
	for range 99 {
		pb.Pull(dst)
	}
	// Pull 100 triggered one decay step: 1000 - 1000/50 = 980.
	assert.Equal(t, 980, pb.MaxPull())

	for range 100 {
		pb.Pull(dst)
	}
	// 980 - 980/50 = 961.
	assert.Equal(t, 961, pb.MaxPull())
}

func TestMaxPullDecayFlooredAtCurrentPull(t *testing.T) {
	pb, err := NewPlayback(4096)
	require.NoError(t, err)

	dst := make([]byte, 200)
	for range 100 {
		pb.Pull(dst)
	}
	// Decay of 200 would give 196, but the floor is the in-flight pull size.
	assert.Equal(t, 200, pb.MaxPull())
}

// =============================================================================
// Producer side mirrors drop-oldest
// =============================================================================

func TestPlaybackWriteEvictsOldest(t *testing.T) {
	pb, err := NewPlayback(8)
	require.NoError(t, err)

	require.Equal(t, 8, pb.Write([]byte("01234567")))
	require.Equal(t, 2, pb.Write([]byte("ab")))
	assert.Equal(t, uint64(2), pb.Dropped())

	dst := make([]byte, 8)
	n := pb.Pull(dst)
	require.Equal(t, 8, n)
	assert.Equal(t, []byte("234567ab"), dst)
}

func TestPlaybackFlushSilencesNextPull(t *testing.T) {
	pb, err := NewPlayback(64)
	require.NoError(t, err)

	pb.Write([]byte("stale audio data"))
	pb.Flush()
	assert.Equal(t, 0, pb.Used())

	dst := []byte{7, 7, 7, 7}
	pb.Pull(dst)
	assert.Equal(t, make([]byte, 4), dst)
}
