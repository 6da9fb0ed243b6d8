package ring

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Drop-oldest overflow policy
// =============================================================================

func TestCaptureWriteAlwaysSucceeds(t *testing.T) {
	c, err := NewCapture(16)
	require.NoError(t, err)

	for range 10 {
		n := c.Write([]byte("abcdefgh"))
		assert.Equal(t, 8, n, "capture write must accept the full chunk")
	}
	assert.Equal(t, 16, c.Used())
}

func TestCaptureDropOldestKeepsNewest(t *testing.T) {
	c, err := NewCapture(8)
	require.NoError(t, err)

	require.Equal(t, 8, c.Write([]byte("01234567")))
	require.Equal(t, 4, c.Write([]byte("abcd")))

	out := make([]byte, 8)
	n := c.Read(out)
	require.Equal(t, 8, n)
	assert.Equal(t, []byte("4567abcd"), out, "oldest four bytes must be gone")
	assert.Equal(t, uint64(4), c.Dropped())
}

func TestCaptureOversizeWriteKeepsTail(t *testing.T) {
	// Capacity 3200 is 100ms at 16kHz mono 16-bit. A single 6400-byte write
	// reports full success but only the last 3200 bytes are recoverable.
	c, err := NewCapture(3200)
	require.NoError(t, err)

	src := make([]byte, 6400)
	for i := range src {
		src[i] = byte(i / 25)
	}

	n := c.Write(src)
	assert.Equal(t, 6400, n)
	assert.Equal(t, 3200, c.Used())
	assert.Equal(t, uint64(3200), c.Dropped())

	out := make([]byte, 4096)
	n = c.Read(out)
	require.Equal(t, 3200, n)
	assert.Equal(t, src[3200:], out[:n])
}

func TestCaptureDroppedAccumulates(t *testing.T) {
	c, err := NewCapture(10)
	require.NoError(t, err)

	c.Write([]byte("0123456789"))
	c.Write([]byte("ab"))
	c.Write([]byte("cd"))
	assert.Equal(t, uint64(4), c.Dropped())
	assert.Equal(t, 10, c.Used())

	out := make([]byte, 10)
	require.Equal(t, 10, c.Read(out))
	assert.Equal(t, []byte("456789abcd"), out)
}

func TestCaptureUsedNeverExceedsCap(t *testing.T) {
	c, err := NewCapture(33)
	require.NoError(t, err)

	chunk := make([]byte, 20)
	for range 100 {
		c.Write(chunk)
		used := c.Used()
		assert.GreaterOrEqual(t, used, 0)
		assert.LessOrEqual(t, used, 33)
	}
}

// =============================================================================
// Concurrent reader versus evicting writer
// =============================================================================

func TestCaptureConcurrentReaderSurvivesEviction(t *testing.T) {
	c, err := NewCapture(500)
	require.NoError(t, err)

	const writes = 5000
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		chunk := make([]byte, 160)
		for i := range writes {
			for j := range chunk {
				chunk[j] = byte(i)
			}
			c.Write(chunk)
		}
	}()

	var drained int
	go func() {
		defer wg.Done()
		buf := make([]byte, 320)
		for range writes {
			drained += c.Read(buf)
		}
	}()

	wg.Wait()

	used := c.Used()
	assert.GreaterOrEqual(t, used, 0)
	assert.LessOrEqual(t, used, 500)
	total := uint64(drained) + uint64(used) + c.Dropped()
	assert.Equal(t, uint64(writes*160), total, "every written byte is read, buffered or counted dropped")
}
