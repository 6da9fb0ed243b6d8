package aec

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		FrameSize: 160, // 10ms at 16 kHz
		TapLength: 16,
		Delay:     0,
		Step:      0.5,
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero_frame", func(c *Config) { c.FrameSize = 0 }},
		{"zero_taps", func(c *Config) { c.TapLength = 0 }},
		{"negative_delay", func(c *Config) { c.Delay = -1 }},
		{"step_zero", func(c *Config) { c.Step = 0 }},
		{"step_two", func(c *Config) { c.Step = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			c, err := New(cfg)
			assert.Error(t, err)
			assert.Nil(t, c)
		})
	}
}

// energy sums squared sample values.
func energy(frame []int16) float64 {
	var e float64
	for _, s := range frame {
		e += float64(s) * float64(s)
	}
	return e
}

// TestConvergesOnLinearEchoPath drives the canceller with a synthetic echo:
// the near-end signal is the far-end signal through a short FIR, which the
// NLMS filter can model exactly. After adaptation the residual must be a
// small fraction of the uncancelled echo.
func TestConvergesOnLinearEchoPath(t *testing.T) {
	c, err := New(testConfig())
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	path := []float64{0.6, 0.3, -0.1} // simulated echo path

	const frames = 60
	frameSize := testConfig().FrameSize
	far := make([]int16, frames*frameSize)
	for i := range far {
		far[i] = int16(rng.Intn(4001) - 2000)
	}

	var echoEnergy, residualEnergy float64
	mic := make([]int16, frameSize)
	for f := range frames {
		frame := far[f*frameSize : (f+1)*frameSize]
		c.FeedFarEnd(frame)

		for i := range mic {
			var y float64
			for k, h := range path {
				if idx := f*frameSize + i - k; idx >= 0 {
					y += h * float64(far[idx])
				}
			}
			mic[i] = int16(y)
		}

		before := energy(mic)
		c.Process(mic)

		// Score the last quarter, after adaptation has settled.
		if f >= frames*3/4 {
			echoEnergy += before
			residualEnergy += energy(mic)
		}
	}

	require.Positive(t, echoEnergy)
	ratio := residualEnergy / echoEnergy
	assert.Less(t, ratio, 0.05, "converged canceller should remove >95%% of echo energy, residual ratio %v", ratio)
}

func TestDisabledPassesFrameThrough(t *testing.T) {
	c, err := New(testConfig())
	require.NoError(t, err)
	c.SetEnabled(false)
	assert.False(t, c.Enabled())

	frame := make([]int16, 160)
	for i := range frame {
		frame[i] = int16(i - 80)
	}
	want := append([]int16(nil), frame...)

	c.FeedFarEnd(want)
	c.Process(frame)
	assert.Equal(t, want, frame)
}

func TestReenableResetsAdaptation(t *testing.T) {
	c, err := New(testConfig())
	require.NoError(t, err)

	frame := make([]int16, 160)
	for i := range frame {
		frame[i] = int16((i * 37) % 500)
	}
	c.FeedFarEnd(frame)
	c.Process(frame)

	c.SetEnabled(false)
	c.SetEnabled(true)
	assert.True(t, c.Enabled())
	for _, w := range c.weights {
		assert.Zero(t, w, "weights reset on re-enable")
	}
}

func TestProcessTruncatesOversizedFrame(t *testing.T) {
	c, err := New(Config{FrameSize: 8, TapLength: 4, Delay: 0, Step: 0.1})
	require.NoError(t, err)

	big := make([]int16, 16)
	c.FeedFarEnd(big)
	c.Process(big) // must not panic or write past the frame size
}

func TestClampInt16(t *testing.T) {
	assert.Equal(t, int16(32767), clampInt16(1e6))
	assert.Equal(t, int16(-32768), clampInt16(-1e6))
	assert.Equal(t, int16(1234), clampInt16(1234.4))
}
