// Package aec implements a normalized least-mean-squares (NLMS) acoustic
// echo canceller for signed 16-bit PCM frames.
//
// The duplex device layer feeds each rendered output frame as the far-end
// reference and runs every captured microphone frame through Process before
// it reaches the capture ring. The canceller replaces the cancellation
// engine of platforms whose audio units do it in hardware; SetEnabled is the
// bypass control those platforms expose.
package aec

import (
	"sync"

	"github.com/tphakala/audiobridge/internal/errors"
)

// Config sizes the canceller. All values are in samples at the stream rate.
type Config struct {
	// FrameSize is the fixed number of samples per frame fed to FeedFarEnd
	// and Process.
	FrameSize int
	// TapLength is the NLMS filter length. Longer filters model more of the
	// room response but cost proportionally more per sample.
	TapLength int
	// Delay is the assumed bulk delay between playback and the echo arriving
	// at the microphone (DAC + acoustic path + ADC).
	Delay int
	// Step is the NLMS step size mu, 0 < mu < 2. Smaller converges slower
	// but is more stable.
	Step float64
}

// Canceller is an NLMS echo canceller over int16 frames. FeedFarEnd and
// Process may be called from different goroutines; the far-end buffer is the
// only shared state and is copied out under the mutex before the filter
// runs.
type Canceller struct {
	mu      sync.Mutex
	enabled bool

	weights []float64
	step    float64
	tapLen  int

	// Circular far-end reference buffer, sized so writer and reader always
	// touch disjoint regions.
	farBuf  []float64
	farHead int

	// Preallocated reference window; Process never allocates.
	ref []float64

	delay     int
	frameSize int
}

// New creates a canceller for fixed-size frames.
func New(cfg Config) (*Canceller, error) {
	if cfg.FrameSize <= 0 || cfg.TapLength <= 0 || cfg.Delay < 0 {
		return nil, errors.Newf("invalid canceller config: frame=%d taps=%d delay=%d",
			cfg.FrameSize, cfg.TapLength, cfg.Delay).
			Component("aec").
			Category(errors.CategoryValidation).
			Build()
	}
	if cfg.Step <= 0 || cfg.Step >= 2 {
		return nil, errors.Newf("step size %v out of range (0, 2)", cfg.Step).
			Component("aec").
			Category(errors.CategoryValidation).
			Build()
	}
	return &Canceller{
		enabled:   true,
		weights:   make([]float64, cfg.TapLength),
		step:      cfg.Step,
		tapLen:    cfg.TapLength,
		farBuf:    make([]float64, cfg.FrameSize+cfg.Delay+cfg.TapLength),
		ref:       make([]float64, cfg.FrameSize+cfg.TapLength-1),
		delay:     cfg.Delay,
		frameSize: cfg.FrameSize,
	}, nil
}

// SetEnabled engages or bypasses cancellation. Re-enabling resets the filter
// weights so adaptation restarts cleanly.
func (c *Canceller) SetEnabled(enabled bool) {
	c.mu.Lock()
	c.enabled = enabled
	if enabled {
		clear(c.weights)
	}
	c.mu.Unlock()
}

// Enabled reports whether cancellation is engaged.
func (c *Canceller) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// FeedFarEnd records one rendered playback frame as the far-end reference.
// Call after filling the device output buffer. Frames longer than the
// configured frame size are truncated.
func (c *Canceller) FeedFarEnd(frame []int16) {
	if len(frame) > c.frameSize {
		frame = frame[:c.frameSize]
	}
	c.mu.Lock()
	for _, s := range frame {
		c.farBuf[c.farHead] = float64(s)
		c.farHead++
		if c.farHead == len(c.farBuf) {
			c.farHead = 0
		}
	}
	c.mu.Unlock()
}

// Process cancels echo from one captured frame in place. Call before the
// frame reaches any consumer. A disabled canceller returns the frame
// unmodified.
func (c *Canceller) Process(frame []int16) {
	if len(frame) > c.frameSize {
		frame = frame[:c.frameSize]
	}

	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		return
	}
	// Copy the reference window out so the NLMS loop runs without the lock.
	// Sample i, tap k reads ref[i+tapLen-1-k]; the window therefore starts
	// delay+frameSize+tapLen-1 samples behind the write head.
	bufLen := len(c.farBuf)
	start := c.farHead - c.frameSize - c.delay - c.tapLen + 1
	for start < 0 {
		start += bufLen
	}
	for j := range c.ref {
		idx := start + j
		if idx >= bufLen {
			idx -= bufLen
		}
		c.ref[j] = c.farBuf[idx]
	}
	c.mu.Unlock()

	for i := range frame {
		base := i + c.tapLen - 1

		var estimate, power float64
		for k := range c.tapLen {
			x := c.ref[base-k]
			estimate += c.weights[k] * x
			power += x * x
		}

		e := float64(frame[i]) - estimate

		if power > 1e-10 {
			g := c.step * e / power
			for k := range c.tapLen {
				c.weights[k] += g * c.ref[base-k]
			}
		}

		frame[i] = clampInt16(e)
	}
}

func clampInt16(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
