// Package device wraps the miniaudio duplex device behind the bridge's
// real-time callback surface. It owns the device lifecycle and the software
// echo canceller; the data callback never blocks, never takes a lock and
// reuses preallocated scratch buffers.
package device

import (
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/audiobridge/internal/aec"
	"github.com/tphakala/audiobridge/internal/bridge"
	"github.com/tphakala/audiobridge/internal/conf"
	"github.com/tphakala/audiobridge/internal/errors"
	"github.com/tphakala/audiobridge/internal/logging"
)

// devicePeriodMs keeps render pulls small so the pacing engine sees a steady
// cadence instead of rare large pulls.
const devicePeriodMs = 10

// Duplex runs one full-duplex miniaudio device against a bridge stream: the
// output side renders from the stream's playback path, the input side runs
// through the echo canceller and lands in the capture ring.
type Duplex struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	stream *bridge.Stream

	canceller *aec.Canceller

	// Scratch buffers reused across callbacks; sized for the device period
	// and regrown only if the device pulls more than expected.
	renderRef  []int16
	micSamples []int16

	stopped chan struct{}
	closeMu sync.Mutex
	closed  bool

	logger *slog.Logger
}

// contextBackends picks the native backend per OS, nil for auto-select.
func contextBackends() []malgo.Backend {
	switch runtime.GOOS {
	case "linux":
		return []malgo.Backend{malgo.BackendAlsa}
	case "windows":
		return []malgo.Backend{malgo.BackendWasapi}
	case "darwin":
		return []malgo.Backend{malgo.BackendCoreaudio}
	default:
		return nil
	}
}

// New initializes the duplex device for the stream's format. The device is
// not started; call Start.
func New(settings *conf.Settings, stream *bridge.Stream) (*Duplex, error) {
	logger := logging.ForService("device")
	if logger == nil {
		logger = slog.Default()
	}

	var canceller *aec.Canceller
	if settings.AEC.Enabled {
		var err error
		canceller, err = aec.New(aec.Config{
			FrameSize: settings.Audio.SampleRate / 1000 * devicePeriodMs * settings.Audio.Channels,
			TapLength: settings.AEC.TapLength,
			Delay:     settings.AEC.DelaySamples,
			Step:      settings.AEC.StepSize,
		})
		if err != nil {
			return nil, err
		}
	}

	ctx, err := malgo.InitContext(contextBackends(), malgo.ContextConfig{}, func(message string) {
		if settings.Debug {
			logger.Debug("miniaudio", "message", message)
		}
	})
	if err != nil {
		return nil, errors.New(err).
			Component("device").
			Category(errors.CategoryDevice).
			Context("operation", "init-context").
			Build()
	}

	d := &Duplex{
		ctx:       ctx,
		stream:    stream,
		canceller: canceller,
		stopped:   make(chan struct{}, 1),
		logger:    logger,
	}

	periodSamples := settings.Audio.SampleRate / 1000 * devicePeriodMs * settings.Audio.Channels
	d.renderRef = make([]int16, periodSamples)
	d.micSamples = make([]int16, periodSamples)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Duplex)
	deviceConfig.SampleRate = uint32(settings.Audio.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = devicePeriodMs
	deviceConfig.Alsa.NoMMap = 1
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(settings.Audio.Channels)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(settings.Audio.Channels)

	if settings.Audio.Device != "" {
		captureID, playbackID, err := resolveDeviceIDs(ctx, settings.Audio.Device)
		if err != nil {
			_ = ctx.Uninit()
			ctx.Free()
			return nil, err
		}
		deviceConfig.Capture.DeviceID = captureID
		deviceConfig.Playback.DeviceID = playbackID
	}

	callbacks := malgo.DeviceCallbacks{
		Data: d.onData,
		Stop: d.onStop,
	}
	dev, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, errors.New(err).
			Component("device").
			Category(errors.CategoryDevice).
			Context("operation", "init-device").
			Context("samplerate", settings.Audio.SampleRate).
			Build()
	}
	d.device = dev
	return d, nil
}

// onData is the duplex real-time callback: render first, then feed the
// rendered audio to the canceller as the far-end reference, then cancel and
// capture the microphone input.
func (d *Duplex) onData(output, input []byte, frameCount uint32) {
	if len(output) > 0 {
		d.stream.RenderOutput(output)
		if d.canceller != nil {
			ref := d.sized(&d.renderRef, len(output)/2)
			bytesToInt16(output, ref)
			d.canceller.FeedFarEnd(ref)
		}
	}

	if len(input) > 0 {
		if d.canceller != nil && d.canceller.Enabled() {
			mic := d.sized(&d.micSamples, len(input)/2)
			bytesToInt16(input, mic)
			d.canceller.Process(mic)
			int16ToBytes(mic, input)
		}
		d.stream.CaptureInput(input)
	}
}

// sized returns *buf with at least n capacity, regrowing it when the device
// pulls more than one configured period. Growth is rare and happens on the
// device thread, mirroring how the callback scratch has always been managed.
func (d *Duplex) sized(buf *[]int16, n int) []int16 {
	if cap(*buf) < n {
		*buf = make([]int16, n)
	}
	return (*buf)[:n]
}

// onStop runs when the device stops, expectedly or not. An unexpected stop
// gets one restart attempt off the callback thread.
func (d *Duplex) onStop() {
	select {
	case d.stopped <- struct{}{}:
	default:
	}
	go func() {
		time.Sleep(100 * time.Millisecond)
		d.closeMu.Lock()
		defer d.closeMu.Unlock()
		if d.closed {
			return
		}
		if err := d.device.Start(); err != nil {
			d.logger.Error("device restart failed", "error", err)
			return
		}
		d.logger.Info("device restarted after unexpected stop")
	}()
}

// Start begins the real-time callbacks.
func (d *Duplex) Start() error {
	if err := d.device.Start(); err != nil {
		return errors.New(err).
			Component("device").
			Category(errors.CategoryDevice).
			Context("operation", "start").
			Build()
	}
	return nil
}

// Close stops the device and releases the context. Safe to call once.
func (d *Duplex) Close() {
	d.closeMu.Lock()
	if d.closed {
		d.closeMu.Unlock()
		return
	}
	d.closed = true
	d.closeMu.Unlock()

	_ = d.device.Stop()
	d.device.Uninit()
	_ = d.ctx.Uninit()
	d.ctx.Free()
}

// SetCancellerEnabled engages or bypasses the echo canceller. A no-op when
// the canceller is not configured.
func (d *Duplex) SetCancellerEnabled(enabled bool) {
	if d.canceller != nil {
		d.canceller.SetEnabled(enabled)
	}
}

// CancellerBypassed reports whether echo cancellation is configured off or
// bypassed, the same view the original voice-processing unit exposed.
func (d *Duplex) CancellerBypassed() bool {
	return d.canceller == nil || !d.canceller.Enabled()
}
