package conf

// Stream format defaults. The bridge always runs signed 16-bit PCM; the
// voice-processing path it was built for is 16 kHz mono.
const (
	DefaultSampleRate = 16000
	DefaultChannels   = 1
	BytesPerSample    = 2

	DefaultFrameMs = 10 // coarse input frame duration from the feeding application

	DefaultSliceMs               = 5
	DefaultPrerollMs             = 40
	DefaultHeadroomMs            = 10
	DefaultRenderGuardMultiplier = 1.5

	// RenderGuardMin and RenderGuardMax bound the render guard multiplier.
	RenderGuardMin = 1.0
	RenderGuardMax = 4.0
)

// BytesPerSecond returns the PCM byte rate for the configured stream format.
func (a *AudioSettings) BytesPerSecond() int {
	return a.SampleRate * a.Channels * BytesPerSample
}

// BytesPerMs returns the PCM byte rate per millisecond. Exact for the common
// voice rates (16 kHz mono S16 is 32 bytes/ms).
func (a *AudioSettings) BytesPerMs() int {
	return a.BytesPerSecond() / 1000
}
