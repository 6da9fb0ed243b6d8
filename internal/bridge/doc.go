// Package bridge implements the streaming session between a full-duplex
// audio device and asynchronous producers and consumers.
//
// A Stream owns the three rings, the pacing engine goroutine and the mode
// that gates the real-time callbacks. The device layer calls CaptureInput
// and RenderOutput from its callbacks; the application feeds WriteInput and
// drains ReadCapture at its own pace. Lifecycle operations on one Stream are
// meant to be called from a single control goroutine.
package bridge
