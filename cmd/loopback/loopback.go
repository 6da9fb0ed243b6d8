// Package loopback implements the end-to-end demo command: microphone
// audio is captured, carried through an application-side buffer and fed
// back to the speakers through the paced playback path.
package loopback

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smallnest/ringbuffer"
	"github.com/spf13/cobra"

	"github.com/tphakala/audiobridge/internal/bridge"
	"github.com/tphakala/audiobridge/internal/conf"
	"github.com/tphakala/audiobridge/internal/device"
	"github.com/tphakala/audiobridge/internal/logging"
	"github.com/tphakala/audiobridge/internal/observability"
	"github.com/tphakala/audiobridge/internal/telemetry"
)

var extraDelayMs int

func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loopback",
		Short: "Run a full capture-to-playback loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoopback(cmd.Context(), settings)
		},
	}

	cmd.Flags().IntVar(&extraDelayMs, "delay", 0, "extra loop delay in milliseconds before audio is fed back")

	return cmd
}

func runLoopback(ctx context.Context, settings *conf.Settings) error {
	logger := logging.ForService("loopback")

	stream, err := bridge.Open(settings)
	if err != nil {
		return err
	}
	defer stream.Close()

	metrics, err := observability.NewMetrics()
	if err != nil {
		return err
	}
	metrics.Bridge.Register(stream)
	defer metrics.Bridge.Unregister(stream.ID())

	var server *telemetry.Server
	if settings.Telemetry.Enabled {
		server = telemetry.NewServer(settings, metrics)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("telemetry server failed", "error", err)
			}
		}()
	}

	duplex, err := device.New(settings, stream)
	if err != nil {
		return err
	}
	defer duplex.Close()

	if err := stream.StartPacing(
		time.Duration(settings.Pacing.SliceMs)*time.Millisecond,
		time.Duration(settings.Pacing.PrerollMs)*time.Millisecond,
	); err != nil {
		return err
	}
	defer stream.StopPacing()

	if err := duplex.Start(); err != nil {
		return err
	}

	logger.Info("loopback running",
		"samplerate", settings.Audio.SampleRate,
		"channels", settings.Audio.Channels,
		"aec", !duplex.CancellerBypassed(),
		"delay_ms", extraDelayMs)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pumpDone := make(chan struct{})
	go pump(ctx, settings, stream, pumpDone)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastUnderflows uint64
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			<-pumpDone
			if server != nil {
				if err := server.Shutdown(context.Background()); err != nil {
					logger.Error("telemetry shutdown failed", "error", err)
				}
			}
			return nil
		case <-ticker.C:
			stats := stream.Stats()
			levels := stream.Levels()
			logger.Info("loopback stats",
				"underflows", stats.Underflows-lastUnderflows,
				"capture_bytes", levels.Capture,
				"playback_bytes", levels.Playback,
				"staging_bytes", levels.Staging,
				"last_pull", stats.LastPullBytes,
				"max_pull", stats.MaxPullBytes,
				"prerolled", stats.Prerolled)
			lastUnderflows = stats.Underflows
		}
	}
}

// pump drains the capture ring into an application-side ring buffer and
// feeds it back to the playback path in device-period frames. The extra
// buffer stands in for whatever processing a real application would do
// between capture and playback.
func pump(ctx context.Context, settings *conf.Settings, stream *bridge.Stream, done chan<- struct{}) {
	defer close(done)

	frameMs := settings.Audio.FrameMs
	if frameMs <= 0 {
		frameMs = conf.DefaultFrameMs
	}
	frameBytes := settings.Audio.BytesPerMs() * frameMs
	appBuf := ringbuffer.New(settings.Audio.BytesPerSecond())
	frame := make([]byte, frameBytes)
	delayBytes := settings.Audio.BytesPerMs() * extraDelayMs

	ticker := time.NewTicker(time.Duration(frameMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// Drain whatever capture has produced since the last tick.
		for {
			n := stream.ReadCapture(frame)
			if n == 0 {
				break
			}
			// Drop-oldest on the app buffer too: stale audio is worse
			// than missing audio in a live loop.
			if appBuf.Free() < n {
				_, _ = appBuf.Read(make([]byte, n-appBuf.Free()))
			}
			_, _ = appBuf.Write(frame[:n])
		}

		// Hold audio back until the requested loop delay has built up.
		for appBuf.Length() > delayBytes {
			n, err := appBuf.Read(frame)
			if err != nil || n == 0 {
				break
			}
			if _, err := stream.WriteInput(frame[:n]); err != nil {
				return
			}
		}
	}
}
