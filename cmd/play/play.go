// Package play implements WAV playback through the paced playback path.
package play

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/audiobridge/internal/bridge"
	"github.com/tphakala/audiobridge/internal/conf"
	"github.com/tphakala/audiobridge/internal/device"
	"github.com/tphakala/audiobridge/internal/errors"
	"github.com/tphakala/audiobridge/internal/logging"
	"github.com/tphakala/audiobridge/internal/wave"
)

var legacyMode bool

func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play [input.wav]",
		Short: "Play a WAV file through the output device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, settings, args[0])
		},
	}

	cmd.Flags().BoolVar(&legacyMode, "legacy", false, "use the one-shot playback path instead of the paced stream")

	return cmd
}

func runPlay(cmd *cobra.Command, settings *conf.Settings, path string) error {
	logger := logging.ForService("play")

	pcm, format, err := wave.Load(path)
	if err != nil {
		return err
	}
	if format.SampleRate != settings.Audio.SampleRate || format.Channels != settings.Audio.Channels {
		return errors.Newf("file format %d Hz/%d ch does not match configured %d Hz/%d ch",
			format.SampleRate, format.Channels,
			settings.Audio.SampleRate, settings.Audio.Channels).
			Component("play").
			Category(errors.CategoryValidation).
			Context("path", path).
			Build()
	}

	stream, err := bridge.Open(settings)
	if err != nil {
		return err
	}
	defer stream.Close()

	duplex, err := device.New(settings, stream)
	if err != nil {
		return err
	}
	defer duplex.Close()

	if err := duplex.Start(); err != nil {
		return err
	}

	clip := time.Duration(len(pcm)/settings.Audio.BytesPerMs()) * time.Millisecond
	logger.Info("playing", "path", path, "duration", clip, "legacy", legacyMode)

	if legacyMode {
		return stream.PlayBlocking(cmd.Context(), pcm)
	}
	return playPaced(cmd, settings, stream, pcm, clip)
}

// playPaced feeds the whole clip through the staging ring and lets the
// pacing engine drive it to the device, then waits for the playback ring
// to drain.
func playPaced(cmd *cobra.Command, settings *conf.Settings, stream *bridge.Stream, pcm []byte, clip time.Duration) error {
	if err := stream.StartPacing(
		time.Duration(settings.Pacing.SliceMs)*time.Millisecond,
		time.Duration(settings.Pacing.PrerollMs)*time.Millisecond,
	); err != nil {
		return err
	}
	defer stream.StopPacing()

	if _, err := stream.WriteInput(pcm); err != nil {
		return err
	}

	deadline := time.After(clip + 2*time.Second)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case <-deadline:
			return errors.Newf("playback did not drain within %s", clip+2*time.Second).
				Component("play").
				Category(errors.CategoryTimeout).
				Build()
		case <-ticker.C:
			levels := stream.Levels()
			if levels.Staging == 0 && levels.Playback == 0 {
				return nil
			}
		}
	}
}
