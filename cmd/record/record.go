// Package record implements the one-shot recording command.
package record

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

var duration time.Duration

func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record [output.wav]",
		Short: "Record from the microphone to a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(cmd, settings, args[0])
		},
	}

	cmd.Flags().DurationVarP(&duration, "duration", "t", 5*time.Second, "recording duration")

	return cmd
}

func runRecord(cmd *cobra.Command, settings *conf.Settings, path string) error {
	if duration <= 0 {
		return errors.Newf("duration must be positive, got %s", duration).
			Component("record").
			Category(errors.CategoryValidation).
			Build()
	}

	logger := logging.ForService("record")

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

	logger.Info("recording", "duration", duration, "path", path)
	pcm, err := stream.RecordBlocking(cmd.Context(), duration)
	if err != nil {
		return err
	}

	if err := wave.Save(path, pcm, settings.Audio.SampleRate, settings.Audio.Channels); err != nil {
		return err
	}
	logger.Info("recording saved",
		"path", path,
		"bytes", len(pcm),
		"dropped", stream.Stats().CaptureDropped)
	return nil
}
