package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/audiobridge/cmd/devices"
	"github.com/tphakala/audiobridge/cmd/doctor"
	"github.com/tphakala/audiobridge/cmd/loopback"
	"github.com/tphakala/audiobridge/cmd/play"
	"github.com/tphakala/audiobridge/cmd/record"
	"github.com/tphakala/audiobridge/internal/conf"
	"github.com/tphakala/audiobridge/internal/errors"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "audiobridge",
		Short: "Real-time audio streaming bridge CLI",
	}

	// Set up the global flags for the root command.
	setupFlags(rootCmd, settings)

	subcommands := []*cobra.Command{
		loopback.Command(settings),
		record.Command(settings),
		play.Command(settings),
		devices.Command(settings),
		doctor.Command(settings),
	}

	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Flag values land in viper through the bindings; pull the merged
		// view back into the settings struct and validate before any
		// subcommand touches a device.
		settings.Debug = viper.GetBool("debug")
		settings.Audio.Device = viper.GetString("audio.device")
		settings.Audio.SampleRate = viper.GetInt("audio.samplerate")
		settings.Audio.Channels = viper.GetInt("audio.channels")
		settings.Pacing.SliceMs = viper.GetInt("pacing.slicems")
		settings.Pacing.PrerollMs = viper.GetInt("pacing.prerollms")
		settings.Pacing.HeadroomMs = viper.GetInt("pacing.headroomms")
		settings.Pacing.RenderGuardMultiplier = viper.GetFloat64("pacing.renderguardmultiplier")
		settings.AEC.Enabled = viper.GetBool("aec.enabled")
		return conf.Validate(settings)
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Audio.Device, "device", viper.GetString("audio.device"), "Audio device name substring, empty for system default")
	rootCmd.PersistentFlags().IntVar(&settings.Audio.SampleRate, "samplerate", viper.GetInt("audio.samplerate"), "Sample rate in Hz")
	rootCmd.PersistentFlags().IntVar(&settings.Audio.Channels, "channels", viper.GetInt("audio.channels"), "Channel count")
	rootCmd.PersistentFlags().IntVar(&settings.Pacing.SliceMs, "slice", viper.GetInt("pacing.slicems"), "Pacing slice in milliseconds")
	rootCmd.PersistentFlags().IntVar(&settings.Pacing.PrerollMs, "preroll", viper.GetInt("pacing.prerollms"), "Preroll target in milliseconds")
	rootCmd.PersistentFlags().IntVar(&settings.Pacing.HeadroomMs, "headroom", viper.GetInt("pacing.headroomms"), "Steady-state headroom in milliseconds")
	rootCmd.PersistentFlags().Float64Var(&settings.Pacing.RenderGuardMultiplier, "render-guard", viper.GetFloat64("pacing.renderguardmultiplier"), "Render guard multiplier, 1.0 to 4.0")
	rootCmd.PersistentFlags().BoolVar(&settings.AEC.Enabled, "aec", viper.GetBool("aec.enabled"), "Enable software echo cancellation")

	bindings := map[string]string{
		"debug":                        "debug",
		"audio.device":                 "device",
		"audio.samplerate":             "samplerate",
		"audio.channels":               "channels",
		"pacing.slicems":               "slice",
		"pacing.prerollms":             "preroll",
		"pacing.headroomms":            "headroom",
		"pacing.renderguardmultiplier": "render-guard",
		"aec.enabled":                  "aec",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			return errors.New(err).
				Component("cmd").
				Category(errors.CategoryConfiguration).
				Context("flag", flag).
				Build()
		}
	}

	return nil
}
