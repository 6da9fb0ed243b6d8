package conf

import "github.com/spf13/viper"

// setDefaults registers the default configuration values with viper. These
// mirror the embedded config.yaml and apply when a key is absent from both
// the config file and the environment.
func setDefaults() {
	viper.SetDefault("debug", false)

	// Audio stream format
	viper.SetDefault("audio.device", "")
	viper.SetDefault("audio.samplerate", DefaultSampleRate)
	viper.SetDefault("audio.channels", DefaultChannels)
	viper.SetDefault("audio.ringcapacity", 0)
	viper.SetDefault("audio.framems", DefaultFrameMs)
	viper.SetDefault("audio.gain", 1.0)

	// Pacing engine
	viper.SetDefault("pacing.slicems", DefaultSliceMs)
	viper.SetDefault("pacing.prerollms", DefaultPrerollMs)
	viper.SetDefault("pacing.headroomms", DefaultHeadroomMs)
	viper.SetDefault("pacing.renderguardmultiplier", DefaultRenderGuardMultiplier)

	// Echo canceller
	viper.SetDefault("aec.enabled", true)
	viper.SetDefault("aec.taplength", 160)
	viper.SetDefault("aec.delaysamples", 640)
	viper.SetDefault("aec.stepsize", 0.1)

	// Telemetry endpoint
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "0.0.0.0:8090")

	// Logging
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.file", "")
}
