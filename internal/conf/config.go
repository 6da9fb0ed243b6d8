// Package conf loads and validates the application configuration. Defaults
// come from an embedded config.yaml, overridden by a user config file and
// AUDIOBRIDGE_* environment variables through viper.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"

	"github.com/tphakala/audiobridge/internal/errors"
)

//go:embed config.yaml
var configFiles embed.FS

// AudioSettings describes the stream format and ring sizing.
type AudioSettings struct {
	Device       string  // device name substring to match, empty for system default
	SampleRate   int     // sample rate in Hz
	Channels     int     // channel count, S16 interleaved
	RingCapacity int     // ring capacity in bytes, 0 sizes to one second
	FrameMs      int     // coarse input frame duration fed by the application
	Gain         float64 // reserved for future software gain, 1.0 = unity
}

// PacingSettings tunes the preroll and steady-state pacing engine.
type PacingSettings struct {
	SliceMs               int     // pacing slice and wake interval in ms
	PrerollMs             int     // buffered duration required before steady playback
	HeadroomMs            int     // steady-state target headroom in ms
	RenderGuardMultiplier float64 // safety factor over the max observed device pull, clamped to [1.0, 4.0]
}

// AECSettings configures the software echo canceller.
type AECSettings struct {
	Enabled      bool    // engage the canceller on the duplex device path
	TapLength    int     // NLMS filter length in samples
	DelaySamples int     // assumed bulk delay between playback and echo arrival
	StepSize     float64 // NLMS step size mu, 0 < mu < 2
}

// TelemetrySettings configures the optional metrics/debug HTTP endpoint.
type TelemetrySettings struct {
	Enabled bool   // true to enable the endpoint
	Listen  string // listen address, e.g. "0.0.0.0:8090"
}

// LogSettings configures file logging.
type LogSettings struct {
	Level string // minimum level: trace, debug, info, warn, error
	File  string // optional log file path, empty for stdout/stderr only
}

// Settings is the root configuration object.
type Settings struct {
	Debug bool // enable debug output

	Audio     AudioSettings
	Pacing    PacingSettings
	AEC       AECSettings
	Telemetry TelemetrySettings
	Log       LogSettings
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration, creating a default config file on first run.
// It is safe to call repeatedly; the settings are loaded once.
func Load() (*Settings, error) {
	var loadErr error
	once.Do(func() {
		settings, err := loadSettings()
		if err != nil {
			loadErr = err
			return
		}
		settingsMutex.Lock()
		settingsInstance = settings
		settingsMutex.Unlock()
	})
	if loadErr != nil {
		return nil, loadErr
	}
	return Setting(), nil
}

// Setting returns the loaded settings, or nil before Load has succeeded.
func Setting() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

func loadSettings() (*Settings, error) {
	if err := initViper(); err != nil {
		return nil, err
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal").
			Build()
	}
	if err := Validate(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := ConfigPaths()
	if err != nil {
		return err
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	viper.SetEnvPrefix("AUDIOBRIDGE")
	viper.AutomaticEnv()
	// The render guard multiplier was historically an environment tunable;
	// keep a direct binding so it stays overridable without a config file.
	_ = viper.BindEnv("pacing.renderguardmultiplier", "AUDIOBRIDGE_RENDER_GUARD_MULT")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errors.New(err).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Context("operation", "read-config").
				Build()
		}
		return createDefaultConfig(configPaths[0])
	}
	return nil
}

// ConfigPaths returns the directories searched for config.yaml, most
// preferred first.
func ConfigPaths() ([]string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		// Fall back to the working directory only.
		return []string{"."}, nil //nolint:nilerr // missing HOME is not fatal
	}
	return []string{filepath.Join(dir, "audiobridge"), "."}, nil
}

// createDefaultConfig writes the embedded default config into dir and points
// viper at it.
func createDefaultConfig(dir string) error {
	configPath := filepath.Join(dir, "config.yaml")
	defaultConfig, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return errors.New(fmt.Errorf("reading embedded config: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryFileIO).
			Context("path", dir).
			Build()
	}
	if err := os.WriteFile(configPath, defaultConfig, 0o644); err != nil {
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryFileIO).
			Context("path", configPath).
			Build()
	}
	return viper.ReadInConfig()
}
