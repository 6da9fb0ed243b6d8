package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/tphakala/audiobridge/cmd"
	"github.com/tphakala/audiobridge/internal/conf"
	"github.com/tphakala/audiobridge/internal/logging"
)

func main() {
	logging.Init()

	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	applyLogSettings(settings)

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func applyLogSettings(settings *conf.Settings) {
	if settings.Log.File != "" {
		if _, err := logging.SetFileOutput(settings.Log.File, logging.FileConfig{}); err != nil {
			fmt.Fprintf(os.Stderr, "error opening log file: %v\n", err)
		}
	}
	if settings.Debug {
		logging.SetLevel(slog.LevelDebug)
		return
	}
	switch settings.Log.Level {
	case "trace":
		logging.SetLevel(logging.LevelTrace)
	case "debug":
		logging.SetLevel(slog.LevelDebug)
	case "warn":
		logging.SetLevel(slog.LevelWarn)
	case "error":
		logging.SetLevel(slog.LevelError)
	default:
		logging.SetLevel(slog.LevelInfo)
	}
}
