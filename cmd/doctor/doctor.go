// Package doctor implements the environment report command.
package doctor

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/audiobridge/internal/conf"
	"github.com/tphakala/audiobridge/internal/diagnostics"
)

func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Print a system and audio environment report",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Print(diagnostics.Collect(settings).String())
			return nil
		},
	}
}
