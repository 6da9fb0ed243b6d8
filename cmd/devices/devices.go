// Package devices implements the device listing command.
package devices

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/audiobridge/internal/conf"
	"github.com/tphakala/audiobridge/internal/device"
)

func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List available capture and playback devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			inventory, err := device.Devices()
			if err != nil {
				return err
			}

			fmt.Println("Capture devices:")
			printDevices(inventory.Capture)
			fmt.Println("\nPlayback devices:")
			printDevices(inventory.Playback)
			return nil
		},
	}
}

func printDevices(devices []device.Info) {
	if len(devices) == 0 {
		fmt.Println("  none found")
		return
	}
	for _, d := range devices {
		marker := " "
		if d.IsDefault {
			marker = "*"
		}
		fmt.Printf("  %s [%d] %s\n", marker, d.Index, d.Name)
	}
}
