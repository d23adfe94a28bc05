// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"

	"microtools/internal/audio"
	"microtools/internal/tui"

	"github.com/spf13/cobra"
)

func newDevicesCommand() *cobra.Command {
	var interactive bool

	devicesCmd := &cobra.Command{
		Use:     "devices",
		Aliases: []string{"list"},
		Short:   "List available audio devices",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := audio.Initialize(); err != nil {
				return err
			}
			defer audio.Terminate()

			if !interactive {
				return audio.ListDevices(stdout(cmd))
			}

			sel, ok, err := tui.PickDevice(audio.HostDevices)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			flag := "--output-device"
			if sel.Device.MaxInputChannels > 0 {
				flag = "--input-device"
			}
			fmt.Fprintf(stdout(cmd), "%s %d --sample-rate %g\n", flag, sel.Device.ID, sel.SampleRate)
			return nil
		},
	}
	devicesCmd.Flags().BoolVar(&interactive, "interactive", false,
		"Pick a device and sample rate and print the matching flags")

	return devicesCmd
}
