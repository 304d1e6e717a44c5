package main

import (
	"github.com/spf13/cobra"

	"github.com/b0rdst31n/bluing/internal/app"
	"github.com/b0rdst31n/bluing/internal/hci"
)

// sdpCmd represents the sdp command
var sdpCmd = &cobra.Command{
	Use:   "sdp BD_ADDR",
	Short: "Browse SDP service records",
	Long:  `Browse the SDP service records of a classic Bluetooth device and print them as a tree.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSDP,
}

func runSDP(cmd *cobra.Command, args []string) error {
	target, err := hci.ParseBDAddr(args[0])
	if err != nil {
		return err
	}

	d, _, err := newDispatcher(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true
	return d.Run(cmd.Context(), &app.Params{
		Mode:      app.ModeSDP,
		Iface:     iface(cmd),
		Target:    target,
		HasTarget: true,
	})
}
