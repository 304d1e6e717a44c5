package main

import (
	"github.com/spf13/cobra"

	"github.com/b0rdst31n/bluing/internal/app"
	"github.com/b0rdst31n/bluing/internal/hci"
)

// cleanCmd represents the clean command
var cleanCmd = &cobra.Command{
	Use:   "clean BD_ADDR",
	Short: "Clean the cached data of a remote device",
	Long: `Remove the pairing and attribute cache the local controller keeps
for one remote device. bluetoothd holds these files open, so it is
stopped for the removal and started again afterwards.`,
	Args: cobra.ExactArgs(1),
	RunE: runClean,
}

func runClean(cmd *cobra.Command, args []string) error {
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
		Mode:      app.ModeClean,
		Iface:     iface(cmd),
		Target:    target,
		HasTarget: true,
	})
}
