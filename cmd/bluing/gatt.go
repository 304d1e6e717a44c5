package main

import (
	"github.com/spf13/cobra"

	"github.com/b0rdst31n/bluing/internal/app"
	"github.com/b0rdst31n/bluing/internal/hci"
)

// gattCmd represents the gatt command
var gattCmd = &cobra.Command{
	Use:   "gatt BD_ADDR",
	Short: "Enumerate a GATT database",
	Long: `Connect to an LE device and enumerate its full GATT database:
services, characteristics with best-effort value reads, and descriptors.`,
	Args: cobra.ExactArgs(1),
	RunE: runGatt,
}

var gattAddrType string

func init() {
	gattCmd.Flags().StringVar(&gattAddrType, "addr-type", "public", "Target address type (public, random)")
}

func runGatt(cmd *cobra.Command, args []string) error {
	target, err := hci.ParseBDAddr(args[0])
	if err != nil {
		return err
	}
	addrType, err := hci.ParseAddrType(gattAddrType)
	if err != nil {
		return err
	}

	d, _, err := newDispatcher(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true
	return d.Run(cmd.Context(), &app.Params{
		Mode:      app.ModeGATT,
		Iface:     iface(cmd),
		Target:    target,
		HasTarget: true,
		AddrType:  addrType,
	})
}
