package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/b0rdst31n/bluing/internal/app"
	"github.com/b0rdst31n/bluing/internal/hci"
)

// brCmd represents the br command
var brCmd = &cobra.Command{
	Use:   "br [BD_ADDR]",
	Short: "Scan BR/EDR devices",
	Long: `Scan classic (BR/EDR) Bluetooth devices.

Without flags, runs an HCI inquiry and resolves the name of every
discovered device. With --lmp-feature, connects to the given device and
reads its LMP version and supported feature pages instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBR,
}

var (
	brInquiryLen uint8
	brLMPFeature bool
)

func init() {
	brCmd.Flags().Uint8Var(&brInquiryLen, "inquiry-len", 8, "Inquiry duration, in units of 1.28 s")
	brCmd.Flags().BoolVar(&brLMPFeature, "lmp-feature", false, "Probe the LMP features of BD_ADDR instead of scanning")
}

func runBR(cmd *cobra.Command, args []string) error {
	p := &app.Params{
		Mode:       app.ModeBRInquiry,
		Iface:      iface(cmd),
		InquiryLen: brInquiryLen,
	}
	if len(args) == 1 {
		target, err := hci.ParseBDAddr(args[0])
		if err != nil {
			return err
		}
		p.Target, p.HasTarget = target, true
	}
	if brLMPFeature {
		if !p.HasTarget {
			return fmt.Errorf("--lmp-feature requires a BD_ADDR argument")
		}
		p.Mode = app.ModeBRLMPFeature
	}

	d, _, err := newDispatcher(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true
	return d.Run(cmd.Context(), p)
}
