package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/b0rdst31n/bluing/internal/app"
	"github.com/b0rdst31n/bluing/internal/engine"
	"github.com/b0rdst31n/bluing/internal/hci"
)

// leCmd represents the le command
var leCmd = &cobra.Command{
	Use:   "le [BD_ADDR]",
	Short: "Scan LE devices",
	Long: `Scan Bluetooth Low Energy devices.

Without flags, scans for advertising devices for --timeout. The probe
flags target one device instead: --ll-feature reads its link-layer
features, --smp-feature detects its pairing features. --adv sniffs
advertising channels passively through micro:bit hardware and needs no
local controller.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLE,
}

var (
	leTimeout      time.Duration
	leScanType     string
	leSort         string
	leLLFeature    bool
	leSMPFeature   bool
	leSniff        bool
	leSniffChannel int
	leSniffPorts   []string
	leAddrType     string
	leIOCap        string
)

func init() {
	leCmd.Flags().DurationVar(&leTimeout, "timeout", 10*time.Second, "Scan or probe duration")
	leCmd.Flags().StringVar(&leScanType, "scan-type", "active", "LE scan type (active, passive)")
	leCmd.Flags().StringVar(&leSort, "sort", "", "Sort scan results (rssi)")
	leCmd.Flags().BoolVar(&leLLFeature, "ll-feature", false, "Probe the LL features of BD_ADDR")
	leCmd.Flags().BoolVar(&leSMPFeature, "smp-feature", false, "Detect the SMP pairing features of BD_ADDR")
	leCmd.Flags().BoolVar(&leSniff, "adv", false, "Sniff advertising physical channel PDUs (micro:bit required)")
	leCmd.Flags().IntVar(&leSniffChannel, "channel", 0, "Pin all sniffer ports to one advertising channel (37, 38 or 39)")
	leCmd.Flags().StringSliceVar(&leSniffPorts, "port", nil, "Sniffer serial ports (default: autodiscover)")
	leCmd.Flags().StringVar(&leAddrType, "addr-type", "public", "Target address type (public, random)")
	leCmd.Flags().StringVar(&leIOCap, "io-capability", "", "IO capability announced in the SMP pairing request")
}

func runLE(cmd *cobra.Command, args []string) error {
	exclusive := 0
	for _, set := range []bool{leLLFeature, leSMPFeature, leSniff} {
		if set {
			exclusive++
		}
	}
	if exclusive > 1 {
		return fmt.Errorf("--ll-feature, --smp-feature and --adv are mutually exclusive")
	}
	if leSort != "" && leSort != "rssi" {
		return fmt.Errorf("invalid sort key '%s': only rssi is supported", leSort)
	}
	scanType, err := engine.ParseScanType(leScanType)
	if err != nil {
		return err
	}

	p := &app.Params{
		Mode:       app.ModeLEDeviceScan,
		Iface:      iface(cmd),
		Timeout:    leTimeout,
		ScanType:   scanType,
		SortByRSSI: leSort == "rssi",
	}
	if len(args) == 1 {
		target, err := hci.ParseBDAddr(args[0])
		if err != nil {
			return err
		}
		p.Target, p.HasTarget = target, true
	}
	addrType, err := hci.ParseAddrType(leAddrType)
	if err != nil {
		return err
	}
	p.AddrType = addrType

	switch {
	case leLLFeature:
		p.Mode = app.ModeLELLFeature
	case leSMPFeature:
		p.Mode = app.ModeLESMPFeature
		ioCap, err := engine.ParseIOCapability(leIOCap)
		if err != nil {
			return err
		}
		p.IOCap = ioCap
	case leSniff:
		p.Mode = app.ModeLEPassiveSniff
		p.SniffChannel = leSniffChannel
		p.SniffPorts = leSniffPorts
	}

	d, _, err := newDispatcher(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	if p.Mode == app.ModeLEDeviceScan {
		progress := NewCountdownProgressPrinter("Scanning", leTimeout)
		progress.Start()
		d.PreRender = progress.Stop
		defer progress.Stop()
	}
	return d.Run(cmd.Context(), p)
}
