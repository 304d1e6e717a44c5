// Package app dispatches one validated invocation to exactly one scan
// engine, after normalizing the chosen controller.
package app

import (
	"fmt"
	"time"

	"github.com/b0rdst31n/bluing/internal/engine"
	"github.com/b0rdst31n/bluing/internal/hci"
)

// ScanMode selects the single primary action of an invocation.
type ScanMode int

const (
	ModeBRInquiry ScanMode = iota
	ModeBRLMPFeature
	ModeLEDeviceScan
	ModeLELLFeature
	ModeLESMPFeature
	ModeLEPassiveSniff
	ModeSDP
	ModeGATT
	ModeClean
)

var scanModeNames = map[ScanMode]string{
	ModeBRInquiry:      "br-inquiry",
	ModeBRLMPFeature:   "br-lmp-feature",
	ModeLEDeviceScan:   "le-scan",
	ModeLELLFeature:    "le-ll-feature",
	ModeLESMPFeature:   "le-smp-feature",
	ModeLEPassiveSniff: "le-sniff",
	ModeSDP:            "sdp",
	ModeGATT:           "gatt",
	ModeClean:          "clean",
}

func (m ScanMode) String() string {
	if name, ok := scanModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("ScanMode(%d)", int(m))
}

// Params is the validated parameter set of one invocation, built by the
// command layer. Exactly one mode is set.
type Params struct {
	Mode ScanMode

	// Iface is the controller to use; empty means "pick the default".
	Iface string

	// Target and AddrType apply to modes that address one peer.
	Target    hci.BDAddr
	HasTarget bool
	AddrType  hci.AddrType

	Timeout    time.Duration
	InquiryLen uint8
	IOCap      engine.IOCapability
	ScanType   engine.ScanType
	SortByRSSI bool

	// Sniffer ports and channel; empty ports means autodiscover.
	SniffPorts   []string
	SniffChannel int
}

// targetModes are the modes that cannot run without a peer address.
var targetModes = map[ScanMode]bool{
	ModeBRLMPFeature: true,
	ModeLELLFeature:  true,
	ModeLESMPFeature: true,
	ModeSDP:          true,
	ModeGATT:         true,
	ModeClean:        true,
}

// Validate rejects parameter sets the dispatcher cannot act on. The command
// layer validates flag shapes; this guards the dispatcher's own contract.
func (p *Params) Validate() error {
	if _, ok := scanModeNames[p.Mode]; !ok {
		return fmt.Errorf("unknown scan mode %d", int(p.Mode))
	}
	if targetModes[p.Mode] && !p.HasTarget {
		return fmt.Errorf("%s requires a target address", p.Mode)
	}
	if p.Mode == ModeLEPassiveSniff {
		switch p.SniffChannel {
		case 0, 37, 38, 39:
		default:
			return fmt.Errorf("invalid advertising channel %d, must be 37, 38 or 39", p.SniffChannel)
		}
	}
	return nil
}
