// Package hci is the controller handle: one open raw channel to a local
// Bluetooth controller, exposing the command set the normalizer and the
// BR/LE probe engines need. Every command returns an Outcome carrying the
// controller's status code; transport-level failures (unreachable
// controller, timeout) are returned as errors instead.
package hci

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Conn is one open channel to a named controller interface. It is owned
// exclusively by the call path that opened it and must be closed exactly
// once on every exit path.
type Conn interface {
	CancelInquiry(ctx context.Context) (Outcome, error)
	ExitPeriodicInquiryMode(ctx context.Context) (Outcome, error)
	DisableScan(ctx context.Context) (Outcome, error)
	DisableLEAdvertising(ctx context.Context) (Outcome, error)
	DisableLEScan(ctx context.Context) (Outcome, error)
	ClearEventFilters(ctx context.Context) (Outcome, error)
	ReadBDAddr(ctx context.Context) (Outcome, BDAddr, error)
	Reset(ctx context.Context) (Outcome, error)
	Close() error
}

// OpenFunc opens a Conn to the named interface. It is a parameter of the
// components that need a handle so tests can substitute a scripted
// controller.
type OpenFunc func(iface string) (Conn, error)

// DeviceID extracts the numeric device id from an interface name ("hci0" -> 0).
func DeviceID(iface string) (int, error) {
	s := strings.TrimPrefix(iface, "hci")
	if s == iface || s == "" {
		return 0, fmt.Errorf("invalid HCI interface name %q", iface)
	}
	id, err := strconv.Atoi(s)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid HCI interface name %q", iface)
	}
	return id, nil
}

// Command opcodes (OGF<<10 | OCF).
const (
	opInquiry                 = 0x0401
	opInquiryCancel           = 0x0402
	opExitPeriodicInquiryMode = 0x0404
	opCreateConnection        = 0x0405
	opDisconnect              = 0x0406
	opRemoteNameRequest       = 0x0419
	opReadRemoteFeatures      = 0x041B
	opReadRemoteExtFeatures   = 0x041C
	opReadRemoteVersion       = 0x041D
	opReset                   = 0x0C03
	opSetEventFilter          = 0x0C05
	opWriteScanEnable         = 0x0C1A
	opReadBDAddr              = 0x1009
	opLESetAdvertisingEnable  = 0x200A
	opLESetScanEnable         = 0x200C
	opLECreateConnection      = 0x200D
	opLEReadRemoteFeatures    = 0x2016
)

// Event codes.
const (
	evtInquiryComplete               = 0x01
	evtInquiryResult                 = 0x02
	evtConnectionComplete            = 0x03
	evtDisconnectionComplete         = 0x05
	evtRemoteNameRequestComplete     = 0x07
	evtReadRemoteFeaturesComplete    = 0x0B
	evtReadRemoteVersionComplete     = 0x0C
	evtCommandComplete               = 0x0E
	evtCommandStatus                 = 0x0F
	evtInquiryResultWithRSSI         = 0x22
	evtReadRemoteExtFeaturesComplete = 0x23
	evtExtendedInquiryResult         = 0x2F
	evtLEMeta                        = 0x3E

	leMetaConnectionComplete         = 0x01
	leMetaReadRemoteFeaturesComplete = 0x04
)

// GIAC, the General Inquiry Access Code LAP.
var giacLAP = [3]byte{0x33, 0x8B, 0x9E}

// InquiryResult is one device reported during a BR/EDR inquiry.
type InquiryResult struct {
	Addr                   BDAddr
	PageScanRepetitionMode uint8
	ClassOfDevice          uint32
	ClockOffset            uint16
	RSSI                   int8
	HasRSSI                bool
	// Name is filled from Extended Inquiry Response data when present.
	Name string
}

// RemoteVersion is the peer's LMP version information.
type RemoteVersion struct {
	Version      uint8
	Manufacturer uint16
	Subversion   uint16
}
