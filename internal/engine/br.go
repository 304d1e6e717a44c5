package engine

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/b0rdst31n/bluing/internal/hci"
)

// brCommander is the BR/EDR command subset of the controller handle.
type brCommander interface {
	Inquiry(ctx context.Context, lengthUnits uint8, handler func(hci.InquiryResult)) error
	RemoteNameRequest(ctx context.Context, r hci.InquiryResult) (string, error)
	CreateConnection(ctx context.Context, addr hci.BDAddr) (uint16, error)
	ReadRemoteVersion(ctx context.Context, handle uint16) (hci.RemoteVersion, error)
	ReadRemoteFeatures(ctx context.Context, handle uint16) ([8]byte, error)
	ReadRemoteExtendedFeatures(ctx context.Context, handle uint16, page uint8) (uint8, [8]byte, error)
	Disconnect(ctx context.Context, handle uint16) error
	Close() error
}

const nameRequestTimeout = 10 * time.Second

// extendedFeaturesBit signals extended feature pages in LMP page 0.
const extendedFeaturesBit = 63

// BRScanner runs classic BR/EDR inquiry and LMP feature probing against a
// prepared controller interface.
type BRScanner struct {
	logger *logrus.Logger
	out    io.Writer
	open   func(iface string) (brCommander, error)
}

// NewBRScanner creates a BR scanner writing informational output to out.
func NewBRScanner(logger *logrus.Logger, out io.Writer) *BRScanner {
	return &BRScanner{
		logger: logger,
		out:    out,
		open: func(iface string) (brCommander, error) {
			return hci.Open(iface, logger)
		},
	}
}

// BRDevice is one device discovered by inquiry.
type BRDevice struct {
	Addr                   string `json:"addr"`
	Name                   string `json:"name,omitempty"`
	PageScanRepetitionMode uint8  `json:"page_scan_repetition_mode"`
	ClassOfDevice          uint32 `json:"class_of_device"`
	ClockOffset            uint16 `json:"clock_offset"`
	RSSI                   *int8  `json:"rssi,omitempty"`
}

// BRResult is the stored outcome of a BR inquiry.
type BRResult struct {
	Devices []BRDevice `json:"devices"`
}

func (r *BRResult) Kind() string { return "BR" }

func (r *BRResult) Render(w io.Writer) error {
	if len(r.Devices) == 0 {
		_, err := fmt.Fprintln(w, "No BR/EDR devices discovered")
		return err
	}
	for _, d := range r.Devices {
		fmt.Fprintf(w, "Addr:  %s\n", d.Addr)
		if d.Name != "" {
			fmt.Fprintf(w, "Name:  %s\n", d.Name)
		}
		fmt.Fprintf(w, "CoD:   0x%06X\n", d.ClassOfDevice)
		fmt.Fprintf(w, "PSRM:  %d\n", d.PageScanRepetitionMode)
		fmt.Fprintf(w, "Clock: 0x%04X\n", d.ClockOffset)
		if d.RSSI != nil {
			fmt.Fprintf(w, "RSSI:  %d dBm\n", *d.RSSI)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func (r *BRResult) Store(dir string) (string, error) {
	return storeJSON(dir, r.Kind(), "inquiry", r)
}

// Inquiry runs a GIAC inquiry for inquiryLen * 1.28s, then resolves the name
// of every discovered device that did not already advertise one.
func (s *BRScanner) Inquiry(ctx context.Context, iface string, inquiryLen uint8) (Result, error) {
	conn, err := s.open(iface)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	s.logger.WithFields(logrus.Fields{
		"iface":       iface,
		"inquiry_len": inquiryLen,
	}).Info("Starting BR/EDR inquiry")

	seen := make(map[hci.BDAddr]*hci.InquiryResult)
	var order []hci.BDAddr
	err = conn.Inquiry(ctx, inquiryLen, func(r hci.InquiryResult) {
		if prev, ok := seen[r.Addr]; ok {
			if r.HasRSSI {
				prev.RSSI, prev.HasRSSI = r.RSSI, true
			}
			if r.Name != "" {
				prev.Name = r.Name
			}
			return
		}
		cp := r
		seen[r.Addr] = &cp
		order = append(order, r.Addr)
		s.logger.WithField("addr", r.Addr).Info("Discovered BR device")
	})
	if err != nil {
		return nil, err
	}

	result := &BRResult{}
	for _, addr := range order {
		r := seen[addr]
		if r.Name == "" {
			r.Name = s.resolveName(ctx, conn, *r)
		}
		dev := BRDevice{
			Addr:                   r.Addr.String(),
			Name:                   r.Name,
			PageScanRepetitionMode: r.PageScanRepetitionMode,
			ClassOfDevice:          r.ClassOfDevice,
			ClockOffset:            r.ClockOffset,
		}
		if r.HasRSSI {
			rssi := r.RSSI
			dev.RSSI = &rssi
		}
		result.Devices = append(result.Devices, dev)
	}
	sort.Slice(result.Devices, func(i, j int) bool {
		return result.Devices[i].Addr < result.Devices[j].Addr
	})
	return result, nil
}

// resolveName is best-effort: unreachable peers simply stay unnamed.
func (s *BRScanner) resolveName(ctx context.Context, conn brCommander, r hci.InquiryResult) string {
	nctx, cancel := context.WithTimeout(ctx, nameRequestTimeout)
	defer cancel()

	name, err := conn.RemoteNameRequest(nctx, r)
	if err != nil {
		s.logger.WithField("addr", r.Addr).WithError(err).Debug("Remote name request failed")
		return ""
	}
	return name
}

// ScanLMPFeature connects to the target, reads its LMP version and feature
// pages and prints them. Informational: produces no stored result.
func (s *BRScanner) ScanLMPFeature(ctx context.Context, iface string, target hci.BDAddr) error {
	conn, err := s.open(iface)
	if err != nil {
		return err
	}
	defer conn.Close()

	handle, err := conn.CreateConnection(ctx, target)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Disconnect(ctx, handle); err != nil {
			s.logger.WithError(err).Debug("Disconnect failed")
		}
	}()

	version, err := conn.ReadRemoteVersion(ctx, handle)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "LMP version: %s (0x%02x), subversion 0x%04x\n",
		lmpVersionName(version.Version), version.Version, version.Subversion)
	fmt.Fprintf(s.out, "Manufacturer: %s\n", companyName(version.Manufacturer))

	features, err := conn.ReadRemoteFeatures(ctx, handle)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, "LMP features (page 0):")
	renderFeatureBits(s.out, features, lmpFeatureNames)

	if features[extendedFeaturesBit/8]&(1<<(extendedFeaturesBit%8)) != 0 {
		maxPage, ext, err := conn.ReadRemoteExtendedFeatures(ctx, handle, 1)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "LMP features (page 1 of %d):\n", maxPage)
		renderFeatureBits(s.out, ext, lmpExtFeatureNames)
	}
	return nil
}

// lmpVersionName maps an LMP VersNr to the Bluetooth core version.
func lmpVersionName(v uint8) string {
	versions := []string{
		"1.0b", "1.1", "1.2", "2.0", "2.1", "3.0", "4.0", "4.1", "4.2",
		"5.0", "5.1", "5.2", "5.3", "5.4", "6.0",
	}
	if int(v) < len(versions) {
		return "Bluetooth " + versions[v]
	}
	return "Unknown"
}

// companyName maps a few common Company Identifiers; the rest render numeric.
func companyName(id uint16) string {
	names := map[uint16]string{
		0x0000: "Ericsson AB",
		0x0002: "Intel Corp.",
		0x000A: "Qualcomm Technologies International, Ltd.",
		0x000F: "Broadcom Corporation",
		0x001D: "Qualcomm",
		0x0046: "MediaTek, Inc.",
		0x004C: "Apple, Inc.",
		0x0057: "Harman International Industries, Inc.",
		0x0075: "Samsung Electronics Co. Ltd.",
		0x00C4: "LG Electronics",
		0x00E0: "Google",
		0x0131: "Cypress Semiconductor",
		0x02D0: "Realtek Semiconductor Corporation",
	}
	if name, ok := names[id]; ok {
		return name
	}
	return fmt.Sprintf("Company 0x%04X", id)
}
