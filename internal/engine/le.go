package engine

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/cornelk/hashmap"
	ble "github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/go-ble/ble/linux/hci/cmd"
	"github.com/sirupsen/logrus"

	"github.com/b0rdst31n/bluing/internal/hci"
)

// ScanType selects how the controller performs an LE device scan.
type ScanType uint8

const (
	// ScanActive sends SCAN_REQ and collects scan response data.
	ScanActive ScanType = iota
	// ScanPassive listens without transmitting.
	ScanPassive
)

func (t ScanType) String() string {
	if t == ScanPassive {
		return "passive"
	}
	return "active"
}

// ParseScanType maps a scan type name; empty selects active scanning.
func ParseScanType(s string) (ScanType, error) {
	switch strings.ToLower(s) {
	case "", "active":
		return ScanActive, nil
	case "passive":
		return ScanPassive, nil
	default:
		return 0, fmt.Errorf("invalid scan type '%s': must be active or passive", s)
	}
}

// scanDevice is the go-ble surface the LE scanner needs.
type scanDevice interface {
	Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error
	Stop() error
}

// leCommander is the LE probe subset of the controller handle.
type leCommander interface {
	LECreateConnection(ctx context.Context, addr hci.BDAddr, addrType hci.AddrType) (uint16, error)
	LEReadRemoteFeatures(ctx context.Context, handle uint16) ([8]byte, error)
	SendACL(handle uint16, cid uint16, payload []byte) error
	ReadACL(ctx context.Context, handle uint16, cid uint16) ([]byte, error)
	Disconnect(ctx context.Context, handle uint16) error
	Close() error
}

// LEScanner discovers LE devices and probes their link-layer and pairing
// features.
type LEScanner struct {
	logger *logrus.Logger
	out    io.Writer

	// factory creates the scanning device; a variable so tests can override it.
	factory func(iface string, scanType ScanType) (scanDevice, error)
	open    func(iface string) (leCommander, error)
}

// NewLEScanner creates an LE scanner writing informational output to out.
func NewLEScanner(logger *logrus.Logger, out io.Writer) *LEScanner {
	return &LEScanner{
		logger:  logger,
		out:     out,
		factory: newLinuxScanDevice,
		open: func(iface string) (leCommander, error) {
			return hci.Open(iface, logger)
		},
	}
}

func newLinuxScanDevice(iface string, scanType ScanType) (scanDevice, error) {
	id, err := hci.DeviceID(iface)
	if err != nil {
		return nil, err
	}
	dev, err := linux.NewDevice(ble.OptDeviceID(id))
	if err != nil {
		return nil, &UnavailableError{LEMode: true, Err: err}
	}
	// go-ble scans actively by default; reconfigure the controller for a
	// passive scan before the scan is enabled.
	if scanType == ScanPassive {
		if err := dev.HCI.Send(&cmd.LESetScanParameters{
			LEScanType:           0x00,   // passive
			LEScanInterval:       0x4000, // N * 0.625 ms
			LEScanWindow:         0x4000,
			OwnAddressType:       0x00, // public
			ScanningFilterPolicy: 0x00, // accept all
		}, nil); err != nil {
			_ = dev.Stop()
			return nil, &UnavailableError{LEMode: true, Err: err}
		}
	}
	return dev, nil
}

// LEScanOptions configures an LE device scan.
type LEScanOptions struct {
	Timeout    time.Duration
	ScanType   ScanType
	SortByRSSI bool
}

// LEDevice is one discovered LE device.
type LEDevice struct {
	Addr             string   `json:"addr"`
	Name             string   `json:"name,omitempty"`
	RSSI             int      `json:"rssi"`
	Connectable      bool     `json:"connectable"`
	Services         []string `json:"services,omitempty"`
	ManufacturerData string   `json:"manufacturer_data,omitempty"`
}

// LEResult is the stored outcome of an LE device scan.
type LEResult struct {
	Devices []LEDevice `json:"devices"`
}

func (r *LEResult) Kind() string { return "LE" }

func (r *LEResult) Render(w io.Writer) error {
	if len(r.Devices) == 0 {
		_, err := fmt.Fprintln(w, "No LE devices discovered")
		return err
	}
	for _, d := range r.Devices {
		fmt.Fprintf(w, "Addr:        %s\n", d.Addr)
		if d.Name != "" {
			fmt.Fprintf(w, "Name:        %s\n", d.Name)
		}
		fmt.Fprintf(w, "RSSI:        %d dBm\n", d.RSSI)
		fmt.Fprintf(w, "Connectable: %v\n", d.Connectable)
		for _, s := range d.Services {
			fmt.Fprintf(w, "Service:     %s\n", s)
		}
		if d.ManufacturerData != "" {
			fmt.Fprintf(w, "Mfr data:    %s\n", d.ManufacturerData)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func (r *LEResult) Store(dir string) (string, error) {
	return storeJSON(dir, r.Kind(), "scan", r)
}

// ScanDevices scans for opts.Timeout and returns the deduplicated devices.
func (s *LEScanner) ScanDevices(ctx context.Context, iface string, opts LEScanOptions) (Result, error) {
	dev, err := s.factory(iface, opts.ScanType)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := dev.Stop(); err != nil {
			s.logger.WithError(err).Debug("Stopping LE scan device failed")
		}
	}()

	s.logger.WithFields(logrus.Fields{
		"iface":     iface,
		"timeout":   opts.Timeout,
		"scan_type": opts.ScanType,
	}).Info("Starting LE scan")

	devices := hashmap.New[string, *LEDevice]()
	sctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	err = dev.Scan(sctx, false, func(adv ble.Advertisement) {
		addr := adv.Addr().String()
		entry, ok := devices.Get(addr)
		if !ok {
			entry, _ = devices.GetOrInsert(addr, &LEDevice{Addr: addr})
			s.logger.WithField("addr", addr).Info("Discovered LE device")
		}
		entry.RSSI = adv.RSSI()
		entry.Connectable = adv.Connectable()
		if name := adv.LocalName(); name != "" {
			entry.Name = name
		}
		if svcs := adv.Services(); len(svcs) > 0 {
			entry.Services = entry.Services[:0]
			for _, u := range svcs {
				entry.Services = append(entry.Services, u.String())
			}
		}
		if md := adv.ManufacturerData(); len(md) > 0 {
			entry.ManufacturerData = hex.EncodeToString(md)
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, &UnavailableError{LEMode: true, Err: err}
	}
	// Only the scan-scoped deadline is normal completion. A scan cut short
	// by the parent context must surface as a cancellation, not a result.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	result := &LEResult{}
	devices.Range(func(_ string, d *LEDevice) bool {
		result.Devices = append(result.Devices, *d)
		return true
	})
	if opts.SortByRSSI {
		sort.Slice(result.Devices, func(i, j int) bool {
			return result.Devices[i].RSSI > result.Devices[j].RSSI
		})
	} else {
		sort.Slice(result.Devices, func(i, j int) bool {
			return result.Devices[i].Addr < result.Devices[j].Addr
		})
	}

	s.logger.WithField("device_count", len(result.Devices)).Info("LE scan completed")
	return result, nil
}

// ScanLLFeature connects to the target and prints its Link Layer feature
// set. Informational: produces no stored result.
func (s *LEScanner) ScanLLFeature(ctx context.Context, iface string, target hci.BDAddr, addrType hci.AddrType, timeout time.Duration) error {
	conn, err := s.open(iface)
	if err != nil {
		return err
	}
	defer conn.Close()

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	handle, err := conn.LECreateConnection(cctx, target, addrType)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Disconnect(ctx, handle); err != nil {
			s.logger.WithError(err).Debug("Disconnect failed")
		}
	}()

	features, err := conn.LEReadRemoteFeatures(cctx, handle)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "LL features of %s (%s):\n", target, addrType)
	renderFeatureBits(s.out, features, llFeatureNames)
	return nil
}
