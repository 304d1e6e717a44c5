package engine

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	ble "github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	blehci "github.com/go-ble/ble/linux/hci"
	"github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/b0rdst31n/bluing/internal/hci"
)

// gattClient is the go-ble client surface the GATT scanner needs.
type gattClient interface {
	DiscoverProfile(force bool) (*ble.Profile, error)
	ReadCharacteristic(c *ble.Characteristic) ([]byte, error)
	CancelConnection() error
}

// GattScanner enumerates the GATT database of one LE peer.
type GattScanner struct {
	logger *logrus.Logger

	// dial connects to the peer; a variable so tests can fake the client.
	dial func(ctx context.Context, iface string, target hci.BDAddr, addrType hci.AddrType) (gattClient, error)
}

// NewGattScanner creates a GATT scanner.
func NewGattScanner(logger *logrus.Logger) *GattScanner {
	return &GattScanner{logger: logger, dial: dialGatt}
}

func dialGatt(ctx context.Context, iface string, target hci.BDAddr, addrType hci.AddrType) (gattClient, error) {
	id, err := hci.DeviceID(iface)
	if err != nil {
		return nil, err
	}
	dev, err := linux.NewDevice(ble.OptDeviceID(id))
	if err != nil {
		return nil, &UnavailableError{LEMode: true, Err: err}
	}
	return dev.Dial(ctx, peerAddr(target, addrType))
}

// peerAddr builds the dialable peer address. go-ble dials a bare address as
// public; a random peer must carry the random address marker.
func peerAddr(target hci.BDAddr, addrType hci.AddrType) ble.Addr {
	addr := ble.NewAddr(strings.ToLower(target.String()))
	if addrType == hci.AddrTypeRandom {
		return blehci.RandomAddress{Addr: addr}
	}
	return addr
}

// GATTDescriptor is one enumerated descriptor.
type GATTDescriptor struct {
	UUID string `json:"uuid"`
	Name string `json:"name,omitempty"`
}

// GATTCharacteristic is one enumerated characteristic with a best-effort
// value read.
type GATTCharacteristic struct {
	UUID        string           `json:"uuid"`
	Name        string           `json:"name,omitempty"`
	Properties  []string         `json:"properties"`
	Value       string           `json:"value,omitempty"`
	Descriptors []GATTDescriptor `json:"descriptors,omitempty"`
}

// GATTService is one enumerated service.
type GATTService struct {
	UUID            string               `json:"uuid"`
	Name            string               `json:"name,omitempty"`
	Characteristics []GATTCharacteristic `json:"characteristics"`
}

// GATTResult is the stored outcome of a GATT enumeration. Services keep
// their discovery order.
type GATTResult struct {
	Addr     string `json:"addr"`
	services *orderedmap.OrderedMap[string, *GATTService]
}

func (r *GATTResult) Kind() string { return "GATT" }

// Services returns the enumerated services in discovery order.
func (r *GATTResult) Services() []*GATTService {
	out := make([]*GATTService, 0, r.services.Len())
	for pair := r.services.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

func (r *GATTResult) Render(w io.Writer) error {
	fmt.Fprintf(w, "GATT database of %s\n", r.Addr)
	for _, svc := range r.Services() {
		fmt.Fprintf(w, "Service %s%s\n", svc.UUID, nameSuffix(svc.Name))
		for _, ch := range svc.Characteristics {
			fmt.Fprintf(w, "├── Characteristic %s%s [%s]\n",
				ch.UUID, nameSuffix(ch.Name), strings.Join(ch.Properties, ","))
			if ch.Value != "" {
				fmt.Fprintf(w, "│     value: %s\n", ch.Value)
			}
			for _, d := range ch.Descriptors {
				fmt.Fprintf(w, "│     descriptor %s%s\n", d.UUID, nameSuffix(d.Name))
			}
		}
	}
	return nil
}

func nameSuffix(name string) string {
	if name == "" {
		return ""
	}
	return " (" + name + ")"
}

// storedGATTResult is the JSON shape; the ordered map flattens to a slice.
type storedGATTResult struct {
	Addr     string         `json:"addr"`
	Services []*GATTService `json:"services"`
}

func (r *GATTResult) Store(dir string) (string, error) {
	return storeJSON(dir, r.Kind(), "enum", storedGATTResult{
		Addr:     r.Addr,
		Services: r.Services(),
	})
}

// Enumerate connects to the target and walks its full GATT database:
// services, characteristics with best-effort value reads, and descriptors.
func (s *GattScanner) Enumerate(ctx context.Context, iface string, target hci.BDAddr, addrType hci.AddrType) (Result, error) {
	client, err := s.dial(ctx, iface, target, addrType)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := client.CancelConnection(); err != nil {
			s.logger.WithError(err).Debug("Cancel connection failed")
		}
	}()

	s.logger.WithField("addr", target).Info("Discovering GATT profile")
	profile, err := client.DiscoverProfile(true)
	if err != nil {
		return nil, fmt.Errorf("failed to discover GATT profile: %w", err)
	}

	result := &GATTResult{
		Addr:     target.String(),
		services: orderedmap.New[string, *GATTService](),
	}
	for _, bleSvc := range profile.Services {
		svc := &GATTService{
			UUID: bleSvc.UUID.String(),
			Name: knownUUIDName(bleSvc.UUID.String()),
		}
		for _, bleChar := range bleSvc.Characteristics {
			ch := GATTCharacteristic{
				UUID:       bleChar.UUID.String(),
				Name:       knownUUIDName(bleChar.UUID.String()),
				Properties: propertyNames(bleChar.Property),
			}
			if bleChar.Property&ble.CharRead != 0 {
				if value, err := client.ReadCharacteristic(bleChar); err == nil {
					ch.Value = hex.EncodeToString(value)
				} else {
					s.logger.WithField("char", ch.UUID).WithError(err).Debug("Characteristic read failed")
				}
			}
			for _, d := range bleChar.Descriptors {
				ch.Descriptors = append(ch.Descriptors, GATTDescriptor{
					UUID: d.UUID.String(),
					Name: knownUUIDName(d.UUID.String()),
				})
			}
			svc.Characteristics = append(svc.Characteristics, ch)
		}
		result.services.Set(svc.UUID, svc)
	}
	return result, nil
}

func propertyNames(p ble.Property) []string {
	var names []string
	for _, entry := range []struct {
		bit  ble.Property
		name string
	}{
		{ble.CharBroadcast, "broadcast"},
		{ble.CharRead, "read"},
		{ble.CharWriteNR, "write-without-response"},
		{ble.CharWrite, "write"},
		{ble.CharNotify, "notify"},
		{ble.CharIndicate, "indicate"},
		{ble.CharSignedWrite, "authenticated-signed-writes"},
		{ble.CharExtended, "extended-properties"},
	} {
		if p&entry.bit != 0 {
			names = append(names, entry.name)
		}
	}
	return names
}

// knownUUIDName resolves a handful of well-known assigned numbers; unknown
// UUIDs render bare.
func knownUUIDName(uuid string) string {
	names := map[string]string{
		"1800": "Generic Access",
		"1801": "Generic Attribute",
		"180a": "Device Information",
		"180d": "Heart Rate",
		"180f": "Battery Service",
		"1812": "Human Interface Device",
		"2a00": "Device Name",
		"2a01": "Appearance",
		"2a05": "Service Changed",
		"2a19": "Battery Level",
		"2a24": "Model Number String",
		"2a25": "Serial Number String",
		"2a26": "Firmware Revision String",
		"2a29": "Manufacturer Name String",
		"2a37": "Heart Rate Measurement",
		"2900": "Characteristic Extended Properties",
		"2901": "Characteristic User Description",
		"2902": "Client Characteristic Configuration",
	}
	return names[strings.ToLower(uuid)]
}
