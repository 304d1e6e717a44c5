package hci

import (
	"fmt"
	"strings"
)

// BDAddr is a Bluetooth device address in display order (most significant
// byte first). On the wire HCI carries addresses little-endian; use
// BDAddrFromLE when parsing event parameters.
type BDAddr [6]byte

// BDAddrFromLE builds a BDAddr from the 6 little-endian wire bytes.
func BDAddrFromLE(b []byte) BDAddr {
	var a BDAddr
	for i := 0; i < 6 && i < len(b); i++ {
		a[5-i] = b[i]
	}
	return a
}

// LE returns the address in little-endian wire order.
func (a BDAddr) LE() [6]byte {
	var b [6]byte
	for i := 0; i < 6; i++ {
		b[i] = a[5-i]
	}
	return b
}

// String renders the address uppercase colon-separated, the form bluetoothd
// uses for its on-disk cache directories.
func (a BDAddr) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", a[0], a[1], a[2], a[3], a[4], a[5])
}

// IsZero reports whether the address is all zeroes.
func (a BDAddr) IsZero() bool { return a == BDAddr{} }

// ParseBDAddr parses "AA:BB:CC:DD:EE:FF" (case-insensitive).
func ParseBDAddr(s string) (BDAddr, error) {
	var a BDAddr
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return a, fmt.Errorf("invalid BD_ADDR %q", s)
	}
	for i, p := range parts {
		var b byte
		if _, err := fmt.Sscanf(p, "%02x", &b); err != nil || len(p) != 2 {
			return a, fmt.Errorf("invalid BD_ADDR %q", s)
		}
		a[i] = b
	}
	return a, nil
}

// AddrType selects public or random device addressing for LE operations.
type AddrType uint8

const (
	AddrTypePublic AddrType = 0x00
	AddrTypeRandom AddrType = 0x01
)

// ParseAddrType parses the CLI spelling of an address type.
func ParseAddrType(s string) (AddrType, error) {
	switch strings.ToLower(s) {
	case "", "public":
		return AddrTypePublic, nil
	case "random":
		return AddrTypeRandom, nil
	default:
		return 0, fmt.Errorf("invalid address type %q (must be public or random)", s)
	}
}

func (t AddrType) String() string {
	if t == AddrTypeRandom {
		return "random"
	}
	return "public"
}
