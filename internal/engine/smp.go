package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/b0rdst31n/bluing/internal/hci"
)

// SMP runs over L2CAP channel 6 on LE links.
const smpCID = 0x0006

// SMP command codes.
const (
	smpPairingRequest  = 0x01
	smpPairingResponse = 0x02
	smpPairingFailed   = 0x05
)

// IOCapability is the value advertised in the SMP Pairing Request.
type IOCapability uint8

const (
	IOCapDisplayOnly     IOCapability = 0x00
	IOCapDisplayYesNo    IOCapability = 0x01
	IOCapKeyboardOnly    IOCapability = 0x02
	IOCapNoInputNoOutput IOCapability = 0x03
	IOCapKeyboardDisplay IOCapability = 0x04
)

var ioCapNames = map[IOCapability]string{
	IOCapDisplayOnly:     "DisplayOnly",
	IOCapDisplayYesNo:    "DisplayYesNo",
	IOCapKeyboardOnly:    "KeyboardOnly",
	IOCapNoInputNoOutput: "NoInputNoOutput",
	IOCapKeyboardDisplay: "KeyboardDisplay",
}

func (c IOCapability) String() string {
	if name, ok := ioCapNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Reserved (0x%02x)", uint8(c))
}

// ParseIOCapability parses the CLI spelling of an IO capability.
func ParseIOCapability(s string) (IOCapability, error) {
	for c, name := range ioCapNames {
		if strings.EqualFold(name, s) {
			return c, nil
		}
	}
	if s == "" {
		return IOCapNoInputNoOutput, nil
	}
	return 0, fmt.Errorf("invalid IO capability %q", s)
}

var pairingFailedReasons = map[uint8]string{
	0x01: "Passkey Entry Failed",
	0x02: "OOB Not Available",
	0x03: "Authentication Requirements",
	0x04: "Confirm Value Failed",
	0x05: "Pairing Not Supported",
	0x06: "Encryption Key Size",
	0x07: "Command Not Supported",
	0x08: "Unspecified Reason",
	0x09: "Repeated Attempts",
	0x0A: "Invalid Parameters",
	0x0B: "DHKey Check Failed",
	0x0C: "Numeric Comparison Failed",
	0x0D: "BR/EDR pairing in progress",
	0x0E: "Cross-transport Key Derivation/Generation not allowed",
}

// pairingFeatures is the decoded body of a Pairing Request/Response.
type pairingFeatures struct {
	IOCap      IOCapability
	OOB        bool
	AuthReq    uint8
	MaxKeySize uint8
	InitKeys   uint8
	RespKeys   uint8
}

func (f pairingFeatures) render(w *strings.Builder) {
	fmt.Fprintf(w, "IO capability:  %s\n", f.IOCap)
	fmt.Fprintf(w, "OOB data:       %v\n", f.OOB)
	fmt.Fprintf(w, "Bonding:        %v\n", f.AuthReq&0x01 != 0)
	fmt.Fprintf(w, "MITM:           %v\n", f.AuthReq&0x04 != 0)
	fmt.Fprintf(w, "Secure Conn:    %v\n", f.AuthReq&0x08 != 0)
	fmt.Fprintf(w, "Keypress:       %v\n", f.AuthReq&0x10 != 0)
	fmt.Fprintf(w, "Max key size:   %d\n", f.MaxKeySize)
	fmt.Fprintf(w, "Init key dist:  %s\n", keyDistNames(f.InitKeys))
	fmt.Fprintf(w, "Resp key dist:  %s\n", keyDistNames(f.RespKeys))
}

func keyDistNames(mask uint8) string {
	if mask == 0 {
		return "none"
	}
	var keys []string
	if mask&0x01 != 0 {
		keys = append(keys, "EncKey")
	}
	if mask&0x02 != 0 {
		keys = append(keys, "IdKey")
	}
	if mask&0x04 != 0 {
		keys = append(keys, "SignKey")
	}
	if mask&0x08 != 0 {
		keys = append(keys, "LinkKey")
	}
	return strings.Join(keys, ", ")
}

// DetectPairingFeature connects to the target and sends an SMP Pairing
// Request, then prints the peer's Pairing Response or its refusal reason.
// Informational: produces no stored result.
func (s *LEScanner) DetectPairingFeature(ctx context.Context, iface string, target hci.BDAddr, addrType hci.AddrType, timeout time.Duration, ioCap IOCapability) error {
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

	// Pairing Request advertising bonding + MITM + Secure Connections so the
	// peer reveals its full capability set.
	request := []byte{
		smpPairingRequest,
		byte(ioCap),
		0x00, // no OOB data
		0x0D, // bonding | MITM | SC
		16,   // max encryption key size
		0x07, // initiator keys: enc, id, sign
		0x07, // responder keys
	}
	if err := conn.SendACL(handle, smpCID, request); err != nil {
		return err
	}

	for {
		frame, err := conn.ReadACL(cctx, handle, smpCID)
		if err != nil {
			return err
		}
		if len(frame) == 0 {
			continue
		}
		switch frame[0] {
		case smpPairingResponse:
			if len(frame) < 7 {
				return fmt.Errorf("short SMP Pairing Response")
			}
			var b strings.Builder
			fmt.Fprintf(&b, "Pairing response from %s:\n", target)
			pairingFeatures{
				IOCap:      IOCapability(frame[1]),
				OOB:        frame[2] != 0,
				AuthReq:    frame[3],
				MaxKeySize: frame[4],
				InitKeys:   frame[5],
				RespKeys:   frame[6],
			}.render(&b)
			_, err := fmt.Fprint(s.out, b.String())
			return err
		case smpPairingFailed:
			reason := "Unknown"
			if len(frame) >= 2 {
				if name, ok := pairingFailedReasons[frame[1]]; ok {
					reason = name
				} else {
					reason = fmt.Sprintf("0x%02x", frame[1])
				}
			}
			_, err := fmt.Fprintf(s.out, "Pairing failed: %s\n", reason)
			return err
		}
	}
}
