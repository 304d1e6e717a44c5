package hci

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// HCI socket option constants not exported by x/sys/unix.
const (
	solHCI       = 0x00
	hciFilterOpt = 0x02
)

// Packet indicator bytes.
const (
	pktCommand = 0x01
	pktACLData = 0x02
	pktEvent   = 0x04
)

const pollSlice = 100 * time.Millisecond

// Socket is a raw HCI channel to one controller. It implements Conn plus
// the command set the BR and LE probe engines use. Not safe for concurrent
// use; ownership passes linearly between components.
type Socket struct {
	fd     int
	dev    int
	logger *logrus.Logger

	mu     sync.Mutex
	closed bool
}

// Open opens a raw HCI socket bound to the named interface.
func Open(iface string, logger *logrus.Logger) (*Socket, error) {
	if logger == nil {
		logger = logrus.New()
	}
	dev, err := DeviceID(iface)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.BTPROTO_HCI)
	if err != nil {
		return nil, fmt.Errorf("failed to open HCI socket: %w", err)
	}

	sa := &unix.SockaddrHCI{Dev: uint16(dev), Channel: unix.HCI_CHANNEL_RAW}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("failed to bind HCI socket to %s: %w", iface, err)
	}

	s := &Socket{fd: fd, dev: dev, logger: logger}
	if err := s.setFilter(); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	logger.WithField("iface", iface).Debug("Opened HCI socket")
	return s, nil
}

// OpenConn adapts Open to the OpenFunc signature.
func OpenConn(logger *logrus.Logger) OpenFunc {
	return func(iface string) (Conn, error) {
		return Open(iface, logger)
	}
}

// setFilter admits all events and ACL data on this socket. Layout of
// struct hci_filter: type_mask u32, event_mask u32[2], opcode u16.
func (s *Socket) setFilter() error {
	var f [14]byte
	binary.LittleEndian.PutUint32(f[0:4], 1<<pktEvent|1<<pktACLData)
	binary.LittleEndian.PutUint32(f[4:8], 0xffffffff)
	binary.LittleEndian.PutUint32(f[8:12], 0xffffffff)
	if err := unix.SetsockoptString(s.fd, solHCI, hciFilterOpt, string(f[:])); err != nil {
		return fmt.Errorf("failed to set HCI filter: %w", err)
	}
	return nil
}

// Close releases the socket. Safe to call once per handle.
func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return unix.Close(s.fd)
}

// --- packet I/O ---

func (s *Socket) writePacket(pkt []byte) error {
	if _, err := unix.Write(s.fd, pkt); err != nil {
		return fmt.Errorf("failed to write HCI packet: %w", err)
	}
	return nil
}

// readPacket blocks for the next packet, honoring ctx. Polling is sliced so
// cancellation is observed within pollSlice.
func (s *Socket) readPacket(ctx context.Context) ([]byte, error) {
	buf := make([]byte, 512)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fds := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, int(pollSlice.Milliseconds()))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("poll on HCI socket failed: %w", err)
		}
		if n == 0 {
			continue
		}
		rn, err := unix.Read(s.fd, buf)
		if err != nil {
			return nil, fmt.Errorf("failed to read HCI packet: %w", err)
		}
		if rn == 0 {
			continue
		}
		pkt := make([]byte, rn)
		copy(pkt, buf[:rn])
		return pkt, nil
	}
}

// readEvent returns the next event packet's code and parameters, discarding
// non-event traffic.
func (s *Socket) readEvent(ctx context.Context) (byte, []byte, error) {
	for {
		pkt, err := s.readPacket(ctx)
		if err != nil {
			return 0, nil, err
		}
		if len(pkt) < 3 || pkt[0] != pktEvent {
			continue
		}
		code, plen := pkt[1], int(pkt[2])
		if len(pkt) < 3+plen {
			continue
		}
		return code, pkt[3 : 3+plen], nil
	}
}

// waitEvent discards events until one with the wanted code arrives.
func (s *Socket) waitEvent(ctx context.Context, want byte) ([]byte, error) {
	for {
		code, params, err := s.readEvent(ctx)
		if err != nil {
			return nil, err
		}
		if code == want {
			return params, nil
		}
	}
}

// cmd issues a command completed by a Command Complete event and returns its
// return parameters (status first).
func (s *Socket) cmd(ctx context.Context, opcode uint16, params []byte) ([]byte, error) {
	pkt := make([]byte, 4+len(params))
	pkt[0] = pktCommand
	binary.LittleEndian.PutUint16(pkt[1:3], opcode)
	pkt[3] = byte(len(params))
	copy(pkt[4:], params)
	if err := s.writePacket(pkt); err != nil {
		return nil, err
	}

	for {
		code, ev, err := s.readEvent(ctx)
		if err != nil {
			return nil, err
		}
		switch code {
		case evtCommandComplete:
			// num_pkts(1) opcode(2) return params
			if len(ev) >= 4 && binary.LittleEndian.Uint16(ev[1:3]) == opcode {
				return ev[3:], nil
			}
		case evtCommandStatus:
			// status(1) num_pkts(1) opcode(2)
			if len(ev) >= 4 && binary.LittleEndian.Uint16(ev[2:4]) == opcode {
				return ev[0:1], nil
			}
		}
	}
}

// cmdOutcome wraps cmd for commands whose only return parameter is a status.
func (s *Socket) cmdOutcome(ctx context.Context, opcode uint16, params []byte) (Outcome, error) {
	ret, err := s.cmd(ctx, opcode, params)
	if err != nil {
		return Outcome{}, err
	}
	if len(ret) < 1 {
		return Outcome{}, fmt.Errorf("short command complete for opcode 0x%04x", opcode)
	}
	return Outcome{Status: Status(ret[0])}, nil
}

// cmdStatus issues a command acknowledged by a Command Status event; the
// operation itself completes with a later event.
func (s *Socket) cmdStatus(ctx context.Context, opcode uint16, params []byte) (Outcome, error) {
	return s.cmdOutcome(ctx, opcode, params)
}

// --- Conn (normalization command set) ---

func (s *Socket) CancelInquiry(ctx context.Context) (Outcome, error) {
	return s.cmdOutcome(ctx, opInquiryCancel, nil)
}

func (s *Socket) ExitPeriodicInquiryMode(ctx context.Context) (Outcome, error) {
	return s.cmdOutcome(ctx, opExitPeriodicInquiryMode, nil)
}

// DisableScan turns off page and inquiry scan.
func (s *Socket) DisableScan(ctx context.Context) (Outcome, error) {
	return s.cmdOutcome(ctx, opWriteScanEnable, []byte{0x00})
}

func (s *Socket) DisableLEAdvertising(ctx context.Context) (Outcome, error) {
	return s.cmdOutcome(ctx, opLESetAdvertisingEnable, []byte{0x00})
}

// DisableLEScan stops LE scanning, flushing duplicate filtering.
func (s *Socket) DisableLEScan(ctx context.Context) (Outcome, error) {
	return s.cmdOutcome(ctx, opLESetScanEnable, []byte{0x00, 0x01})
}

// ClearEventFilters issues Set Event Filter with filter type 0x00.
func (s *Socket) ClearEventFilters(ctx context.Context) (Outcome, error) {
	return s.cmdOutcome(ctx, opSetEventFilter, []byte{0x00})
}

func (s *Socket) ReadBDAddr(ctx context.Context) (Outcome, BDAddr, error) {
	ret, err := s.cmd(ctx, opReadBDAddr, nil)
	if err != nil {
		return Outcome{}, BDAddr{}, err
	}
	if len(ret) < 7 {
		return Outcome{}, BDAddr{}, fmt.Errorf("short Read BD_ADDR response")
	}
	return Outcome{Status: Status(ret[0])}, BDAddrFromLE(ret[1:7]), nil
}

func (s *Socket) Reset(ctx context.Context) (Outcome, error) {
	return s.cmdOutcome(ctx, opReset, nil)
}

// --- BR/EDR engine command set ---

// Inquiry runs a GIAC inquiry for lengthUnits * 1.28s and streams results to
// handler until the controller reports Inquiry Complete.
func (s *Socket) Inquiry(ctx context.Context, lengthUnits uint8, handler func(InquiryResult)) error {
	params := []byte{giacLAP[0], giacLAP[1], giacLAP[2], lengthUnits, 0x00}
	outcome, err := s.cmdStatus(ctx, opInquiry, params)
	if err != nil {
		return err
	}
	if !outcome.OK() {
		return &StatusError{Op: "Inquiry", Status: outcome.Status}
	}

	for {
		code, ev, err := s.readEvent(ctx)
		if err != nil {
			return err
		}
		switch code {
		case evtInquiryComplete:
			return nil
		case evtInquiryResult:
			for _, r := range parseInquiryResults(ev) {
				handler(r)
			}
		case evtInquiryResultWithRSSI:
			for _, r := range parseInquiryResultsRSSI(ev) {
				handler(r)
			}
		case evtExtendedInquiryResult:
			if r, ok := parseExtendedInquiryResult(ev); ok {
				handler(r)
			}
		}
	}
}

// RemoteNameRequest resolves the user-friendly name of a discovered BR device.
func (s *Socket) RemoteNameRequest(ctx context.Context, r InquiryResult) (string, error) {
	le := r.Addr.LE()
	params := make([]byte, 10)
	copy(params[0:6], le[:])
	params[6] = r.PageScanRepetitionMode
	params[7] = 0x00 // reserved
	binary.LittleEndian.PutUint16(params[8:10], r.ClockOffset)

	outcome, err := s.cmdStatus(ctx, opRemoteNameRequest, params)
	if err != nil {
		return "", err
	}
	if !outcome.OK() {
		return "", &StatusError{Op: "Remote Name Request", Status: outcome.Status}
	}

	for {
		ev, err := s.waitEvent(ctx, evtRemoteNameRequestComplete)
		if err != nil {
			return "", err
		}
		if len(ev) < 7 {
			continue
		}
		if BDAddrFromLE(ev[1:7]) != r.Addr {
			continue
		}
		if Status(ev[0]) != StatusSuccess {
			return "", &StatusError{Op: "Remote Name Request", Status: Status(ev[0])}
		}
		return cString(ev[7:]), nil
	}
}

// CreateConnection pages the peer and returns the ACL connection handle.
func (s *Socket) CreateConnection(ctx context.Context, addr BDAddr) (uint16, error) {
	le := addr.LE()
	params := make([]byte, 13)
	copy(params[0:6], le[:])
	binary.LittleEndian.PutUint16(params[6:8], 0xCC18) // all DM/DH packet types
	params[8] = 0x02                                   // page scan repetition mode R2
	params[9] = 0x00
	binary.LittleEndian.PutUint16(params[10:12], 0x0000)
	params[12] = 0x01 // allow role switch

	outcome, err := s.cmdStatus(ctx, opCreateConnection, params)
	if err != nil {
		return 0, err
	}
	if !outcome.OK() {
		return 0, &StatusError{Op: "Create Connection", Status: outcome.Status}
	}

	for {
		ev, err := s.waitEvent(ctx, evtConnectionComplete)
		if err != nil {
			return 0, err
		}
		if len(ev) < 11 || BDAddrFromLE(ev[3:9]) != addr {
			continue
		}
		if Status(ev[0]) != StatusSuccess {
			return 0, &StatusError{Op: "Create Connection", Status: Status(ev[0])}
		}
		return binary.LittleEndian.Uint16(ev[1:3]), nil
	}
}

// ReadRemoteVersion reads the peer's LMP version information.
func (s *Socket) ReadRemoteVersion(ctx context.Context, handle uint16) (RemoteVersion, error) {
	params := make([]byte, 2)
	binary.LittleEndian.PutUint16(params, handle)
	outcome, err := s.cmdStatus(ctx, opReadRemoteVersion, params)
	if err != nil {
		return RemoteVersion{}, err
	}
	if !outcome.OK() {
		return RemoteVersion{}, &StatusError{Op: "Read Remote Version", Status: outcome.Status}
	}

	ev, err := s.waitEvent(ctx, evtReadRemoteVersionComplete)
	if err != nil {
		return RemoteVersion{}, err
	}
	if len(ev) < 8 {
		return RemoteVersion{}, fmt.Errorf("short Read Remote Version event")
	}
	if Status(ev[0]) != StatusSuccess {
		return RemoteVersion{}, &StatusError{Op: "Read Remote Version", Status: Status(ev[0])}
	}
	return RemoteVersion{
		Version:      ev[3],
		Manufacturer: binary.LittleEndian.Uint16(ev[4:6]),
		Subversion:   binary.LittleEndian.Uint16(ev[6:8]),
	}, nil
}

// ReadRemoteFeatures reads LMP features page 0.
func (s *Socket) ReadRemoteFeatures(ctx context.Context, handle uint16) ([8]byte, error) {
	var features [8]byte
	params := make([]byte, 2)
	binary.LittleEndian.PutUint16(params, handle)
	outcome, err := s.cmdStatus(ctx, opReadRemoteFeatures, params)
	if err != nil {
		return features, err
	}
	if !outcome.OK() {
		return features, &StatusError{Op: "Read Remote Supported Features", Status: outcome.Status}
	}

	ev, err := s.waitEvent(ctx, evtReadRemoteFeaturesComplete)
	if err != nil {
		return features, err
	}
	if len(ev) < 11 {
		return features, fmt.Errorf("short Read Remote Supported Features event")
	}
	if Status(ev[0]) != StatusSuccess {
		return features, &StatusError{Op: "Read Remote Supported Features", Status: Status(ev[0])}
	}
	copy(features[:], ev[3:11])
	return features, nil
}

// ReadRemoteExtendedFeatures reads one extended LMP feature page and reports
// the maximum page the peer supports.
func (s *Socket) ReadRemoteExtendedFeatures(ctx context.Context, handle uint16, page uint8) (uint8, [8]byte, error) {
	var features [8]byte
	params := make([]byte, 3)
	binary.LittleEndian.PutUint16(params, handle)
	params[2] = page
	outcome, err := s.cmdStatus(ctx, opReadRemoteExtFeatures, params)
	if err != nil {
		return 0, features, err
	}
	if !outcome.OK() {
		return 0, features, &StatusError{Op: "Read Remote Extended Features", Status: outcome.Status}
	}

	ev, err := s.waitEvent(ctx, evtReadRemoteExtFeaturesComplete)
	if err != nil {
		return 0, features, err
	}
	if len(ev) < 13 {
		return 0, features, fmt.Errorf("short Read Remote Extended Features event")
	}
	if Status(ev[0]) != StatusSuccess {
		return 0, features, &StatusError{Op: "Read Remote Extended Features", Status: Status(ev[0])}
	}
	copy(features[:], ev[5:13])
	return ev[4], features, nil
}

// Disconnect tears down an ACL connection. Best-effort: the Disconnection
// Complete event is awaited but its status is not surfaced.
func (s *Socket) Disconnect(ctx context.Context, handle uint16) error {
	params := make([]byte, 3)
	binary.LittleEndian.PutUint16(params, handle)
	params[2] = 0x13 // Remote User Terminated Connection
	outcome, err := s.cmdStatus(ctx, opDisconnect, params)
	if err != nil {
		return err
	}
	if !outcome.OK() {
		return &StatusError{Op: "Disconnect", Status: outcome.Status}
	}
	_, err = s.waitEvent(ctx, evtDisconnectionComplete)
	return err
}

// --- LE engine command set ---

// LECreateConnection opens an LE link and returns the connection handle.
func (s *Socket) LECreateConnection(ctx context.Context, addr BDAddr, addrType AddrType) (uint16, error) {
	le := addr.LE()
	params := make([]byte, 25)
	binary.LittleEndian.PutUint16(params[0:2], 0x0060) // scan interval 60ms
	binary.LittleEndian.PutUint16(params[2:4], 0x0030) // scan window 30ms
	params[4] = 0x00                                   // no filter accept list
	params[5] = byte(addrType)
	copy(params[6:12], le[:])
	params[12] = 0x00                                    // own address public
	binary.LittleEndian.PutUint16(params[13:15], 0x0018) // conn interval min
	binary.LittleEndian.PutUint16(params[15:17], 0x0028) // conn interval max
	binary.LittleEndian.PutUint16(params[17:19], 0x0000) // latency
	binary.LittleEndian.PutUint16(params[19:21], 0x002A) // supervision timeout
	binary.LittleEndian.PutUint16(params[21:23], 0x0000)
	binary.LittleEndian.PutUint16(params[23:25], 0x0000)

	outcome, err := s.cmdStatus(ctx, opLECreateConnection, params)
	if err != nil {
		return 0, err
	}
	if !outcome.OK() {
		return 0, &StatusError{Op: "LE Create Connection", Status: outcome.Status}
	}

	for {
		ev, err := s.waitEvent(ctx, evtLEMeta)
		if err != nil {
			return 0, err
		}
		if len(ev) < 10 || ev[0] != leMetaConnectionComplete {
			continue
		}
		if Status(ev[1]) != StatusSuccess {
			return 0, &StatusError{Op: "LE Create Connection", Status: Status(ev[1])}
		}
		return binary.LittleEndian.Uint16(ev[2:4]), nil
	}
}

// LEReadRemoteFeatures reads the peer's Link Layer feature set.
func (s *Socket) LEReadRemoteFeatures(ctx context.Context, handle uint16) ([8]byte, error) {
	var features [8]byte
	params := make([]byte, 2)
	binary.LittleEndian.PutUint16(params, handle)
	outcome, err := s.cmdStatus(ctx, opLEReadRemoteFeatures, params)
	if err != nil {
		return features, err
	}
	if !outcome.OK() {
		return features, &StatusError{Op: "LE Read Remote Features", Status: outcome.Status}
	}

	for {
		ev, err := s.waitEvent(ctx, evtLEMeta)
		if err != nil {
			return features, err
		}
		if len(ev) < 12 || ev[0] != leMetaReadRemoteFeaturesComplete {
			continue
		}
		if Status(ev[1]) != StatusSuccess {
			return features, &StatusError{Op: "LE Read Remote Features", Status: Status(ev[1])}
		}
		copy(features[:], ev[4:12])
		return features, nil
	}
}

// --- ACL data (used by the SMP pairing probe) ---

// SendACL sends one L2CAP frame on the given connection handle and channel.
func (s *Socket) SendACL(handle uint16, cid uint16, payload []byte) error {
	pkt := make([]byte, 9+len(payload))
	pkt[0] = pktACLData
	// handle + PB flag "first packet" (0x20 in bits 12-13)
	binary.LittleEndian.PutUint16(pkt[1:3], handle&0x0fff|0x2000)
	binary.LittleEndian.PutUint16(pkt[3:5], uint16(4+len(payload)))
	binary.LittleEndian.PutUint16(pkt[5:7], uint16(len(payload)))
	binary.LittleEndian.PutUint16(pkt[7:9], cid)
	copy(pkt[9:], payload)
	return s.writePacket(pkt)
}

// ReadACL blocks for the next L2CAP frame on the given channel.
func (s *Socket) ReadACL(ctx context.Context, handle uint16, cid uint16) ([]byte, error) {
	for {
		pkt, err := s.readPacket(ctx)
		if err != nil {
			return nil, err
		}
		if len(pkt) < 9 || pkt[0] != pktACLData {
			continue
		}
		h := binary.LittleEndian.Uint16(pkt[1:3]) & 0x0fff
		l2len := int(binary.LittleEndian.Uint16(pkt[5:7]))
		c := binary.LittleEndian.Uint16(pkt[7:9])
		if h != handle || c != cid || len(pkt) < 9+l2len {
			continue
		}
		return pkt[9 : 9+l2len], nil
	}
}

// --- event parsing ---

func parseInquiryResults(ev []byte) []InquiryResult {
	if len(ev) < 1 {
		return nil
	}
	n := int(ev[0])
	var out []InquiryResult
	for i := 0; i < n; i++ {
		off := 1 + i*14
		if len(ev) < off+14 {
			break
		}
		out = append(out, InquiryResult{
			Addr:                   BDAddrFromLE(ev[off : off+6]),
			PageScanRepetitionMode: ev[off+6],
			ClassOfDevice:          uint32(ev[off+9]) | uint32(ev[off+10])<<8 | uint32(ev[off+11])<<16,
			ClockOffset:            binary.LittleEndian.Uint16(ev[off+12 : off+14]),
		})
	}
	return out
}

func parseInquiryResultsRSSI(ev []byte) []InquiryResult {
	if len(ev) < 1 {
		return nil
	}
	n := int(ev[0])
	var out []InquiryResult
	for i := 0; i < n; i++ {
		off := 1 + i*14
		if len(ev) < off+14 {
			break
		}
		out = append(out, InquiryResult{
			Addr:                   BDAddrFromLE(ev[off : off+6]),
			PageScanRepetitionMode: ev[off+6],
			ClassOfDevice:          uint32(ev[off+8]) | uint32(ev[off+9])<<8 | uint32(ev[off+10])<<16,
			ClockOffset:            binary.LittleEndian.Uint16(ev[off+11 : off+13]),
			RSSI:                   int8(ev[off+13]),
			HasRSSI:                true,
		})
	}
	return out
}

func parseExtendedInquiryResult(ev []byte) (InquiryResult, bool) {
	// num_responses is always 1 for EIR
	if len(ev) < 15 {
		return InquiryResult{}, false
	}
	r := InquiryResult{
		Addr:                   BDAddrFromLE(ev[1:7]),
		PageScanRepetitionMode: ev[7],
		ClassOfDevice:          uint32(ev[9]) | uint32(ev[10])<<8 | uint32(ev[11])<<16,
		ClockOffset:            binary.LittleEndian.Uint16(ev[12:14]),
		RSSI:                   int8(ev[14]),
		HasRSSI:                true,
	}
	r.Name = eirName(ev[15:])
	return r, true
}

// eirName extracts the complete or shortened local name from EIR data.
func eirName(eir []byte) string {
	for len(eir) >= 2 {
		l := int(eir[0])
		if l == 0 || len(eir) < 1+l {
			break
		}
		typ, data := eir[1], eir[2:1+l]
		if typ == 0x09 || typ == 0x08 {
			return string(data)
		}
		eir = eir[1+l:]
	}
	return ""
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
