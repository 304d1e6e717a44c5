package engine

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/sirupsen/logrus"
	"github.com/smallnest/ringbuffer"

	"github.com/b0rdst31n/bluing/internal/hci"
)

// Sniffer frame format, produced by the micro:bit firmware:
// 0xAA 0x55 | channel(1) | rssi(1, two's complement) | len(1) | adv PDU.
const (
	frameMagic0    = 0xAA
	frameMagic1    = 0x55
	frameHeaderLen = 5
)

const (
	snifferPortBufSize   = 4096
	snifferQueueSize     = 256
	snifferDrainInterval = 20 * time.Millisecond
)

// Advertising channels assigned to ports when no explicit channel is given.
var advChannels = []uint8{37, 38, 39}

// SniffReport is one advertising PDU captured by a sniffer port.
type SniffReport struct {
	Port    string
	Channel uint8
	RSSI    int8
	Payload []byte
}

// DiscoverSnifferPorts finds micro:bit serial ports, preferring the stable
// /dev/serial/by-id names and falling back to ttyACM devices.
func DiscoverSnifferPorts(serialByIDDir, devDir string) ([]string, error) {
	var ports []string

	entries, err := os.ReadDir(serialByIDDir)
	if err == nil {
		for _, e := range entries {
			if !strings.Contains(strings.ToLower(e.Name()), "micro:bit") &&
				!strings.Contains(strings.ToLower(e.Name()), "microbit") {
				continue
			}
			path, err := filepath.EvalSymlinks(filepath.Join(serialByIDDir, e.Name()))
			if err != nil {
				continue
			}
			ports = append(ports, path)
		}
	}
	if len(ports) > 0 {
		return ports, nil
	}

	matches, err := filepath.Glob(filepath.Join(devDir, "ttyACM*"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no micro:bit sniffer device found")
	}
	return matches, nil
}

// Sniffer captures LE advertising passively through external micro:bit
// hardware. It never touches the managed controller, which is why the
// dispatcher skips normalization for this mode.
type Sniffer struct {
	logger *logrus.Logger
	out    io.Writer

	// openPort opens one serial port configured raw at 115200 baud. A
	// variable so tests can substitute a pty pair.
	openPort func(path string) (io.ReadWriteCloser, error)
}

// NewSniffer creates a sniffer writing captured reports to out.
func NewSniffer(logger *logrus.Logger, out io.Writer) *Sniffer {
	return &Sniffer{logger: logger, out: out, openPort: openSerialPort}
}

// Sniff reads advertising frames from every port until ctx is canceled.
// channel > 0 pins all ports to that advertising channel; otherwise ports
// are spread over 37/38/39.
func (s *Sniffer) Sniff(ctx context.Context, portPaths []string, channel int) error {
	if len(portPaths) == 0 {
		return fmt.Errorf("no sniffer ports given")
	}

	queue := mpmc.NewOverlappedRingBuffer[SniffReport](snifferQueueSize)

	var ports []io.ReadWriteCloser
	closeAll := func() {
		for _, p := range ports {
			_ = p.Close()
		}
	}

	var wg sync.WaitGroup
	for i, path := range portPaths {
		ch := advChannels[i%len(advChannels)]
		if channel > 0 {
			ch = uint8(channel)
		}

		port, err := s.openPort(path)
		if err != nil {
			closeAll()
			return fmt.Errorf("failed to open sniffer port %s: %w", path, err)
		}
		ports = append(ports, port)

		// Tell the firmware which advertising channel to follow.
		if _, err := fmt.Fprintf(port, "ch %d\n", ch); err != nil {
			closeAll()
			return fmt.Errorf("failed to configure sniffer port %s: %w", path, err)
		}

		s.logger.WithFields(logrus.Fields{
			"port":    path,
			"channel": ch,
		}).Info("Sniffer port armed")

		wg.Add(1)
		go func(path string, port io.Reader) {
			defer wg.Done()
			s.readPort(ctx, path, port, queue)
		}(path, port)
	}

	s.consume(ctx, queue)
	// Closing the ports unblocks any reader still parked in Read.
	closeAll()
	wg.Wait()
	return nil
}

// readPort reassembles frames from one serial stream. Serial reads split
// frames arbitrarily, so bytes accumulate in a ring buffer and frames are
// extracted whenever a complete one is present.
func (s *Sniffer) readPort(ctx context.Context, path string, port io.Reader, queue mpmc.RichOverlappedRingBuffer[SniffReport]) {
	ring := ringbuffer.New(snifferPortBufSize)
	chunk := make([]byte, 512)

	for {
		if ctx.Err() != nil {
			return
		}
		n, err := port.Read(chunk)
		if n > 0 {
			// Overflow drops the oldest frame boundary; acceptable for a
			// lossy passive capture.
			_, _ = ring.Write(chunk[:n])
			s.extractFrames(path, ring, queue)
		}
		if err != nil {
			// VMIN=0/VTIME=1 makes an idle port time out with io.EOF
			// every tick; keep reading so cancellation is observed.
			if err == io.EOF {
				continue
			}
			if ctx.Err() == nil {
				s.logger.WithField("port", path).WithError(err).Debug("Sniffer port read failed")
			}
			return
		}
	}
}

func (s *Sniffer) extractFrames(path string, ring *ringbuffer.RingBuffer, queue mpmc.RichOverlappedRingBuffer[SniffReport]) {
	scratch := make([]byte, 1)
	for {
		buf := ring.Bytes(nil)
		// Discard noise in front of the magic.
		start := 0
		for start+1 < len(buf) && !(buf[start] == frameMagic0 && buf[start+1] == frameMagic1) {
			start++
		}
		for i := 0; i < start; i++ {
			_, _ = ring.Read(scratch)
		}
		buf = buf[start:]

		if len(buf) < frameHeaderLen {
			return
		}
		payloadLen := int(buf[4])
		if len(buf) < frameHeaderLen+payloadLen {
			return
		}

		frame := make([]byte, frameHeaderLen+payloadLen)
		if _, err := ring.Read(frame); err != nil {
			return
		}
		report := SniffReport{
			Port:    path,
			Channel: frame[2],
			RSSI:    int8(frame[3]),
			Payload: frame[frameHeaderLen:],
		}
		if _, err := queue.EnqueueM(report); err != nil {
			s.logger.WithError(err).Debug("Sniffer queue enqueue failed")
		}
	}
}

// consume renders queued reports until ctx is canceled, then drains.
func (s *Sniffer) consume(ctx context.Context, queue mpmc.RichOverlappedRingBuffer[SniffReport]) {
	ticker := time.NewTicker(snifferDrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.drain(queue)
			return
		case <-ticker.C:
			s.drain(queue)
		}
	}
}

func (s *Sniffer) drain(queue mpmc.RichOverlappedRingBuffer[SniffReport]) {
	for !queue.IsEmpty() {
		report, err := queue.Dequeue()
		if err != nil {
			return
		}
		s.renderReport(report)
	}
}

var advPDUTypes = []string{
	"ADV_IND", "ADV_DIRECT_IND", "ADV_NONCONN_IND", "SCAN_REQ",
	"SCAN_RSP", "CONNECT_IND", "ADV_SCAN_IND",
}

func (s *Sniffer) renderReport(r SniffReport) {
	pduType := "UNKNOWN"
	addr := ""
	if len(r.Payload) >= 2 {
		if t := int(r.Payload[0] & 0x0F); t < len(advPDUTypes) {
			pduType = advPDUTypes[t]
		}
		if len(r.Payload) >= 8 {
			addr = hci.BDAddrFromLE(r.Payload[2:8]).String()
		}
	}

	tag := color.CyanString("[ch %d]", r.Channel)
	fmt.Fprintf(s.out, "%s %-15s %s rssi %d  %s\n",
		tag, pduType, addr, r.RSSI, hex.EncodeToString(r.Payload))
}
