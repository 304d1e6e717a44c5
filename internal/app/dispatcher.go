package app

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/b0rdst31n/bluing/internal/bluezd"
	"github.com/b0rdst31n/bluing/internal/controller"
	"github.com/b0rdst31n/bluing/internal/engine"
	"github.com/b0rdst31n/bluing/internal/hci"
	"github.com/b0rdst31n/bluing/internal/hostcmd"
	"github.com/b0rdst31n/bluing/pkg/config"
)

const sdpBrowseTimeout = 60 * time.Second

// Narrow views of the engines and the normalizer, so tests can script the
// routing without real hardware.
type brEngine interface {
	Inquiry(ctx context.Context, iface string, inquiryLen uint8) (engine.Result, error)
	ScanLMPFeature(ctx context.Context, iface string, target hci.BDAddr) error
}

type leEngine interface {
	ScanDevices(ctx context.Context, iface string, opts engine.LEScanOptions) (engine.Result, error)
	ScanLLFeature(ctx context.Context, iface string, target hci.BDAddr, addrType hci.AddrType, timeout time.Duration) error
	DetectPairingFeature(ctx context.Context, iface string, target hci.BDAddr, addrType hci.AddrType, timeout time.Duration, ioCap engine.IOCapability) error
}

type sdpEngine interface {
	Browse(ctx context.Context, target hci.BDAddr) error
}

type gattEngine interface {
	Enumerate(ctx context.Context, iface string, target hci.BDAddr, addrType hci.AddrType) (engine.Result, error)
}

type sniffEngine interface {
	Sniff(ctx context.Context, portPaths []string, channel int) error
}

type normalizer interface {
	Normalize(ctx context.Context, iface string) (hci.BDAddr, error)
	LocalAddress(ctx context.Context, iface string) (hci.BDAddr, error)
	Clean(ctx context.Context, local, remote hci.BDAddr) error
	Reset(ctx context.Context, iface string) error
}

// Dispatcher normalizes the controller and routes one invocation to exactly
// one engine operation.
type Dispatcher struct {
	cfg    *config.Config
	logger *logrus.Logger
	out    io.Writer

	normalizer normalizer
	br         brEngine
	le         leEngine
	sdp        sdpEngine
	gatt       gattEngine
	sniffer    sniffEngine

	// discoverPorts resolves sniffer hardware when no ports were given.
	discoverPorts func(serialByIDDir, devDir string) ([]string, error)

	// PreRender, when set, runs once before a result is rendered. The
	// command layer uses it to clear its progress line.
	PreRender func()

	mu    sync.Mutex
	iface string
}

// NewDispatcher wires the engines against the real controller stack.
func NewDispatcher(cfg *config.Config, logger *logrus.Logger, out io.Writer) *Dispatcher {
	runner := hostcmd.NewExecRunner(logger)
	svc := bluezd.NewService(runner, bluezd.SystemBusLister{}, logger)
	return &Dispatcher{
		cfg:           cfg,
		logger:        logger,
		out:           out,
		normalizer:    controller.NewNormalizer(cfg, logger, runner, svc, hci.OpenConn(logger)),
		br:            engine.NewBRScanner(logger, out),
		le:            engine.NewLEScanner(logger, out),
		sdp:           engine.NewSDPScanner(logger, out, runner, sdpBrowseTimeout),
		gatt:          engine.NewGattScanner(logger),
		sniffer:       engine.NewSniffer(logger, out),
		discoverPorts: engine.DiscoverSnifferPorts,
	}
}

// Interface returns the controller resolved by the last Run. Empty until a
// mode that uses the controller has resolved one; the signal handler uses it
// for the best-effort reset.
func (d *Dispatcher) Interface() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.iface
}

// ResetController issues a best-effort controller reset after an
// interrupted run. A no-op when no interface was resolved.
func (d *Dispatcher) ResetController(ctx context.Context) error {
	iface := d.Interface()
	if iface == "" {
		return nil
	}
	return d.normalizer.Reset(ctx, iface)
}

func (d *Dispatcher) setInterface(iface string) {
	d.mu.Lock()
	d.iface = iface
	d.mu.Unlock()
}

// Run executes exactly one mode. All modes except the passive sniff resolve
// and normalize a controller first; the sniff only talks to external
// hardware.
func (d *Dispatcher) Run(ctx context.Context, p *Params) error {
	if err := p.Validate(); err != nil {
		return err
	}

	if p.Mode == ModeLEPassiveSniff {
		return d.runSniff(ctx, p)
	}

	iface := p.Iface
	if iface == "" {
		resolved, err := controller.DefaultInterface(d.cfg.SysfsBluetoothDir)
		if err != nil {
			return err
		}
		iface = resolved
	}
	d.setInterface(iface)
	d.logger.WithFields(logrus.Fields{
		"iface": iface,
		"mode":  p.Mode,
	}).Info("Dispatching scan")

	if p.Mode == ModeClean {
		local, err := d.normalizer.LocalAddress(ctx, iface)
		if err != nil {
			return err
		}
		return d.normalizer.Clean(ctx, local, p.Target)
	}

	if _, err := d.normalizer.Normalize(ctx, iface); err != nil {
		return err
	}

	switch p.Mode {
	case ModeBRInquiry:
		result, err := d.br.Inquiry(ctx, iface, p.InquiryLen)
		if err != nil {
			return err
		}
		return d.finish(result)
	case ModeBRLMPFeature:
		return d.br.ScanLMPFeature(ctx, iface, p.Target)
	case ModeLEDeviceScan:
		result, err := d.le.ScanDevices(ctx, iface, engine.LEScanOptions{
			Timeout:    p.Timeout,
			ScanType:   p.ScanType,
			SortByRSSI: p.SortByRSSI,
		})
		if err != nil {
			return err
		}
		return d.finish(result)
	case ModeLELLFeature:
		return d.le.ScanLLFeature(ctx, iface, p.Target, p.AddrType, p.Timeout)
	case ModeLESMPFeature:
		return d.le.DetectPairingFeature(ctx, iface, p.Target, p.AddrType, p.Timeout, p.IOCap)
	case ModeSDP:
		return d.sdp.Browse(ctx, p.Target)
	case ModeGATT:
		result, err := d.gatt.Enumerate(ctx, iface, p.Target, p.AddrType)
		if err != nil {
			return err
		}
		return d.finish(result)
	default:
		return fmt.Errorf("unknown scan mode %d", int(p.Mode))
	}
}

func (d *Dispatcher) runSniff(ctx context.Context, p *Params) error {
	ports := p.SniffPorts
	if len(ports) == 0 {
		discovered, err := d.discoverPorts(d.cfg.SerialByIDDir, d.cfg.DevDir)
		if err != nil {
			return err
		}
		ports = discovered
	}
	return d.sniffer.Sniff(ctx, ports, p.SniffChannel)
}

// finish renders and stores one produced result, each exactly once.
func (d *Dispatcher) finish(result engine.Result) error {
	if d.PreRender != nil {
		d.PreRender()
	}
	header := color.New(color.FgBlue)
	if _, err := header.Fprintf(d.out, "----------------%s Scan Result----------------\n", result.Kind()); err != nil {
		return err
	}
	if err := result.Render(d.out); err != nil {
		return err
	}

	path, err := result.Store(d.cfg.ResultsDir)
	if err != nil {
		return fmt.Errorf("failed to store scan result: %w", err)
	}
	d.logger.WithField("path", path).Info("Scan result stored")
	return nil
}
