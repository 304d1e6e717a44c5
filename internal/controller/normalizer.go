// Package controller brings a local Bluetooth controller and the host's
// bluetoothd from an arbitrary prior state into a scan-ready baseline, and
// recovers it on interruption. The normalization sequence is a single linear
// pass: every step is individually idempotent, so the prescribed recovery
// for any failure is simply to run it again.
package controller

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/b0rdst31n/bluing/internal/bluezd"
	"github.com/b0rdst31n/bluing/internal/hci"
	"github.com/b0rdst31n/bluing/internal/hostcmd"
	"github.com/b0rdst31n/bluing/pkg/config"
)

// Normalizer drives a controller to the baseline state: radio unblocked,
// interface up, bluetoothd freshly restarted, no inquiry or scanning of any
// kind pending, no event filters, and no stale per-peer cache files.
type Normalizer struct {
	cfg    *config.Config
	logger *logrus.Logger
	runner hostcmd.Runner
	svc    *bluezd.Service
	open   hci.OpenFunc

	mu     sync.Mutex
	active map[string]bool
}

// NewNormalizer wires a Normalizer. open may be nil, in which case a raw HCI
// socket is used.
func NewNormalizer(cfg *config.Config, logger *logrus.Logger, runner hostcmd.Runner, svc *bluezd.Service, open hci.OpenFunc) *Normalizer {
	if open == nil {
		open = hci.OpenConn(logger)
	}
	return &Normalizer{
		cfg:    cfg,
		logger: logger,
		runner: runner,
		svc:    svc,
		open:   open,
		active: make(map[string]bool),
	}
}

type prepStep struct {
	name string
	run  func(ctx context.Context) (hci.Outcome, error)
}

// Normalize executes the baseline sequence against iface and returns the
// controller's own address. At most one normalization runs per interface
// name at a time within the process.
//
// Command Disallowed from an intermediate step means the controller already
// holds the desired state; it is logged and the sequence continues. Any
// other non-success status aborts. The final address read is strict: without
// a known local address the cache cannot be targeted.
func (n *Normalizer) Normalize(ctx context.Context, iface string) (hci.BDAddr, error) {
	if err := n.acquire(iface); err != nil {
		return hci.BDAddr{}, err
	}
	defer n.release(iface)

	if err := n.hostPrepare(ctx, iface); err != nil {
		return hci.BDAddr{}, err
	}

	conn, err := n.open(iface)
	if err != nil {
		return hci.BDAddr{}, fmt.Errorf("failed to open controller %s: %w", iface, err)
	}
	defer conn.Close()

	steps := []prepStep{
		{"Inquiry Cancel", conn.CancelInquiry},
		{"Exit Periodic Inquiry Mode", conn.ExitPeriodicInquiryMode},
		{"Write Scan Enable", conn.DisableScan},
		{"LE Set Advertising Enable", conn.DisableLEAdvertising},
		{"LE Set Scan Enable", conn.DisableLEScan},
		{"Set Event Filter", conn.ClearEventFilters},
	}
	for _, step := range steps {
		if err := n.runStep(ctx, step); err != nil {
			return hci.BDAddr{}, err
		}
	}

	addr, err := n.readLocalAddr(ctx, conn)
	if err != nil {
		return hci.BDAddr{}, err
	}

	if err := WipeCache(n.cfg.BluetoothDir, addr); err != nil {
		return hci.BDAddr{}, err
	}

	n.logger.WithFields(logrus.Fields{
		"iface":   iface,
		"bd_addr": addr,
	}).Info("Controller normalized")
	return addr, nil
}

// hostPrepare unblocks the radio, brings the interface up and restarts
// bluetoothd. Later HCI steps assume all three completed.
func (n *Normalizer) hostPrepare(ctx context.Context, iface string) error {
	devID, err := RfkillDeviceID(n.cfg.SysfsRfkillDir, iface)
	if err != nil {
		return err
	}

	// hciconfig up only succeeds once the radio is unblocked.
	if err := n.hostCmd(ctx, "rfkill", "unblock", strconv.Itoa(devID)); err != nil {
		return err
	}
	if err := n.hostCmd(ctx, "hciconfig", iface, "up"); err != nil {
		return err
	}

	rctx, cancel := context.WithTimeout(ctx, n.cfg.PrepareTimeout)
	defer cancel()
	return n.svc.Restart(rctx)
}

func (n *Normalizer) hostCmd(ctx context.Context, name string, args ...string) error {
	cctx, cancel := context.WithTimeout(ctx, n.cfg.PrepareTimeout)
	defer cancel()
	_, err := n.runner.Run(cctx, name, args...)
	return err
}

func (n *Normalizer) runStep(ctx context.Context, step prepStep) error {
	n.logger.WithField("command", step.name).Debug("Sending HCI command")

	sctx, cancel := context.WithTimeout(ctx, n.cfg.PrepareTimeout)
	defer cancel()
	outcome, err := step.run(sctx)
	if err != nil {
		return fmt.Errorf("%s failed: %w", step.name, err)
	}

	switch outcome.Class() {
	case hci.ClassSuccess:
		return nil
	case hci.ClassBenign:
		// Already in the desired state; not a reason to abort the pipeline.
		n.logger.WithFields(logrus.Fields{
			"command": step.name,
			"status":  outcome.Status.String(),
		}).Warn("Controller command disallowed, continuing")
		return nil
	default:
		return &hci.StatusError{Op: step.name, Status: outcome.Status}
	}
}

// readLocalAddr treats every non-success status as fatal, Command Disallowed
// included: cache cleanup needs a valid address.
func (n *Normalizer) readLocalAddr(ctx context.Context, conn hci.Conn) (hci.BDAddr, error) {
	sctx, cancel := context.WithTimeout(ctx, n.cfg.PrepareTimeout)
	defer cancel()

	outcome, addr, err := conn.ReadBDAddr(sctx)
	if err != nil {
		return hci.BDAddr{}, fmt.Errorf("Read BD_ADDR failed: %w", err)
	}
	if !outcome.OK() {
		return hci.BDAddr{}, &hci.StatusError{Op: "Read BD_ADDR", Status: outcome.Status}
	}
	return addr, nil
}

// LocalAddress resolves the controller's own address without the full
// normalization sequence. Used by the cleanup path.
func (n *Normalizer) LocalAddress(ctx context.Context, iface string) (hci.BDAddr, error) {
	conn, err := n.open(iface)
	if err != nil {
		return hci.BDAddr{}, fmt.Errorf("failed to open controller %s: %w", iface, err)
	}
	defer conn.Close()
	return n.readLocalAddr(ctx, conn)
}

// Reset issues a best-effort hardware reset of the interface. Called on user
// cancellation when an interface had already been resolved.
func (n *Normalizer) Reset(ctx context.Context, iface string) error {
	rctx, cancel := context.WithTimeout(ctx, n.cfg.PrepareTimeout)
	defer cancel()
	_, err := n.runner.Run(rctx, "hciconfig", iface, "reset")
	return err
}

func (n *Normalizer) acquire(iface string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.active[iface] {
		return fmt.Errorf("normalization already running on %s", iface)
	}
	n.active[iface] = true
	return nil
}

func (n *Normalizer) release(iface string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.active, iface)
}

// cleanOpTimeout bounds each cleanup-related service or file operation.
func (n *Normalizer) cleanOpTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, n.cfg.CleanTimeout)
}

// Clean erases the pairing and cache state for one remote peer. bluetoothd
// holds the files open while running, so the removal is bracketed by
// stopping and restarting the service; afterwards the service is verified
// to be running again.
func (n *Normalizer) Clean(ctx context.Context, local, remote hci.BDAddr) error {
	sctx, cancel := n.cleanOpTimeout(ctx)
	defer cancel()
	if err := n.svc.Stop(sctx); err != nil {
		return err
	}

	for _, path := range peerPaths(n.cfg.BluetoothDir, local, remote) {
		n.logger.WithField("path", path).Debug("Removing peer state")
		if err := removeWithin(ctx, path, n.cfg.CleanTimeout); err != nil {
			return err
		}
	}

	tctx, cancel2 := n.cleanOpTimeout(ctx)
	defer cancel2()
	if err := n.svc.Start(tctx); err != nil {
		return err
	}
	if err := n.svc.WaitReady(tctx); err != nil {
		return fmt.Errorf("bluetooth.service did not come back after cleanup: %w", err)
	}

	n.logger.WithFields(logrus.Fields{
		"local":  local,
		"remote": remote,
	}).Info("Peer pairing state removed")
	return nil
}

// removeWithin runs os.RemoveAll bounded by a timeout; removal of a missing
// path is a no-op.
func removeWithin(ctx context.Context, path string, timeout time.Duration) error {
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- removeAll(path) }()

	select {
	case err := <-done:
		return err
	case <-rctx.Done():
		return fmt.Errorf("removing %s: %w", path, rctx.Err())
	}
}
