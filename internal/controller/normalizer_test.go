package controller

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b0rdst31n/bluing/internal/bluezd"
	"github.com/b0rdst31n/bluing/internal/hci"
	"github.com/b0rdst31n/bluing/internal/testutils"
	"github.com/b0rdst31n/bluing/pkg/config"
)

const localAddr = "AA:BB:CC:DD:EE:FF"

type readyLister struct{}

func (readyLister) ListNames(context.Context) ([]string, error) {
	return []string{"org.freedesktop.DBus", "org.bluez"}, nil
}

type normFixture struct {
	cfg    *config.Config
	runner *testutils.RecordingRunner
	conn   *testutils.ScriptedController
	norm   *Normalizer
}

func newNormFixture(t *testing.T) *normFixture {
	fs := testutils.NewFakeSysfs(t)
	fs.AddController(t, "hci0", 3)

	cfg := config.DefaultConfig()
	cfg.BluetoothDir = t.TempDir()
	cfg.SysfsBluetoothDir = fs.BluetoothDir
	cfg.SysfsRfkillDir = fs.RfkillDir
	cfg.PrepareTimeout = time.Second
	cfg.CleanTimeout = time.Second

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	runner := testutils.NewRecordingRunner()
	conn := testutils.NewScriptedController(localAddr)
	svc := bluezd.NewService(runner, readyLister{}, logger)

	open := func(iface string) (hci.Conn, error) { return conn, nil }
	return &normFixture{
		cfg:    cfg,
		runner: runner,
		conn:   conn,
		norm:   NewNormalizer(cfg, logger, runner, svc, open),
	}
}

// seedCache populates the controller's cache directory with stale peer files.
func (f *normFixture) seedCache(t *testing.T) string {
	dir := CacheDir(f.cfg.BluetoothDir, f.conn.Addr)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "11:22:33:44:55:66"), []byte("attr"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "22:33:44:55:66:77"), []byte("attr"), 0o644))
	return dir
}

func TestNormalize_HappyPath(t *testing.T) {
	// GOAL: Verify the full baseline sequence runs in strict order and ends
	// with an empty cache directory and a closed handle.
	f := newNormFixture(t)
	cacheDir := f.seedCache(t)

	addr, err := f.norm.Normalize(context.Background(), "hci0")

	require.NoError(t, err)
	assert.Equal(t, localAddr, addr.String())

	assert.Equal(t, []string{
		"rfkill unblock 3",
		"hciconfig hci0 up",
		"systemctl restart bluetooth.service",
	}, f.runner.CommandLines(), "host preparation MUST run in strict order")

	assert.Equal(t, []string{
		"inquiry_cancel",
		"exit_periodic_inquiry_mode",
		"write_scan_enable",
		"le_set_advertising_enable",
		"le_set_scan_enable",
		"set_event_filter",
		"read_bd_addr",
	}, f.conn.CallsIssued(), "controller commands MUST run in strict order")

	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "cache directory MUST be empty after normalization")

	assert.Equal(t, 1, f.conn.CloseCount, "handle MUST be closed exactly once")
}

func TestNormalize_BenignOutcomesContinue(t *testing.T) {
	// GOAL: Verify Command Disallowed from every intermediate step is
	// tolerated; an already-normalized controller re-normalizes cleanly.
	f := newNormFixture(t)
	for _, cmd := range []string{
		"inquiry_cancel", "exit_periodic_inquiry_mode", "write_scan_enable",
		"le_set_advertising_enable", "le_set_scan_enable", "set_event_filter",
	} {
		f.conn.Outcomes[cmd] = hci.StatusCommandDisallowed
	}

	addr, err := f.norm.Normalize(context.Background(), "hci0")

	require.NoError(t, err, "benign outcomes MUST NOT abort normalization")
	assert.Equal(t, localAddr, addr.String())
	assert.Len(t, f.conn.CallsIssued(), 7, "all steps MUST still be issued")
	assert.Equal(t, 1, f.conn.CloseCount)
}

func TestNormalize_FatalIntermediateAborts(t *testing.T) {
	// GOAL: Verify a genuinely erroring controller aborts the sequence at the
	// failing step, with the handle still closed exactly once.
	f := newNormFixture(t)
	f.conn.Outcomes["write_scan_enable"] = hci.StatusHardwareFailure

	_, err := f.norm.Normalize(context.Background(), "hci0")

	require.Error(t, err)
	var statusErr *hci.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, hci.StatusHardwareFailure, statusErr.Status)
	assert.Contains(t, err.Error(), "0x03 Hardware Failure", "error MUST name the failing status")

	assert.Equal(t, []string{
		"inquiry_cancel", "exit_periodic_inquiry_mode", "write_scan_enable",
	}, f.conn.CallsIssued(), "steps after the fatal one MUST NOT run")
	assert.Equal(t, 1, f.conn.CloseCount, "handle MUST be closed exactly once on abort")
}

func TestNormalize_BenignAddressReadIsFatal(t *testing.T) {
	// GOAL: Verify the deliberate asymmetry: Command Disallowed is acceptable
	// for intermediate steps but fatal for the final address read.
	f := newNormFixture(t)
	f.conn.Outcomes["read_bd_addr"] = hci.StatusCommandDisallowed

	_, err := f.norm.Normalize(context.Background(), "hci0")

	require.Error(t, err, "benign Read BD_ADDR MUST be fatal")
	var statusErr *hci.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, hci.StatusCommandDisallowed, statusErr.Status)
	assert.Equal(t, 1, f.conn.CloseCount)
}

func TestNormalize_TransportErrorAborts(t *testing.T) {
	f := newNormFixture(t)
	f.conn.Errs["le_set_scan_enable"] = errors.New("resource temporarily unavailable")

	_, err := f.norm.Normalize(context.Background(), "hci0")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "LE Set Scan Enable failed")
	assert.Equal(t, 1, f.conn.CloseCount)
}

func TestNormalize_HostCommandFailureIsFatal(t *testing.T) {
	// GOAL: Verify host preparation failures propagate before any controller
	// command is issued.
	f := newNormFixture(t)
	f.runner.Errs["hciconfig hci0 up"] = errors.New("Operation not permitted")

	_, err := f.norm.Normalize(context.Background(), "hci0")

	require.Error(t, err)
	assert.Empty(t, f.conn.CallsIssued(), "no controller command may run after a host failure")
	assert.Equal(t, 0, f.conn.CloseCount, "the handle was never opened")
}

func TestNormalize_MissingCacheDirIsNotAnError(t *testing.T) {
	f := newNormFixture(t)

	_, err := f.norm.Normalize(context.Background(), "hci0")

	assert.NoError(t, err, "a missing cache directory means nothing to clean")
}

func TestNormalize_Idempotent(t *testing.T) {
	// GOAL: Running normalization twice on an already-normalized controller
	// must produce the same final state; benign second-run outcomes do not
	// become fatal.
	f := newNormFixture(t)
	cacheDir := f.seedCache(t)

	_, err := f.norm.Normalize(context.Background(), "hci0")
	require.NoError(t, err)

	// Second run: the controller is already idle, so everything but the
	// address read reports Command Disallowed.
	for _, cmd := range []string{
		"inquiry_cancel", "exit_periodic_inquiry_mode", "write_scan_enable",
		"le_set_advertising_enable", "le_set_scan_enable", "set_event_filter",
	} {
		f.conn.Outcomes[cmd] = hci.StatusCommandDisallowed
	}

	addr, err := f.norm.Normalize(context.Background(), "hci0")
	require.NoError(t, err)
	assert.Equal(t, localAddr, addr.String())

	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 2, f.conn.CloseCount, "each run MUST close its handle once")
}

func TestNormalize_SingleFlightPerInterface(t *testing.T) {
	f := newNormFixture(t)
	require.NoError(t, f.norm.acquire("hci0"))

	_, err := f.norm.Normalize(context.Background(), "hci0")
	assert.ErrorContains(t, err, "already running", "concurrent normalization of one interface MUST be rejected")

	f.norm.release("hci0")
	_, err = f.norm.Normalize(context.Background(), "hci0")
	assert.NoError(t, err)
}

func TestLocalAddress(t *testing.T) {
	f := newNormFixture(t)

	addr, err := f.norm.LocalAddress(context.Background(), "hci0")

	require.NoError(t, err)
	assert.Equal(t, localAddr, addr.String())
	assert.Equal(t, []string{"read_bd_addr"}, f.conn.CallsIssued(),
		"lightweight resolution MUST NOT run the full sequence")
	assert.Equal(t, 1, f.conn.CloseCount)
}

func TestReset_IssuesHardwareReset(t *testing.T) {
	f := newNormFixture(t)

	require.NoError(t, f.norm.Reset(context.Background(), "hci0"))

	assert.Equal(t, []string{"hciconfig hci0 reset"}, f.runner.CommandLines())
}
