package controller

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b0rdst31n/bluing/internal/hci"
)

func mustAddr(t *testing.T, s string) hci.BDAddr {
	a, err := hci.ParseBDAddr(s)
	require.NoError(t, err)
	return a
}

func TestClean_RemovesPeerStateBracketedByServiceStop(t *testing.T) {
	// GOAL: Verify cleanup stops bluetoothd, removes both the live pairing
	// dir and the cache entry for the peer, restarts the service and
	// verifies it is back.
	f := newNormFixture(t)
	local := mustAddr(t, localAddr)
	remote := mustAddr(t, "11:22:33:44:55:66")

	liveDir := filepath.Join(f.cfg.BluetoothDir, localAddr, "11:22:33:44:55:66")
	cacheFile := filepath.Join(f.cfg.BluetoothDir, localAddr, "cache", "11:22:33:44:55:66")
	require.NoError(t, os.MkdirAll(liveDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(liveDir, "info"), []byte("LinkKey"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Dir(cacheFile), 0o755))
	require.NoError(t, os.WriteFile(cacheFile, []byte("attrs"), 0o644))

	require.NoError(t, f.norm.Clean(context.Background(), local, remote))

	assert.NoDirExists(t, liveDir, "live pairing dir MUST be removed")
	assert.NoFileExists(t, cacheFile, "cache entry MUST be removed")

	lines := f.runner.CommandLines()
	require.Len(t, lines, 2)
	assert.Equal(t, "systemctl stop bluetooth.service", lines[0], "service MUST be stopped before removal")
	assert.Equal(t, "systemctl start bluetooth.service", lines[1], "service MUST be started after removal")
}

func TestClean_MissingPeerStateIsNotAnError(t *testing.T) {
	f := newNormFixture(t)

	err := f.norm.Clean(context.Background(),
		mustAddr(t, localAddr), mustAddr(t, "11:22:33:44:55:66"))

	assert.NoError(t, err, "removing absent peer state MUST succeed")
}

func TestClean_ServiceStopFailurePropagates(t *testing.T) {
	f := newNormFixture(t)
	f.runner.Errs["systemctl stop"] = errors.New("access denied")

	err := f.norm.Clean(context.Background(),
		mustAddr(t, localAddr), mustAddr(t, "11:22:33:44:55:66"))

	require.Error(t, err)
	assert.False(t, f.runner.Ran("systemctl start"), "removal and restart MUST NOT run after a stop failure")
}

func TestWipeCache(t *testing.T) {
	f := newNormFixture(t)
	dir := f.seedCache(t)

	require.NoError(t, WipeCache(f.cfg.BluetoothDir, f.conn.Addr))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Missing directory: nothing to clean.
	assert.NoError(t, WipeCache(t.TempDir(), f.conn.Addr))
}
