package controller

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/b0rdst31n/bluing/internal/hci"
)

// CacheDir is where bluetoothd keeps per-peer attribute caches for one
// controller, keyed by the controller's own address.
func CacheDir(bluetoothDir string, local hci.BDAddr) string {
	return filepath.Join(bluetoothDir, local.String(), "cache")
}

// WipeCache deletes every file under the controller's cache directory.
// A missing directory means there is nothing to clean.
func WipeCache(bluetoothDir string, local hci.BDAddr) error {
	dir := CacheDir(bluetoothDir, local)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cache dir %s: %w", dir, err)
	}

	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("failed to remove cached entry %s: %w", e.Name(), err)
		}
	}
	return nil
}

func removeAll(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// peerPaths returns the two locations bluetoothd keeps for one remote peer:
// the live pairing directory and the attribute cache file.
func peerPaths(bluetoothDir string, local hci.BDAddr, remote hci.BDAddr) []string {
	base := filepath.Join(bluetoothDir, local.String())
	return []string{
		filepath.Join(base, remote.String()),
		filepath.Join(base, "cache", remote.String()),
	}
}
