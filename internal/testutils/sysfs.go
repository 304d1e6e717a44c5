package testutils

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

// FakeSysfs is a scratch stand-in for /sys/class/bluetooth and
// /sys/class/rfkill.
type FakeSysfs struct {
	BluetoothDir string
	RfkillDir    string
}

func NewFakeSysfs(t *testing.T) *FakeSysfs {
	root := t.TempDir()
	fs := &FakeSysfs{
		BluetoothDir: filepath.Join(root, "class", "bluetooth"),
		RfkillDir:    filepath.Join(root, "class", "rfkill"),
	}
	require.NoError(t, os.MkdirAll(fs.BluetoothDir, 0o755))
	require.NoError(t, os.MkdirAll(fs.RfkillDir, 0o755))
	return fs
}

// AddController registers iface with a backing rfkill switch.
func (fs *FakeSysfs) AddController(t *testing.T, iface string, rfkillIndex int) {
	require.NoError(t, os.MkdirAll(filepath.Join(fs.BluetoothDir, iface), 0o755))

	rfDir := filepath.Join(fs.RfkillDir, "rfkill"+strconv.Itoa(rfkillIndex))
	require.NoError(t, os.MkdirAll(rfDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(rfDir, "name"), []byte(iface+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(rfDir, "index"), []byte(strconv.Itoa(rfkillIndex)+"\n"), 0o644))
}
