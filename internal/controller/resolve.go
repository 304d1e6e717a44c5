package controller

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ErrNoController is returned when a default controller interface is needed
// but the host has none.
var ErrNoController = errors.New("no available HCI device")

// ListInterfaces returns the installed controller interface names, sorted.
// The first entry is not necessarily hci0; a host may have only hci1.
func ListInterfaces(sysfsBluetoothDir string) ([]string, error) {
	entries, err := os.ReadDir(sysfsBluetoothDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list controllers: %w", err)
	}

	var ifaces []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "hci") {
			ifaces = append(ifaces, e.Name())
		}
	}
	sort.Strings(ifaces)
	return ifaces, nil
}

// DefaultInterface resolves the first available controller interface.
func DefaultInterface(sysfsBluetoothDir string) (string, error) {
	ifaces, err := ListInterfaces(sysfsBluetoothDir)
	if err != nil {
		return "", err
	}
	if len(ifaces) == 0 {
		return "", ErrNoController
	}
	return ifaces[0], nil
}

// RfkillDeviceID finds the rfkill switch number backing the named controller
// by matching each switch's name attribute.
func RfkillDeviceID(sysfsRfkillDir, iface string) (int, error) {
	entries, err := os.ReadDir(sysfsRfkillDir)
	if err != nil {
		return 0, fmt.Errorf("failed to list rfkill devices: %w", err)
	}

	for _, e := range entries {
		name, err := os.ReadFile(filepath.Join(sysfsRfkillDir, e.Name(), "name"))
		if err != nil || strings.TrimSpace(string(name)) != iface {
			continue
		}
		idx, err := os.ReadFile(filepath.Join(sysfsRfkillDir, e.Name(), "index"))
		if err == nil {
			if id, err := strconv.Atoi(strings.TrimSpace(string(idx))); err == nil {
				return id, nil
			}
		}
		// Fall back to the directory name, rfkillN.
		if id, err := strconv.Atoi(strings.TrimPrefix(e.Name(), "rfkill")); err == nil {
			return id, nil
		}
	}
	return 0, fmt.Errorf("no rfkill device found for %s", iface)
}
