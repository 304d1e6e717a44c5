// Package plugin manages and runs user-supplied Lua plugins from the plugin
// directory.
package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aarzilli/golua/lua"
	"github.com/sirupsen/logrus"
)

// InstallError reports a rejected plugin install. It is a user-actionable
// condition, not a crash.
type InstallError struct {
	Path   string
	Reason string
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("cannot install plugin %s: %s", e.Path, e.Reason)
}

// Manager installs, lists and removes plugins. A plugin is one .lua file in
// the plugin directory, addressed by its base name.
type Manager struct {
	dir    string
	logger *logrus.Logger
}

// NewManager creates a plugin manager rooted at dir.
func NewManager(dir string, logger *logrus.Logger) *Manager {
	return &Manager{dir: dir, logger: logger}
}

// List returns the installed plugin names, sorted. A missing plugin
// directory is an empty list.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".lua") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".lua"))
	}
	sort.Strings(names)
	return names, nil
}

// Install validates and copies one plugin file into the plugin directory.
// The chunk must carry a .lua extension and compile; nothing is executed.
func (m *Manager) Install(path string) (string, error) {
	if filepath.Ext(path) != ".lua" {
		return "", &InstallError{Path: path, Reason: "not a .lua file"}
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return "", &InstallError{Path: path, Reason: err.Error()}
	}
	if reason := compileCheck(string(src)); reason != "" {
		return "", &InstallError{Path: path, Reason: reason}
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create plugin directory: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), ".lua")
	dst := m.path(name)
	if err := os.WriteFile(dst, src, 0o644); err != nil {
		return "", fmt.Errorf("failed to install plugin: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"plugin": name,
		"path":   dst,
	}).Info("Plugin installed")
	return name, nil
}

// Uninstall removes an installed plugin by name.
func (m *Manager) Uninstall(name string) error {
	if err := os.Remove(m.path(name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("plugin %s is not installed", name)
		}
		return fmt.Errorf("failed to uninstall plugin %s: %w", name, err)
	}
	m.logger.WithField("plugin", name).Info("Plugin uninstalled")
	return nil
}

func (m *Manager) path(name string) string {
	return filepath.Join(m.dir, name+".lua")
}

// compileCheck loads the chunk in a throwaway state and returns the parser
// message on failure.
func compileCheck(src string) string {
	L := lua.NewState()
	defer L.Close()

	if status := L.LoadString(src); status != 0 {
		reason := L.ToString(-1)
		L.Pop(1)
		if reason == "" {
			reason = "chunk does not compile"
		}
		return reason
	}
	L.Pop(1)
	return ""
}
