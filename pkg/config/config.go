// Package config holds the application configuration. There are no ambient
// globals: a Config is built once in the command layer and handed to every
// component at construction, together with a logger created by NewLogger.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	LogLevel logrus.Level `yaml:"-"`

	// PrepareTimeout bounds every controller-prep command (rfkill, interface
	// up, service restart, HCI commands). CleanTimeout bounds the cleanup
	// path, where bluetoothd shutdown can be slow.
	PrepareTimeout time.Duration `yaml:"prepare_timeout" default:"5s"`
	CleanTimeout   time.Duration `yaml:"clean_timeout" default:"60s"`

	// BluetoothDir is where bluetoothd persists per-controller pairing and
	// attribute caches, keyed by the controller's own address.
	BluetoothDir string `yaml:"bluetooth_dir" default:"/var/lib/bluetooth"`

	// SysfsBluetoothDir and SysfsRfkillDir are the kernel views of the
	// installed controllers and of the rfkill switches. Overridable so tests
	// can point them at a scratch tree.
	SysfsBluetoothDir string `yaml:"sysfs_bluetooth_dir" default:"/sys/class/bluetooth"`
	SysfsRfkillDir    string `yaml:"sysfs_rfkill_dir" default:"/sys/class/rfkill"`

	// SerialByIDDir is scanned for micro:bit sniffer ports before falling
	// back to DevDir/ttyACM*.
	SerialByIDDir string `yaml:"serial_by_id_dir" default:"/dev/serial/by-id"`
	DevDir        string `yaml:"dev_dir" default:"/dev"`

	PluginDir  string `yaml:"plugin_dir"`
	ResultsDir string `yaml:"results_dir"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{LogLevel: logrus.WarnLevel}
	defaults.SetDefaults(cfg)

	home, err := os.UserHomeDir()
	if err != nil {
		home = "/root"
	}
	cfg.PluginDir = filepath.Join(home, ".bluing", "plugins")
	cfg.ResultsDir = filepath.Join(home, ".bluing", "results")

	return cfg
}

// Load returns DefaultConfig overlaid with ~/.bluing/config.yaml when that
// file exists. A missing file is not an error; an unreadable or malformed
// one is.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, nil
	}
	return cfg, cfg.overlay(filepath.Join(home, ".bluing", "config.yaml"))
}

func (c *Config) overlay(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.LogLevel)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
