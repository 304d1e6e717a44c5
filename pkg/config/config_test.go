package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, logrus.WarnLevel, cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.PrepareTimeout)
	assert.Equal(t, 60*time.Second, cfg.CleanTimeout)
	assert.Equal(t, "/var/lib/bluetooth", cfg.BluetoothDir)
	assert.Equal(t, "/sys/class/bluetooth", cfg.SysfsBluetoothDir)
	assert.Equal(t, "/sys/class/rfkill", cfg.SysfsRfkillDir)
	assert.Equal(t, "/dev/serial/by-id", cfg.SerialByIDDir)
	assert.NotEmpty(t, cfg.PluginDir, "plugin dir MUST be derived from the home dir")
	assert.NotEmpty(t, cfg.ResultsDir, "results dir MUST be derived from the home dir")
}

func TestConfig_Overlay(t *testing.T) {
	// GOAL: Verify YAML values win over struct-tag defaults while untouched
	// fields keep their defaults.
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"prepare_timeout: 2s\nbluetooth_dir: /tmp/bt\n"), 0o644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.overlay(path))

	assert.Equal(t, 2*time.Second, cfg.PrepareTimeout, "YAML value MUST override the default")
	assert.Equal(t, "/tmp/bt", cfg.BluetoothDir, "YAML value MUST override the default")
	assert.Equal(t, 60*time.Second, cfg.CleanTimeout, "untouched field MUST keep its default")
}

func TestConfig_OverlayMissingFile(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.overlay(filepath.Join(t.TempDir(), "nope.yaml")),
		"missing config file MUST NOT be an error")
}

func TestConfig_OverlayMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("prepare_timeout: ["), 0o644))

	cfg := DefaultConfig()
	assert.Error(t, cfg.overlay(path), "malformed YAML MUST be an error")
}

func TestConfig_NewLogger(t *testing.T) {
	tests := []struct {
		name     string
		logLevel logrus.Level
	}{
		{name: "creates logger with debug level", logLevel: logrus.DebugLevel},
		{name: "creates logger with info level", logLevel: logrus.InfoLevel},
		{name: "creates logger with warn level", logLevel: logrus.WarnLevel},
		{name: "creates logger with error level", logLevel: logrus.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}

			logger := cfg.NewLogger()

			assert.NotNil(t, logger)
			assert.Equal(t, tt.logLevel, logger.GetLevel())

			// Verify formatter is set correctly
			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			assert.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}
