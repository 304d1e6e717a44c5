package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/b0rdst31n/bluing/internal/app"
	"github.com/b0rdst31n/bluing/pkg/config"
)

// loadConfig builds the configuration and its logger from the defaults, the
// user's config file and the --log-level flag.
func loadConfig(cmd *cobra.Command) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logLevelStr, _ := cmd.Flags().GetString("log-level")
	if logLevelStr != "" {
		switch logLevelStr {
		case "debug":
			cfg.LogLevel = logrus.DebugLevel
		case "info":
			cfg.LogLevel = logrus.InfoLevel
		case "warn":
			cfg.LogLevel = logrus.WarnLevel
		case "error":
			cfg.LogLevel = logrus.ErrorLevel
		default:
			return nil, nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", logLevelStr)
		}
	}

	return cfg, cfg.NewLogger(), nil
}

// newDispatcher builds the dispatcher for one invocation and registers it
// for the interrupt path.
func newDispatcher(cmd *cobra.Command) (*app.Dispatcher, *config.Config, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	d := app.NewDispatcher(cfg, logger, os.Stdout)
	activeDispatcher = d
	activeLogger = logger
	return d, cfg, nil
}

// iface returns the value of the global --iface flag; empty selects the
// default controller.
func iface(cmd *cobra.Command) string {
	v, _ := cmd.Flags().GetString("iface")
	return v
}
