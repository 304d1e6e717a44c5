package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"unicode"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/b0rdst31n/bluing/internal/app"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bluing",
	Short: "Bluetooth intelligence gathering tool",
	Long: `Bluetooth intelligence gathering tool that provides:

- BR/EDR device inquiry and LMP feature probing
- LE device scanning, LL feature and SMP pairing feature probing
- Passive LE advertising sniffing via micro:bit hardware
- SDP service browsing and GATT database enumeration
- Pairing cache cleanup for a chosen peer
- Lua plugins for custom probes

Before every scan the chosen controller is normalized: unblocked,
brought up, quiesced and its pairing cache wiped, so results never
depend on leftover controller state.`,
	Version: formatVersion(version),
}

// activeDispatcher is the dispatcher of the running invocation; the
// interrupt path uses it to reset the controller it resolved.
var activeDispatcher *app.Dispatcher

// activeLogger carries the configured logger into the exit path, where
// unexpected failures emit their stack trace at debug level.
var activeLogger *logrus.Logger

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return exitCode(err)
	}
	return 0
}

func init() {
	// Silence Cobra's "Error:" prefix - main() prints classified errors
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(brCmd)
	rootCmd.AddCommand(leCmd)
	rootCmd.AddCommand(sdpCmd)
	rootCmd.AddCommand(gattCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(pluginCmd)

	rootCmd.PersistentFlags().StringP("iface", "i", "", "HCI interface to use (default: first available)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}
