package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/b0rdst31n/bluing/internal/controller"
	"github.com/b0rdst31n/bluing/internal/engine"
	"github.com/b0rdst31n/bluing/internal/plugin"
)

const resetTimeout = 5 * time.Second

// exitCode classifies a command error per the recovery contract: engine
// unavailability and rejected plugin installs are user-actionable warnings,
// a missing controller is its own code, Ctrl+C resets the controller and
// exits normally, everything else is a failure.
func exitCode(err error) int {
	if errors.Is(err, context.Canceled) {
		resetController()
		fmt.Println()
		fmt.Println("Canceled")
		return 0
	}

	var unavailable *engine.UnavailableError
	if errors.As(err, &unavailable) {
		fmt.Fprintf(os.Stderr, "WARNING: %s\n", unavailable)
		if unavailable.LEMode {
			fmt.Fprintln(os.Stderr, "No BLE adapter, or missing sudo?")
		}
		return 0
	}

	var install *plugin.InstallError
	if errors.As(err, &install) {
		fmt.Fprintf(os.Stderr, "WARNING: %s\n", install)
		return 0
	}

	if errors.Is(err, controller.ErrNoController) {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		return -1
	}

	fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
	if activeLogger != nil {
		activeLogger.Debugf("stack trace:\n%s", debug.Stack())
	}
	return 1
}

// resetController best-effort resets the controller the interrupted run
// was using, so an aborted inquiry or connection attempt does not leave
// the radio wedged.
func resetController() {
	d := activeDispatcher
	if d == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), resetTimeout)
	defer cancel()
	_ = d.ResetController(ctx)
}
