package engine

import "fmt"

// UnavailableError means the underlying BLE engine could not run at all:
// the adapter is absent or the process lacks privilege. It commonly
// indicates a host problem rather than a logic bug, so the command layer
// degrades it to a warning instead of a crash.
type UnavailableError struct {
	// LEMode is set when the failure happened bringing the LE stack up, so
	// the user-facing message can hint at a missing adapter or sudo.
	LEMode bool
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("scan engine unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }
