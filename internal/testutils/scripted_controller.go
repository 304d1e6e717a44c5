package testutils

import (
	"context"
	"sync"

	"github.com/b0rdst31n/bluing/internal/hci"
)

// ScriptedController is an hci.Conn whose per-command outcomes are scripted
// by the test. It records the order commands were issued in and how many
// times Close was called.
type ScriptedController struct {
	mu sync.Mutex

	// Outcomes maps a command name to the status it returns. Commands not
	// present return success.
	Outcomes map[string]hci.Status

	// Errs maps a command name to a transport error.
	Errs map[string]error

	// Addr is returned by ReadBDAddr.
	Addr hci.BDAddr

	Calls      []string
	CloseCount int
}

// NewScriptedController returns a controller whose every command succeeds
// and that reports the given local address.
func NewScriptedController(addr string) *ScriptedController {
	a, err := hci.ParseBDAddr(addr)
	if err != nil {
		panic(err)
	}
	return &ScriptedController{
		Outcomes: make(map[string]hci.Status),
		Errs:     make(map[string]error),
		Addr:     a,
	}
}

func (c *ScriptedController) record(name string) (hci.Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, name)
	if err := c.Errs[name]; err != nil {
		return hci.Outcome{}, err
	}
	return hci.Outcome{Status: c.Outcomes[name]}, nil
}

func (c *ScriptedController) CancelInquiry(context.Context) (hci.Outcome, error) {
	return c.record("inquiry_cancel")
}

func (c *ScriptedController) ExitPeriodicInquiryMode(context.Context) (hci.Outcome, error) {
	return c.record("exit_periodic_inquiry_mode")
}

func (c *ScriptedController) DisableScan(context.Context) (hci.Outcome, error) {
	return c.record("write_scan_enable")
}

func (c *ScriptedController) DisableLEAdvertising(context.Context) (hci.Outcome, error) {
	return c.record("le_set_advertising_enable")
}

func (c *ScriptedController) DisableLEScan(context.Context) (hci.Outcome, error) {
	return c.record("le_set_scan_enable")
}

func (c *ScriptedController) ClearEventFilters(context.Context) (hci.Outcome, error) {
	return c.record("set_event_filter")
}

func (c *ScriptedController) ReadBDAddr(context.Context) (hci.Outcome, hci.BDAddr, error) {
	outcome, err := c.record("read_bd_addr")
	return outcome, c.Addr, err
}

func (c *ScriptedController) Reset(context.Context) (hci.Outcome, error) {
	return c.record("reset")
}

func (c *ScriptedController) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CloseCount++
	return nil
}

// CallsIssued returns a copy of the recorded command order.
func (c *ScriptedController) CallsIssued() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.Calls))
	copy(out, c.Calls)
	return out
}
