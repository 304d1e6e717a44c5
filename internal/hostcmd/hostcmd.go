// Package hostcmd runs privileged host commands (rfkill, hciconfig,
// systemctl, sdptool) as argv vectors with a bounded timeout. Commands are
// never passed through a shell.
package hostcmd

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Runner executes one host command and returns its combined output.
// Implementations must honor ctx cancellation and deadlines. A non-zero exit
// is returned as a *CommandError carrying the captured output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// CommandError is returned when a host command fails or times out. The
// captured output is part of the message because these failures are usually
// caller-correctable (missing privilege, masked service).
type CommandError struct {
	Argv    []string
	Output  []byte
	Timeout bool
	Err     error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q failed: %v", strings.Join(e.Argv, " "), e.Err)
	if e.Timeout {
		msg = fmt.Sprintf("command %q timed out", strings.Join(e.Argv, " "))
	}
	if out := strings.TrimSpace(string(e.Output)); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// ExecRunner runs commands on the host via os/exec.
type ExecRunner struct {
	logger *logrus.Logger
}

// NewExecRunner creates a Runner backed by os/exec.
func NewExecRunner(logger *logrus.Logger) *ExecRunner {
	if logger == nil {
		logger = logrus.New()
	}
	return &ExecRunner{logger: logger}
}

// Run executes name with args and waits for completion, bounded by ctx.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	argv := append([]string{name}, args...)
	r.logger.WithField("argv", argv).Debug("Running host command")

	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()

	r.logger.WithFields(logrus.Fields{
		"argv":    argv,
		"elapsed": time.Since(start).Truncate(time.Millisecond),
	}).Debug("Host command finished")

	if err != nil {
		return out, &CommandError{
			Argv:    argv,
			Output:  out,
			Timeout: ctx.Err() == context.DeadlineExceeded,
			Err:     err,
		}
	}
	return out, nil
}
