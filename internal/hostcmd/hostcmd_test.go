package hostcmd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunner_CapturesOutput(t *testing.T) {
	r := NewExecRunner(logrus.New())

	out, err := r.Run(context.Background(), "echo", "hello")

	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out), "combined output MUST be captured")
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	// GOAL: Verify a failing command surfaces a CommandError that carries the
	// captured output, since these failures are caller-correctable.
	r := NewExecRunner(logrus.New())

	out, err := r.Run(context.Background(), "sh", "-c", "echo broken >&2; exit 3")

	require.Error(t, err)
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr), "error MUST be a *CommandError")
	assert.Contains(t, cmdErr.Error(), "broken", "error message MUST include captured output")
	assert.Equal(t, []string{"sh", "-c", "echo broken >&2; exit 3"}, cmdErr.Argv)
	assert.Contains(t, string(out), "broken")
	assert.False(t, cmdErr.Timeout)
}

func TestExecRunner_Timeout(t *testing.T) {
	r := NewExecRunner(logrus.New())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := r.Run(ctx, "sleep", "10")

	require.Error(t, err)
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.True(t, cmdErr.Timeout, "deadline expiry MUST be flagged as a timeout")
}

func TestExecRunner_CommandNotFound(t *testing.T) {
	r := NewExecRunner(logrus.New())

	_, err := r.Run(context.Background(), "definitely-not-a-command-xyz")

	assert.Error(t, err)
}
