package engine

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b0rdst31n/bluing/internal/hostcmd"
	"github.com/b0rdst31n/bluing/internal/testutils"
)

func TestSDPScanner_Browse(t *testing.T) {
	runner := testutils.NewRecordingRunner()
	runner.Outputs["sdptool browse"] = []byte("Service Name: Audio Sink\n")

	out := &bytes.Buffer{}
	s := NewSDPScanner(quietLogger(), out, runner, 5*time.Second)

	err := s.Browse(context.Background(), addr(t, "11:22:33:44:55:66"))
	require.NoError(t, err)

	require.Len(t, runner.Commands, 1)
	assert.Equal(t,
		[]string{"sdptool", "browse", "--tree", "--l2cap", "11:22:33:44:55:66"},
		runner.Commands[0])
	assert.Equal(t, "Service Name: Audio Sink\n", out.String())
}

func TestSDPScanner_BrowseFailure(t *testing.T) {
	runner := testutils.NewRecordingRunner()
	runner.Errs["sdptool browse"] = &hostcmd.CommandError{
		Argv:   []string{"sdptool", "browse"},
		Output: []byte("Failed to connect to SDP server"),
	}

	out := &bytes.Buffer{}
	s := NewSDPScanner(quietLogger(), out, runner, 5*time.Second)

	err := s.Browse(context.Background(), addr(t, "11:22:33:44:55:66"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SDP browse failed")
	assert.Empty(t, out.String(), "nothing MUST be printed on failure")
}
