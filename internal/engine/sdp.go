package engine

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/b0rdst31n/bluing/internal/hci"
	"github.com/b0rdst31n/bluing/internal/hostcmd"
)

// SDPScanner browses a peer's SDP service records through the host's
// sdptool. Informational: the captured tree is printed, nothing is stored.
type SDPScanner struct {
	logger  *logrus.Logger
	out     io.Writer
	runner  hostcmd.Runner
	timeout time.Duration
}

// NewSDPScanner creates an SDP scanner; timeout bounds the sdptool run.
func NewSDPScanner(logger *logrus.Logger, out io.Writer, runner hostcmd.Runner, timeout time.Duration) *SDPScanner {
	return &SDPScanner{logger: logger, out: out, runner: runner, timeout: timeout}
}

// Browse walks the target's service records as a tree over L2CAP.
func (s *SDPScanner) Browse(ctx context.Context, target hci.BDAddr) error {
	s.logger.WithField("addr", target).Info("Browsing SDP records")

	bctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.runner.Run(bctx, "sdptool", "browse", "--tree", "--l2cap", target.String())
	if err != nil {
		return fmt.Errorf("SDP browse failed: %w", err)
	}
	_, err = s.out.Write(out)
	return err
}
