// Package bluezd controls the host's bluetoothd systemd unit and verifies
// its readiness by watching for org.bluez on the system D-Bus.
package bluezd

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"github.com/b0rdst31n/bluing/internal/hostcmd"
)

const (
	unitName = "bluetooth.service"
	busName  = "org.bluez"

	readyPollInterval = 200 * time.Millisecond
)

// BusLister lists the names currently owned on the system bus. Abstracted so
// tests can script bluetoothd's appearance.
type BusLister interface {
	ListNames(ctx context.Context) ([]string, error)
}

// SystemBusLister lists names via a live system D-Bus connection.
type SystemBusLister struct{}

func (SystemBusLister) ListNames(ctx context.Context) ([]string, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}
	var names []string
	err = conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0).Store(&names)
	return names, err
}

// Service drives the bluetooth.service unit through the host command runner.
type Service struct {
	runner hostcmd.Runner
	lister BusLister
	logger *logrus.Logger
}

// NewService creates a Service. lister may be nil, in which case the live
// system bus is used for readiness checks.
func NewService(runner hostcmd.Runner, lister BusLister, logger *logrus.Logger) *Service {
	if lister == nil {
		lister = SystemBusLister{}
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{runner: runner, lister: lister, logger: logger}
}

// Restart restarts bluetoothd.
func (s *Service) Restart(ctx context.Context) error {
	return s.systemctl(ctx, "restart")
}

// Stop stops bluetoothd so its cache files are no longer held open.
func (s *Service) Stop(ctx context.Context) error {
	return s.systemctl(ctx, "stop")
}

// Start starts bluetoothd.
func (s *Service) Start(ctx context.Context) error {
	return s.systemctl(ctx, "start")
}

func (s *Service) systemctl(ctx context.Context, verb string) error {
	s.logger.WithField("verb", verb).Debug("systemctl " + unitName)
	_, err := s.runner.Run(ctx, "systemctl", verb, unitName)
	return err
}

// IsActive reports whether the unit is currently active.
func (s *Service) IsActive(ctx context.Context) (bool, error) {
	out, err := s.runner.Run(ctx, "systemctl", "is-active", unitName)
	state := strings.TrimSpace(string(out))
	if state == "active" {
		return true, nil
	}
	// is-active exits non-zero for every inactive state; that is an answer,
	// not a failure.
	var cmdErr *hostcmd.CommandError
	if err != nil && !errors.As(err, &cmdErr) {
		return false, err
	}
	return false, nil
}

// WaitReady polls the system bus until org.bluez appears or ctx expires.
func (s *Service) WaitReady(ctx context.Context) error {
	for {
		names, err := s.lister.ListNames(ctx)
		if err == nil {
			for _, n := range names {
				if n == busName {
					return nil
				}
			}
		}

		select {
		case <-ctx.Done():
			if err != nil {
				return err
			}
			return ctx.Err()
		case <-time.After(readyPollInterval):
		}
	}
}
