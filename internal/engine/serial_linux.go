package engine

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// openSerialPort opens a micro:bit serial port raw at 115200 baud. VTIME is
// set so reads on an idle port wake up periodically and the caller can
// observe cancellation. The termios ioctls go through SyscallConn so the
// descriptor stays registered with the runtime poller and Close interrupts
// a blocked Read.
func openSerialPort(path string) (io.ReadWriteCloser, error) {
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, err
	}

	raw, err := f.SyscallConn()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	var cfgErr error
	err = raw.Control(func(fd uintptr) {
		t, err := unix.IoctlGetTermios(int(fd), unix.TCGETS)
		if err != nil {
			cfgErr = fmt.Errorf("failed to read termios for %s: %w", path, err)
			return
		}

		t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
			unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
		t.Oflag &^= unix.OPOST
		t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
		t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CBAUD
		t.Cflag |= unix.CS8 | unix.CLOCAL | unix.CREAD | unix.B115200
		t.Ispeed = unix.B115200
		t.Ospeed = unix.B115200
		t.Cc[unix.VMIN] = 0
		t.Cc[unix.VTIME] = 1 // deciseconds

		if err := unix.IoctlSetTermios(int(fd), unix.TCSETS, t); err != nil {
			cfgErr = fmt.Errorf("failed to configure %s: %w", path, err)
		}
	})
	if err == nil {
		err = cfgErr
	}
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}
