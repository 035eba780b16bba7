//go:build linux

package conn

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// SetUserTimeout sets TCP_USER_TIMEOUT on tc.
func SetUserTimeout(tc *net.TCPConn, d time.Duration) error {
	rc, err := tc.SyscallConn()
	if err != nil {
		return fmt.Errorf("syscall conn: %w", err)
	}

	var sockErr error
	err = rc.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_USER_TIMEOUT, int(d.Milliseconds()))
	})
	if err != nil {
		return fmt.Errorf("control: %w", err)
	}
	if sockErr != nil {
		return fmt.Errorf("setsockopt TCP_USER_TIMEOUT: %w", sockErr)
	}
	return nil
}

// UserTimeoutSupported reports whether SetUserTimeout has any effect.
const UserTimeoutSupported = true
