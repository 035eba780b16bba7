//go:build !linux

package conn

import (
	"net"
	"time"
)

func SetUserTimeout(_ *net.TCPConn, _ time.Duration) error {
	return nil
}

const UserTimeoutSupported = false
