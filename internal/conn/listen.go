package conn

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Options are the socket settings applied to every proxied TCP connection.
type Options struct {
	KeepAlive net.KeepAliveConfig

	// UserTimeout bounds how long transmitted data may stay unacknowledged
	// before the kernel drops the connection. Zero leaves the system default.
	// Only honored on Linux.
	UserTimeout time.Duration
}

// ListenTCP listens on the given network/address and returns a net.Listener
// that applies opts to accepted TCP connections.
func ListenTCP(ctx context.Context, network, addr string, opts Options) (net.Listener, error) {
	lc := net.ListenConfig{}

	ln, err := lc.Listen(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s %s: %w", network, addr, err)
	}

	return &TunedListener{Listener: ln, Options: opts}, nil
}

// TunedListener wraps a net.Listener and applies Options to any accepted
// *net.TCPConn.
type TunedListener struct {
	net.Listener
	Options
}

// Accept accepts the next connection and applies Options to it.
func (l *TunedListener) Accept() (net.Conn, error) {
	c, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	Apply(c, l.Options)
	return c, nil
}

// Apply sets keepalive and user timeout on c if it is a *net.TCPConn. Errors
// are ignored: tuning is best effort and never fails a connection.
func Apply(c net.Conn, opts Options) {
	tc, ok := c.(*net.TCPConn)
	if !ok {
		return
	}
	_ = tc.SetKeepAliveConfig(opts.KeepAlive)
	if opts.UserTimeout > 0 {
		_ = SetUserTimeout(tc, opts.UserTimeout)
	}
}
