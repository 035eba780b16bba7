package proxy

import (
	"time"

	"github.com/die-net/socks5d/internal/conn"
	"github.com/die-net/socks5d/internal/dialer"
)

type Config struct {
	// NegotiationTimeout bounds the greeting and request read. Zero means no
	// deadline.
	NegotiationTimeout time.Duration

	// BindTimeout bounds how long a BIND waits for its peer. Zero waits
	// until a peer connects or the server shuts down.
	BindTimeout time.Duration

	// IdleTimeout ends a relayed session once neither direction has moved
	// bytes for this long. Zero disables it.
	IdleTimeout time.Duration

	// BindHost is the address BIND listeners are opened on. Empty means the
	// local address the client connected to.
	BindHost string

	// DisableBind answers every BIND with a failure reply.
	DisableBind bool

	Socket conn.Options

	Dialer dialer.Dialer
}
