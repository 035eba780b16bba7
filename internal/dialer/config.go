package dialer

import (
	"time"

	"github.com/die-net/socks5d/internal/conn"
)

type Config struct {
	DialTimeout time.Duration

	// NegotiationTimeout bounds the SOCKS5 handshake with an upstream proxy.
	NegotiationTimeout time.Duration

	Socket conn.Options
}
