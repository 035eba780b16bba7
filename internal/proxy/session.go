package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/die-net/socks5d/internal/socks5"
)

var (
	// ErrDial is wrapped by errors from a CONNECT that could not reach its
	// destination.
	ErrDial = errors.New("dial failed")

	// ErrBind is wrapped by errors from a BIND whose listener could not be
	// set up.
	ErrBind = errors.New("bind failed")
)

// session is a granted command. Construction performs the connect or bind
// step; Run sends the success replies and relays until both directions are
// done; Close releases everything the session opened and is safe to call
// more than once.
type session interface {
	Run(ctx context.Context) error
	Close() error
}

func newSession(ctx context.Context, cfg Config, client net.Conn, req *socks5.Request) (session, error) {
	switch req.Cmd {
	case socks5.CmdConnect:
		return newConnectSession(ctx, cfg, client, req)
	case socks5.CmdBind:
		if cfg.DisableBind {
			return nil, fmt.Errorf("%w: bind is disabled", ErrBind)
		}
		return newBindSession(ctx, cfg, client, req)
	default:
		return nil, &socks5.ProtocolError{Reason: "unsupported command"}
	}
}
