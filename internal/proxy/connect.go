package proxy

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/die-net/socks5d/internal/socks5"
)

type connectSession struct {
	client      net.Conn
	dst         net.Conn
	idleTimeout time.Duration
	closeOnce   sync.Once
}

func newConnectSession(ctx context.Context, cfg Config, client net.Conn, req *socks5.Request) (*connectSession, error) {
	dst, err := cfg.Dialer.DialContext(ctx, "tcp", req.Address())
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w: %w", req.Address(), ErrDial, err)
	}

	return &connectSession{client: client, dst: dst, idleTimeout: cfg.IdleTimeout}, nil
}

// Run replies with the outbound socket's local address, which is what the
// destination sees as the connection's source, then relays.
func (s *connectSession) Run(ctx context.Context) error {
	if err := socks5.WriteReply(s.client, socks5.RepSuccess, s.dst.LocalAddr()); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	Relay(ctx, s.client, s.dst, s.idleTimeout)
	return nil
}

func (s *connectSession) Close() error {
	s.closeOnce.Do(func() {
		_ = s.dst.Close()
	})
	return nil
}
