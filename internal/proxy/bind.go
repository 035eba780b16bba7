package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"

	"github.com/rs/zerolog"

	"github.com/die-net/socks5d/internal/conn"
	"github.com/die-net/socks5d/internal/socks5"
)

// bindSession listens on the client's behalf and accepts exactly one
// connection from the expected peer.
type bindSession struct {
	cfg      Config
	client   net.Conn
	ln       net.Listener
	expected netip.AddrPort

	peer      net.Conn
	closeOnce sync.Once
}

func newBindSession(ctx context.Context, cfg Config, client net.Conn, req *socks5.Request) (*bindSession, error) {
	ip, err := resolvePeer(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w: %w", req.Address(), ErrBind, err)
	}

	host := cfg.BindHost
	if host == "" {
		host = localHost(client)
	}

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w: %w", req.Address(), ErrBind, err)
	}

	return &bindSession{
		cfg:      cfg,
		client:   client,
		ln:       ln,
		expected: netip.AddrPortFrom(ip, req.Port),
	}, nil
}

// Run sends the listener address, waits for the expected peer, sends the
// peer's address and relays between client and peer.
func (s *bindSession) Run(ctx context.Context) error {
	log := zerolog.Ctx(ctx)

	if err := socks5.WriteReply(s.client, socks5.RepSuccess, s.ln.Addr()); err != nil {
		return fmt.Errorf("bind: %w", err)
	}
	log.Debug().Stringer("listen", s.ln.Addr()).Stringer("expect", s.expected).Msg("bind waiting for peer")

	peer, err := s.acceptPeer(ctx)
	if err != nil {
		_ = socks5.WriteFailureReply(s.client)
		return fmt.Errorf("bind accept: %w", err)
	}
	s.peer = peer
	conn.Apply(peer, s.cfg.Socket)

	if err := socks5.WriteReply(s.client, socks5.RepSuccess, peer.RemoteAddr()); err != nil {
		return fmt.Errorf("bind: %w", err)
	}

	Relay(ctx, s.client, peer, s.cfg.IdleTimeout)
	return nil
}

// acceptPeer accepts until a connection arrives from the expected address
// and port. Any other connection is closed without a reply. The listener is
// closed once the peer is found, or when ctx ends.
func (s *bindSession) acceptPeer(ctx context.Context) (net.Conn, error) {
	if s.cfg.BindTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.BindTimeout)
		defer cancel()
	}

	stop := context.AfterFunc(ctx, func() {
		_ = s.ln.Close()
	})
	defer stop()

	for {
		c, err := s.ln.Accept()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, err
		}

		if remoteAddrPort(c) == s.expected {
			_ = s.ln.Close()
			return c, nil
		}

		zerolog.Ctx(ctx).Debug().Stringer("remote", c.RemoteAddr()).Msg("bind rejected unexpected peer")
		_ = c.Close()
	}
}

func (s *bindSession) Close() error {
	s.closeOnce.Do(func() {
		_ = s.ln.Close()
		if s.peer != nil {
			_ = s.peer.Close()
		}
	})
	return nil
}

// resolvePeer returns the IP the peer must connect from. Domain names are
// resolved and only the first address is used.
func resolvePeer(ctx context.Context, req *socks5.Request) (netip.Addr, error) {
	if req.Atyp != socks5.ATYPDomain {
		ip, err := netip.ParseAddr(req.Host)
		if err != nil {
			return netip.Addr{}, err
		}
		return ip.Unmap(), nil
	}

	ips, err := net.DefaultResolver.LookupNetIP(ctx, "ip", req.Host)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("resolve %s: %w", req.Host, err)
	}
	if len(ips) == 0 {
		return netip.Addr{}, errors.New("resolve " + req.Host + ": no addresses")
	}
	return ips[0].Unmap(), nil
}

func remoteAddrPort(c net.Conn) netip.AddrPort {
	ta, ok := c.RemoteAddr().(*net.TCPAddr)
	if !ok {
		return netip.AddrPort{}
	}
	ap := ta.AddrPort()
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}

// localHost returns the IP the client reached us on, or "" if unknown.
func localHost(c net.Conn) string {
	ta, ok := c.LocalAddr().(*net.TCPAddr)
	if !ok {
		return ""
	}
	return ta.AddrPort().Addr().Unmap().String()
}
