package proxy

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"testing"

	"github.com/die-net/socks5d/internal/socks5"
)

func TestBindSessionFirstReplyIsListenerAddress(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := &socks5.Request{Cmd: socks5.CmdBind, Atyp: socks5.ATYPIPv4, Host: "127.0.0.1", Port: 2121}
	s, err := newBindSession(ctx, Config{BindHost: "127.0.0.1"}, serverConn, req)
	if err != nil {
		t.Fatal(err)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- s.Run(ctx) }()

	first, err := socks5.ReadReply(clientConn)
	if err != nil {
		t.Fatal(err)
	}
	ln := s.ln.Addr().(*net.TCPAddr).AddrPort()
	if want := netip.AddrPortFrom(ln.Addr().Unmap(), ln.Port()); first != want {
		t.Fatalf("first reply %s, listener %s", first, want)
	}

	// Canceling the wait produces a failure as the second reply.
	cancel()
	_, err = socks5.ReadReply(clientConn)
	var re *socks5.ReplyError
	if !errors.As(err, &re) {
		t.Fatalf("expected failure reply, got %v", err)
	}
	if err := <-runErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("run: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestBindSessionListenFailure(t *testing.T) {
	_, serverConn := net.Pipe()
	defer serverConn.Close()

	req := &socks5.Request{Cmd: socks5.CmdBind, Atyp: socks5.ATYPIPv4, Host: "127.0.0.1", Port: 2121}
	// 192.0.2.0/24 is reserved for documentation and never assigned locally.
	_, err := newBindSession(context.Background(), Config{BindHost: "192.0.2.1"}, serverConn, req)
	if !errors.Is(err, ErrBind) {
		t.Fatalf("expected ErrBind, got %v", err)
	}
}

func TestResolvePeer(t *testing.T) {
	tests := []struct {
		name string
		req  socks5.Request
		want netip.Addr
	}{
		{
			name: "ipv4",
			req:  socks5.Request{Atyp: socks5.ATYPIPv4, Host: "192.0.2.5"},
			want: netip.MustParseAddr("192.0.2.5"),
		},
		{
			name: "ipv4 mapped ipv6",
			req:  socks5.Request{Atyp: socks5.ATYPIPv6, Host: "::ffff:192.0.2.5"},
			want: netip.MustParseAddr("192.0.2.5"),
		},
		{
			name: "ipv6",
			req:  socks5.Request{Atyp: socks5.ATYPIPv6, Host: "2001:db8::5"},
			want: netip.MustParseAddr("2001:db8::5"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolvePeer(context.Background(), &tt.req)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("got %s want %s", got, tt.want)
			}
		})
	}
}

func TestResolvePeerDomain(t *testing.T) {
	got, err := resolvePeer(context.Background(), &socks5.Request{Atyp: socks5.ATYPDomain, Host: "localhost"})
	if err != nil {
		t.Skipf("localhost does not resolve here: %v", err)
	}
	if !got.IsLoopback() {
		t.Fatalf("localhost resolved to %s", got)
	}
}
