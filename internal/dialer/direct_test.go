package dialer

import (
	"context"
	"testing"
	"time"

	"github.com/die-net/socks5d/internal/testutil"
)

func TestDirectDialerEcho(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	echoLn := testutil.StartEchoTCPServer(t, ctx)
	defer echoLn.Close()

	d := NewDirectDialer(Config{DialTimeout: 2 * time.Second})
	c, err := d.DialContext(ctx, "tcp", echoLn.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	testutil.AssertEcho(t, c, c, []byte("hello"))
}

func TestDirectDialerRefused(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	d := NewDirectDialer(Config{DialTimeout: 2 * time.Second})
	if _, err := d.DialContext(ctx, "tcp", testutil.ClosedAddr(t)); err == nil {
		t.Fatal("expected error")
	}
}
