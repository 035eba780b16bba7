package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/die-net/socks5d/internal/dialer"
)

func TestParseTCPKeepAlive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    net.KeepAliveConfig
		wantErr bool
	}{
		{in: "on", want: net.KeepAliveConfig{Enable: true}},
		{in: " ON ", want: net.KeepAliveConfig{Enable: true}},
		{in: "off", want: net.KeepAliveConfig{Enable: false}},
		{in: "45:45:3", want: net.KeepAliveConfig{Enable: true, Idle: 45 * time.Second, Interval: 45 * time.Second, Count: 3}},
		{in: "10: 5 :2", want: net.KeepAliveConfig{Enable: true, Idle: 10 * time.Second, Interval: 5 * time.Second, Count: 2}},
		{in: "", wantErr: true},
		{in: "sometimes", wantErr: true},
		{in: "1:2", wantErr: true},
		{in: "0:1:1", wantErr: true},
		{in: "1:-1:1", wantErr: true},
		{in: "1:1:x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTCPKeepAlive(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err=%v wantErr=%v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Fatalf("got %+v want %+v", got, tt.want)
			}
		})
	}
}

func TestServeDebug(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var g errgroup.Group
	serveDebug(ctx, &g, ln)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + ln.Addr().String() + "/debug/pprof/cmdline")
	if err != nil {
		cancel()
		t.Fatal(err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d want %d", resp.StatusCode, http.StatusOK)
	}

	cancel()
	if err := g.Wait(); err != nil {
		t.Fatalf("serveDebug returned %v after shutdown", err)
	}
}

func TestUpstreamLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		upstream string
		want     string
	}{
		{upstream: "direct://", want: "direct://"},
		{upstream: "socks5://proxy.example", want: "socks5://proxy.example:1080"},
		{upstream: "socks5://127.0.0.1:9050", want: "socks5://127.0.0.1:9050"},
	}

	for _, tt := range tests {
		d, err := dialer.New(dialer.Config{}, tt.upstream)
		if err != nil {
			t.Fatalf("New(%q): %v", tt.upstream, err)
		}
		if got := upstreamLabel(d); got != tt.want {
			t.Fatalf("upstreamLabel(%q) = %q want %q", tt.upstream, got, tt.want)
		}
	}
}
