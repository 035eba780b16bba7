package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // Exposed only on the debug listener.
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/die-net/socks5d/internal/conn"
	"github.com/die-net/socks5d/internal/dialer"
	"github.com/die-net/socks5d/internal/proxy"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		socksListen = pflag.String("socks5-listen", "0.0.0.0:1080", "SOCKS5 proxy listen address")
		bindHost    = pflag.String("bind-host", "", "Address to open BIND listeners on. Empty auto-detects the outward-facing address, falling back to the address each client connected to.")

		upstream = pflag.String("upstream", defaultUpstream(), "Upstream for CONNECT: direct:// | socks5://host:port")

		debugListen        = pflag.String("debug-listen", "", "Debug HTTP listen address exposing /debug/pprof (e.g. 127.0.0.1:6060). Empty disables.")
		dialTimeout        = pflag.Duration("dial-timeout", 10*time.Second, "Timeout for outbound DNS lookup and TCP connect")
		negotiationTimeout = pflag.Duration("negotiation-timeout", 0, "Timeout for the SOCKS5 greeting and request (0 waits forever)")
		bindTimeout        = pflag.Duration("bind-timeout", 0, "Timeout for a BIND peer to connect (0 waits forever)")
		idleTimeout        = pflag.Duration("idle-timeout", 0, "Close a relayed session after this long without data in either direction (0 disables)")
		tcpKeepAlive       = pflag.String("tcp-keepalive", "45:45:3", "TCP keepalive: on|off|keepidle:keepintvl:keepcnt")
		tcpUserTimeout     = pflag.Duration("tcp-user-timeout", 0, "TCP_USER_TIMEOUT for proxied connections (0 leaves the system default)")
		disableBind        = pflag.Bool("disable-bind", false, "Refuse BIND requests and serve CONNECT only")
		verbose            = pflag.Bool("verbose", false, "Enable per-connection debug logging")
		logJSON            = pflag.Bool("log-json", false, "Log JSON lines instead of human-readable output")
	)

	if !conn.UserTimeoutSupported {
		_ = pflag.CommandLine.MarkHidden("tcp-user-timeout")
	}

	pflag.CommandLine.SortFlags = false
	pflag.Parse()

	configureLogging(*verbose, *logJSON)

	ka, err := parseTCPKeepAlive(*tcpKeepAlive)
	if err != nil {
		return fmt.Errorf("invalid --tcp-keepalive: %w", err)
	}
	if *tcpUserTimeout < 0 {
		return errors.New("invalid --tcp-user-timeout: must be >= 0")
	}

	socket := conn.Options{KeepAlive: ka, UserTimeout: *tcpUserTimeout}

	cfg := proxy.Config{
		NegotiationTimeout: *negotiationTimeout,
		BindTimeout:        *bindTimeout,
		IdleTimeout:        *idleTimeout,
		BindHost:           *bindHost,
		DisableBind:        *disableBind,
		Socket:             socket,
	}

	cfg.Dialer, err = dialer.New(dialer.Config{
		DialTimeout:        *dialTimeout,
		NegotiationTimeout: *negotiationTimeout,
		Socket:             socket,
	}, *upstream)
	if err != nil {
		return fmt.Errorf("invalid --upstream: %w", err)
	}

	g, ctx := errgroup.WithContext(context.Background())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *debugListen != "" {
		debugLn, err := conn.ListenTCP(ctx, "tcp", *debugListen, socket)
		if err != nil {
			return fmt.Errorf("debug listen: %w", err)
		}
		serveDebug(ctx, g, debugLn)
		log.Info().Str("listen", *debugListen).Msg("debug listening")
	}

	if cfg.BindHost == "" && !cfg.DisableBind {
		ip, err := conn.OutboundIP(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("could not detect outward-facing address; BIND will use each client's local address")
		} else {
			cfg.BindHost = ip.String()
		}
	}

	ln, err := conn.ListenTCP(ctx, "tcp", *socksListen, socket)
	if err != nil {
		return fmt.Errorf("socks5 listen: %w", err)
	}
	s5 := proxy.NewSOCKS5Server(ctx, cfg)
	context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})

	g.Go(func() error {
		if err := s5.Serve(ln); err != nil {
			return fmt.Errorf("socks5 serve: %w", err)
		}
		return nil
	})

	log.Info().
		Str("listen", *socksListen).
		Str("bind_host", cfg.BindHost).
		Str("upstream", upstreamLabel(cfg.Dialer)).
		Bool("bind", !cfg.DisableBind).
		Msg("socks5 proxy listening")

	err = g.Wait()

	log.Info().Msg("shutting down")
	return err
}

// serveDebug serves net/http/pprof on ln until ctx is done.
func serveDebug(ctx context.Context, g *errgroup.Group, ln net.Listener) {
	debugSrv := &http.Server{Handler: http.DefaultServeMux} //nolint:gosec // Not concerned about timeouts on debug port.
	context.AfterFunc(ctx, func() {
		_ = debugSrv.Close()
	})

	g.Go(func() error {
		if err := debugSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("debug serve: %w", err)
		}
		return nil
	})
}

// upstreamLabel describes where CONNECT traffic goes, with the default
// upstream port filled in.
func upstreamLabel(d dialer.Dialer) string {
	if sd, ok := d.(*dialer.SOCKS5ProxyDialer); ok {
		return "socks5://" + sd.ProxyAddr()
	}
	return "direct://"
}

func configureLogging(verbose, jsonOutput bool) {
	zerolog.TimeFieldFormat = time.RFC3339

	if !jsonOutput {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		})
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func parseTCPKeepAlive(s string) (net.KeepAliveConfig, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return net.KeepAliveConfig{}, errors.New("empty")
	}
	if s == "on" {
		return net.KeepAliveConfig{Enable: true}, nil
	}
	if s == "off" {
		return net.KeepAliveConfig{Enable: false}, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return net.KeepAliveConfig{}, errors.New("expected on|off|keepidle:keepintvl:keepcnt")
	}
	keepIdle, err := parsePositiveSeconds(parts[0])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepidle: %w", err)
	}
	keepIntvl, err := parsePositiveSeconds(parts[1])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepintvl: %w", err)
	}
	keepCnt, err := parsePositiveInt(parts[2])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepcnt: %w", err)
	}

	return net.KeepAliveConfig{
		Enable:   true,
		Idle:     keepIdle,
		Interval: keepIntvl,
		Count:    keepCnt,
	}, nil
}

func parsePositiveSeconds(s string) (time.Duration, error) {
	n, err := parsePositiveInt(s)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be > 0")
	}
	return n, nil
}

func defaultUpstream() string {
	for _, k := range []string{"SOCKS5_UPSTREAM", "socks5_upstream"} {
		if p := os.Getenv(k); p != "" {
			return p
		}
	}
	return "direct://"
}
