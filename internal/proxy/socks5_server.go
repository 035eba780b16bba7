package proxy

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/die-net/socks5d/internal/socks5"
)

// SOCKS5Server serves SOCKS5 CONNECT and BIND with no authentication.
type SOCKS5Server struct {
	ctx context.Context
	cfg Config
	wg  sync.WaitGroup
}

// NewSOCKS5Server constructs a server. Canceling ctx tears down every
// session it is serving.
func NewSOCKS5Server(ctx context.Context, cfg Config) *SOCKS5Server {
	if ctx == nil {
		ctx = context.Background()
	}
	return &SOCKS5Server{ctx: ctx, cfg: cfg}
}

// Serve accepts connections on ln and handles each on its own goroutine. It
// returns when ln fails. If that is because the server's context was
// canceled, Serve first waits for all sessions to end and returns nil.
func (s *SOCKS5Server) Serve(ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				s.wg.Wait()
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.wg.Go(func() {
			s.serveConn(c)
		})
	}
}

func (s *SOCKS5Server) serveConn(c net.Conn) {
	logger := log.With().
		Str("session", uuid.NewString()).
		Stringer("client", c.RemoteAddr()).
		Logger()
	ctx := logger.WithContext(s.ctx)

	if err := s.handle(ctx, c); err != nil {
		logger.Debug().Err(err).Msg("session aborted")
		return
	}
	logger.Debug().Msg("session closed")
}

// handle runs the protocol for one client connection: greeting, request,
// dispatch to a session. conn is closed on return whatever the outcome.
func (s *SOCKS5Server) handle(ctx context.Context, conn net.Conn) error {
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	if s.cfg.NegotiationTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(s.cfg.NegotiationTimeout))
	}

	if _, err := socks5.ReadGreeting(conn); err != nil {
		return err
	}
	if err := socks5.WriteGreetingReply(conn); err != nil {
		return err
	}

	req, err := socks5.ReadRequest(conn)
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Debug().Uint8("cmd", req.Cmd).Str("target", req.Address()).Msg("request")

	sess, err := newSession(ctx, s.cfg, conn, req)
	if err != nil {
		_ = socks5.WriteFailureReply(conn)
		return err
	}
	defer sess.Close()

	_ = conn.SetDeadline(time.Time{})

	return sess.Run(ctx)
}
