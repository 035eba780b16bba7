package proxy

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type closeWriter interface {
	CloseWrite() error
}

// Relay copies bytes between left and right in both directions and returns
// once both directions have finished.
//
// A direction finishes when its source reports end-of-stream or any read or
// write error; that error ends only that direction. When a direction
// finishes, the write side of its destination is shut down so the far end
// sees EOF, but neither connection is closed: a half-closed session stays up
// until the other direction is done too. Closing both connections is the
// caller's job, except when ctx is canceled, which closes both to unblock
// the pumps.
//
// If idleTimeout is positive, the session ends once neither direction has
// moved any bytes for that long. Traffic in one direction keeps the other,
// silent direction open.
func Relay(ctx context.Context, left, right net.Conn, idleTimeout time.Duration) {
	stop := context.AfterFunc(ctx, func() {
		_ = left.Close()
		_ = right.Close()
	})
	defer stop()

	var (
		g        errgroup.Group
		up, down int64
		upErr    error
		downErr  error
		act      activity
	)
	act.touch()

	g.Go(func() error {
		up, upErr = pump(right, left, &act, idleTimeout)
		return nil
	})

	g.Go(func() error {
		down, downErr = pump(left, right, &act, idleTimeout)
		return nil
	})

	_ = g.Wait()

	zerolog.Ctx(ctx).Debug().
		Int64("bytes_up", up).
		Int64("bytes_down", down).
		AnErr("up_err", upErr).
		AnErr("down_err", downErr).
		Msg("relay finished")
}

// activity is the last time either direction of a session moved bytes.
type activity struct {
	last atomic.Int64
}

func (a *activity) touch() {
	a.last.Store(time.Now().UnixNano())
}

// idleAt is when the session goes idle if nothing moves before then.
func (a *activity) idleAt(idleTimeout time.Duration) time.Time {
	return time.Unix(0, a.last.Load()).Add(idleTimeout)
}

// stillActive reports whether err is a deadline hit that the other direction
// has since pushed back.
func (a *activity) stillActive(err error, idleTimeout time.Duration) bool {
	return idleTimeout > 0 &&
		errors.Is(err, os.ErrDeadlineExceeded) &&
		time.Now().Before(a.idleAt(idleTimeout))
}

// pump copies src to dst one chunk at a time, never reading again before the
// previous chunk has been fully written.
func pump(dst, src net.Conn, act *activity, idleTimeout time.Duration) (int64, error) {
	bp := relayBuffers.Get()
	defer relayBuffers.Put(bp)
	buf := *bp

	defer func() {
		if cw, ok := dst.(closeWriter); ok {
			_ = cw.CloseWrite()
		}
	}()

	var written int64
	for {
		if idleTimeout > 0 {
			_ = src.SetReadDeadline(act.idleAt(idleTimeout))
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			act.touch()
			w, werr := writeChunk(dst, buf[:n], act, idleTimeout)
			written += w
			if werr != nil {
				return written, werr
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return written, nil
			}
			if act.stillActive(rerr, idleTimeout) {
				continue
			}
			return written, rerr
		}
	}
}

// writeChunk writes all of p, retrying after a write deadline as long as the
// session as a whole is not idle.
func writeChunk(dst net.Conn, p []byte, act *activity, idleTimeout time.Duration) (int64, error) {
	var written int64
	for {
		if idleTimeout > 0 {
			_ = dst.SetWriteDeadline(act.idleAt(idleTimeout))
		}
		n, err := dst.Write(p)
		written += int64(n)
		if n > 0 {
			act.touch()
		}
		if err == nil {
			return written, nil
		}
		if !act.stillActive(err, idleTimeout) {
			return written, err
		}
		p = p[n:]
	}
}
