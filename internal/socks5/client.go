package socks5

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"strconv"

	txsocks5 "github.com/txthinking/socks5"
)

// ReplyError is returned by the client helpers when the server answers a
// request with a non-success status.
type ReplyError struct {
	Code byte
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("socks5: request failed with status %d", e.Code)
}

// ClientDial negotiates and issues a CONNECT for address on conn.
func ClientDial(conn io.ReadWriter, address string) error {
	if err := ClientNegotiate(conn); err != nil {
		return err
	}
	if _, err := ClientConnect(conn, address); err != nil {
		return err
	}
	return nil
}

// ClientNegotiate offers only the no-auth method.
func ClientNegotiate(conn io.ReadWriter) error {
	if _, err := txsocks5.NewNegotiationRequest([]byte{MethodNone}).WriteTo(conn); err != nil {
		return fmt.Errorf("write negotiation: %w", err)
	}

	neg, err := txsocks5.NewNegotiationReplyFrom(conn)
	if err != nil {
		return fmt.Errorf("read negotiation: %w", err)
	}
	if neg.Method != MethodNone {
		return fmt.Errorf("unsupported negotiation method: %d", neg.Method)
	}
	return nil
}

// ClientConnect sends a CONNECT request and returns the bound address from
// the reply.
func ClientConnect(conn io.ReadWriter, address string) (netip.AddrPort, error) {
	if err := WriteRequest(conn, CmdConnect, address); err != nil {
		return netip.AddrPort{}, err
	}
	return ReadReply(conn)
}

// ClientBind sends a BIND request expecting a connection from address and
// returns the listener address from the first reply. The caller reads the
// second reply with ReadReply once the peer has connected.
func ClientBind(conn io.ReadWriter, address string) (netip.AddrPort, error) {
	if err := WriteRequest(conn, CmdBind, address); err != nil {
		return netip.AddrPort{}, err
	}
	return ReadReply(conn)
}

// WriteRequest writes a command request for address.
func WriteRequest(w io.Writer, cmd byte, address string) error {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("parse address: %w", err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return fmt.Errorf("parse port %q: %w", portStr, err)
	}

	addr, err := EncodeAddress(host, uint16(port))
	if err != nil {
		return err
	}

	b := append([]byte{Version, cmd, 0x00}, addr...)
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	return nil
}

// ReadReply reads a command reply and returns its bound address.
func ReadReply(r io.Reader) (netip.AddrPort, error) {
	rep, err := txsocks5.NewReplyFrom(r)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("read reply: %w", err)
	}
	if rep.Rep != RepSuccess {
		return netip.AddrPort{}, &ReplyError{Code: rep.Rep}
	}
	if rep.Atyp == ATYPDomain {
		return netip.AddrPort{}, errors.New("socks5: domain bound address not supported")
	}

	ip, ok := netip.AddrFromSlice(rep.BndAddr)
	if !ok || len(rep.BndPort) != 2 {
		return netip.AddrPort{}, errors.New("socks5: malformed bound address")
	}
	return netip.AddrPortFrom(ip, binary.BigEndian.Uint16(rep.BndPort)), nil
}
