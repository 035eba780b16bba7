package socks5

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/netip"
	"strconv"
	"unicode/utf8"

	txsocks5 "github.com/txthinking/socks5"
)

const (
	// Version is the SOCKS protocol version spoken by this package.
	Version = txsocks5.Ver

	// MethodNone is the "no authentication required" method.
	MethodNone = txsocks5.MethodNone

	// CmdConnect is the SOCKS5 CONNECT command value.
	CmdConnect = txsocks5.CmdConnect
	// CmdBind is the SOCKS5 BIND command value.
	CmdBind = txsocks5.CmdBind

	ATYPIPv4   = txsocks5.ATYPIPv4
	ATYPDomain = txsocks5.ATYPDomain
	ATYPIPv6   = txsocks5.ATYPIPv6
)

// Request is a parsed SOCKS5 command request.
type Request struct {
	Cmd  byte
	Atyp byte
	Host string
	Port uint16
}

// Address returns the request target as host:port.
func (r *Request) Address() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(int(r.Port)))
}

// ReadGreeting reads the client's method negotiation message and returns the
// offered methods. Only the version is validated.
func ReadGreeting(r io.Reader) ([]byte, error) {
	hdr := make([]byte, 2)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, fmt.Errorf("read greeting: %w", err)
	}
	if hdr[0] != Version {
		return nil, protocolErrorf(fmt.Sprintf("unsupported version %d", hdr[0]))
	}

	methods := make([]byte, int(hdr[1]))
	if _, err := io.ReadFull(r, methods); err != nil {
		return nil, fmt.Errorf("read greeting methods: %w", err)
	}
	return methods, nil
}

// ReadCommand reads the VER CMD RSV prefix of a request and returns CMD.
func ReadCommand(r io.Reader) (byte, error) {
	hdr := make([]byte, 3)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return 0, fmt.Errorf("read command: %w", err)
	}

	switch cmd := hdr[1]; cmd {
	case CmdConnect, CmdBind:
		return cmd, nil
	default:
		return 0, protocolErrorf("unsupported command")
	}
}

// ReadAddress reads an ATYP-tagged address followed by a big-endian port.
func ReadAddress(r io.Reader) (atyp byte, host string, port uint16, err error) {
	b := make([]byte, 1)
	if _, err := io.ReadFull(r, b); err != nil {
		return 0, "", 0, fmt.Errorf("read address type: %w", err)
	}
	atyp = b[0]

	switch atyp {
	case ATYPIPv4:
		ip := make([]byte, net.IPv4len)
		if _, err := io.ReadFull(r, ip); err != nil {
			return 0, "", 0, fmt.Errorf("read ipv4 address: %w", err)
		}
		host = netip.AddrFrom4([4]byte(ip)).String()
	case ATYPDomain:
		if _, err := io.ReadFull(r, b); err != nil {
			return 0, "", 0, fmt.Errorf("read domain length: %w", err)
		}
		domain := make([]byte, int(b[0]))
		if _, err := io.ReadFull(r, domain); err != nil {
			return 0, "", 0, fmt.Errorf("read domain: %w", err)
		}
		if !utf8.Valid(domain) {
			return 0, "", 0, protocolErrorf("invalid domain name")
		}
		host = string(domain)
	case ATYPIPv6:
		ip := make([]byte, net.IPv6len)
		if _, err := io.ReadFull(r, ip); err != nil {
			return 0, "", 0, fmt.Errorf("read ipv6 address: %w", err)
		}
		host = netip.AddrFrom16([16]byte(ip)).String()
	default:
		return 0, "", 0, protocolErrorf("unsupported address type")
	}

	pb := make([]byte, 2)
	if _, err := io.ReadFull(r, pb); err != nil {
		return 0, "", 0, fmt.Errorf("read port: %w", err)
	}
	return atyp, host, binary.BigEndian.Uint16(pb), nil
}

// ReadRequest reads a full CONNECT or BIND request.
func ReadRequest(r io.Reader) (*Request, error) {
	cmd, err := ReadCommand(r)
	if err != nil {
		return nil, err
	}
	atyp, host, port, err := ReadAddress(r)
	if err != nil {
		return nil, err
	}
	return &Request{Cmd: cmd, Atyp: atyp, Host: host, Port: port}, nil
}

// EncodeAddress returns the ATYP-tagged wire form of host and port. IP
// literals use their own address type; anything else is sent as a domain.
func EncodeAddress(host string, port uint16) ([]byte, error) {
	var b []byte
	if ip, err := netip.ParseAddr(host); err == nil && ip.Zone() == "" {
		if ip.Is4() {
			b = append(b, ATYPIPv4)
		} else {
			b = append(b, ATYPIPv6)
		}
		b = append(b, ip.AsSlice()...)
	} else {
		if host == "" || len(host) > 255 {
			return nil, protocolErrorf(fmt.Sprintf("invalid domain %q", host))
		}
		b = append(b, ATYPDomain, byte(len(host)))
		b = append(b, host...)
	}
	return binary.BigEndian.AppendUint16(b, port), nil
}
