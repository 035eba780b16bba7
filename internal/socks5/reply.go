package socks5

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/netip"

	txsocks5 "github.com/txthinking/socks5"
)

const (
	// RepSuccess is the reply status for a granted request.
	RepSuccess = txsocks5.RepSuccess
	// RepFailure is the general SOCKS server failure status.
	RepFailure = txsocks5.RepServerFailure
)

// WriteGreetingReply selects the "no authentication required" method.
func WriteGreetingReply(w io.Writer) error {
	if _, err := txsocks5.NewNegotiationReply(MethodNone).WriteTo(w); err != nil {
		return fmt.Errorf("negotiation reply: %w", err)
	}
	return nil
}

// WriteReply writes a command reply with rep as status and addr as the bound
// address. The address type follows the IP family of addr; IPv4-mapped IPv6
// addresses are sent as IPv4.
func WriteReply(w io.Writer, rep byte, addr net.Addr) error {
	ap, err := addrPort(addr)
	if err != nil {
		return err
	}

	ip := ap.Addr().Unmap().WithZone("")
	port := binary.BigEndian.AppendUint16(nil, ap.Port())

	atyp := byte(ATYPIPv6)
	if ip.Is4() {
		atyp = ATYPIPv4
	}

	if _, err := txsocks5.NewReply(rep, atyp, ip.AsSlice(), port).WriteTo(w); err != nil {
		return fmt.Errorf("reply: %w", err)
	}
	return nil
}

// WriteFailureReply writes the fixed general-failure reply with a zero IPv4
// bound address.
func WriteFailureReply(w io.Writer) error {
	if _, err := txsocks5.NewReply(RepFailure, ATYPIPv4, []byte{0x00, 0x00, 0x00, 0x00}, []byte{0x00, 0x00}).WriteTo(w); err != nil {
		return fmt.Errorf("failure reply: %w", err)
	}
	return nil
}

func addrPort(addr net.Addr) (netip.AddrPort, error) {
	if addr == nil {
		return netip.AddrPort{}, protocolErrorf("missing reply address")
	}

	var ap netip.AddrPort
	if ta, ok := addr.(*net.TCPAddr); ok {
		ap = ta.AddrPort()
	} else {
		var err error
		if ap, err = netip.ParseAddrPort(addr.String()); err != nil {
			return netip.AddrPort{}, protocolErrorf(fmt.Sprintf("reply address %q is not an IP address", addr.String()))
		}
	}
	if !ap.Addr().IsValid() {
		return netip.AddrPort{}, protocolErrorf(fmt.Sprintf("reply address %q is not an IP address", addr.String()))
	}
	return ap, nil
}
