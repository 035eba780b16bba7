package conn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// probeAddr is only used to pick a route; no packet is sent to it.
const probeAddr = "198.51.100.1:9"

// OutboundIP returns the local address the host would use to reach the
// public internet. It "connects" a UDP socket, which only selects a route and
// a source address, and reads back the socket's local address.
func OutboundIP(ctx context.Context) (netip.Addr, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "udp4", probeAddr)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("outbound ip: %w", err)
	}
	defer c.Close()

	ua, ok := c.LocalAddr().(*net.UDPAddr)
	if !ok {
		return netip.Addr{}, errors.New("outbound ip: unexpected local address type")
	}
	ip := ua.AddrPort().Addr().Unmap()
	if !ip.IsValid() || ip.IsUnspecified() {
		return netip.Addr{}, errors.New("outbound ip: no route")
	}
	return ip, nil
}
