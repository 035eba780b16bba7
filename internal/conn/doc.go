// Package conn holds TCP socket plumbing shared by the listener and dialer
// sides of socks5d: keepalive and TCP_USER_TIMEOUT tuning, and discovery of
// the host's outward-facing IP address.
package conn
