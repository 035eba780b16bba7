// Package socks5 implements the SOCKS5 wire format used by socks5d.
//
// The server side reads the greeting and the CONNECT/BIND request, and writes
// the negotiation and command replies. Reply encoding goes through the
// primitives in github.com/txthinking/socks5 so the bytes on the wire match
// what other SOCKS5 implementations produce.
//
// The client side is a minimal no-auth client, used for chaining CONNECT
// through an upstream SOCKS5 proxy and for exercising the server in tests.
package socks5
