// Package dialer provides outbound dialing implementations used by socks5d.
//
// Dialers implement a small interface (DialContext) and are used by the
// CONNECT handler to establish outbound connections either directly or via an
// upstream SOCKS5 proxy.
package dialer
