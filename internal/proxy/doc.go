// Package proxy implements the socks5d listener side: the SOCKS5 accept loop
// and per-connection protocol handler, the CONNECT and BIND sessions, and the
// bidirectional relay they share.
package proxy
